package relation

import "maps"

// Mapper transforms tuples read from a relation
type Mapper struct {
	ID       string
	Relation string
	// Rename maps input keys to output keys
	Rename map[string]string
	// Only keeps the listed output keys when non-empty
	Only []string
}

// Call maps every tuple, leaving the input untouched
func (m *Mapper) Call(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = m.mapOne(row)
	}
	return out
}

func (m *Mapper) mapOne(row map[string]any) map[string]any {
	mapped := make(map[string]any, len(row))
	for k, v := range row {
		if to, ok := m.Rename[k]; ok {
			k = to
		}
		mapped[k] = v
	}
	if len(m.Only) == 0 {
		return mapped
	}

	kept := make(map[string]any, len(m.Only))
	for _, k := range m.Only {
		if v, ok := mapped[k]; ok {
			kept[k] = v
		}
	}
	return kept
}

// Clone returns an independent copy
func (m *Mapper) Clone() *Mapper {
	c := *m
	c.Rename = maps.Clone(m.Rename)
	c.Only = append([]string(nil), m.Only...)
	return &c
}
