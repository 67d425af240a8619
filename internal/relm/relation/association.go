package relation

import "fmt"

// Association kinds
const (
	ManyToOne  = "many_to_one"
	OneToMany  = "one_to_many"
	ManyToMany = "many_to_many"
)

// Association links a source relation to a target relation. Name is the
// declared association name, As the alias it is reachable under and Target
// the relation it reads.
type Association struct {
	Source     string
	Name       string
	As         string
	Target     string
	Kind       string
	ForeignKey string
}

// Alias returns As, or Name when no alias was given
func (a *Association) Alias() string {
	if a.As != "" {
		return a.As
	}
	return a.Name
}

// Key returns the dotted "<source>.<alias>" form
func (a *Association) Key() string {
	return a.Source + "." + a.Alias()
}

func (a *Association) String() string {
	return fmt.Sprintf("association(%s -> %s %s)", a.Key(), a.Target, a.Kind)
}
