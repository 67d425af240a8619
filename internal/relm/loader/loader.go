// Package loader registers components declared in YAML files under a root
// directory.
//
// With namespacing (the default) the directory layout carries the type:
//
//	<root>/relations/users.yml
//	<root>/schemas/users.yml
//	<root>/mappers/users/entity.yml
//	<root>/commands/users/create.yml
//	<root>/associations/users/posts.yml
//
// Without namespacing every *.yml or *.yaml file below root is loaded and
// must name its type (and, for mappers, commands and associations, its
// relation) in the file body. Command kinds are given as "command" there
// since "type" names the component type.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/util/inflector"
)

// Options controls how files map to components
type Options struct {
	// Namespace derives types and relations from directories
	Namespace bool
	Logger    *zap.Logger
}

// Load walks root and adds every component file to store. It returns the
// number of components added.
func Load(ctx context.Context, store *component.Store, root string, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("failed to read component directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("component root %s is not a directory", root)
	}

	added := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		t, opts, err := parseFile(path, filepath.ToSlash(rel), opts.Namespace)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		if _, err := store.Add(t, opts); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}

		logger.Debug("registered component",
			zap.String("file", rel),
			zap.String("type", string(t)),
			zap.String("id", opts.ID),
		)
		added++
		return nil
	})
	return added, err
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func parseFile(path, rel string, namespaced bool) (component.Type, component.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", component.Options{}, err
	}

	cfg := map[string]any{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", component.Options{}, fmt.Errorf("invalid YAML: %w", err)
	}

	// file and directory names map to snake_case ids ("UserAccounts.yml" -> "user_accounts")
	base := inflector.Underscore(strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)))
	dirs := strings.Split(rel, "/")
	dirs = dirs[:len(dirs)-1]

	var (
		t        component.Type
		relation string
	)

	if namespaced {
		if len(dirs) == 0 {
			return "", component.Options{}, fmt.Errorf("component files must live in a type directory")
		}
		t, err = component.ParseType(dirs[0])
		if err != nil {
			return "", component.Options{}, err
		}
		if t.RelationScoped() {
			if len(dirs) != 2 {
				return "", component.Options{}, fmt.Errorf("%s files must live in %s/<relation>/", t.Singular(), t)
			}
			relation = inflector.Underscore(dirs[1])
		}
	} else {
		typeField := cast.ToString(cfg["type"])
		if typeField == "" {
			return "", component.Options{}, fmt.Errorf("missing type")
		}
		t, err = component.ParseType(typeField)
		if err != nil {
			return "", component.Options{}, err
		}
		delete(cfg, "type")
		if t.RelationScoped() {
			relation = cast.ToString(cfg["relation"])
			if relation == "" {
				return "", component.Options{}, fmt.Errorf("%s requires a relation", t.Singular())
			}
		}
	}

	id := cast.ToString(cfg["id"])
	if id == "" {
		id = base
	}
	if t == component.Associations {
		if _, ok := cfg["name"]; !ok {
			cfg["name"] = base
		}
		if as := cast.ToString(cfg["as"]); as != "" {
			id = as
		}
	}
	if t == component.Commands && !namespaced {
		if kind := cast.ToString(cfg["command"]); kind != "" {
			cfg["type"] = kind
			delete(cfg, "command")
		}
	}

	opts := component.Options{ID: id, Config: cfg}
	if relation != "" {
		opts.Namespace = string(t) + "." + relation
		cfg["relation"] = relation
	}
	return t, opts, nil
}
