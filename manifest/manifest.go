// Package manifest handles genera.toml object-system declarations: a
// declarative way to define classes and generics, applied to a runtime
// in file order.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jmallory/genera/runtime"
)

// ManifestFile is the expected file name inside a project directory.
const ManifestFile = "genera.toml"

// Manifest represents a genera.toml file.
type Manifest struct {
	Project  Project       `toml:"project"`
	Classes  []ClassDecl   `toml:"classes"`
	Generics []GenericDecl `toml:"generics"`

	// Dir is the directory containing the genera.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ClassDecl declares one class. Classes are applied in file order, so
// parents must be declared before children.
type ClassDecl struct {
	Name     string     `toml:"name"`
	Parents  []string   `toml:"parents"`
	Kind     string     `toml:"kind"` // "value" (default) or "reference"
	Abstract bool       `toml:"abstract"`
	Slots    []SlotDecl `toml:"slots"`
}

// SlotDecl declares one slot of a class.
type SlotDecl struct {
	Name    string `toml:"name"`
	Type    string `toml:"type"`
	Default any    `toml:"default"`
}

// GenericDecl declares one generic function.
type GenericDecl struct {
	Name  string `toml:"name"`
	Arity int    `toml:"arity"`
}

// Load parses a genera.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	return LoadFile(path)
}

// LoadFile parses a manifest from an explicit path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for problems detectable without a
// runtime: empty or duplicate names, bad kinds, bad arities.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	for _, c := range m.Classes {
		if c.Name == "" {
			return fmt.Errorf("manifest: class with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("manifest: class %s declared twice", c.Name)
		}
		seen[c.Name] = true
		switch c.Kind {
		case "", "value", "reference":
		default:
			return fmt.Errorf("manifest: class %s has unknown kind %q", c.Name, c.Kind)
		}
		for _, s := range c.Slots {
			if s.Name == "" {
				return fmt.Errorf("manifest: class %s has a slot with empty name", c.Name)
			}
		}
	}

	seenGenerics := make(map[string]bool)
	for _, g := range m.Generics {
		if g.Name == "" {
			return fmt.Errorf("manifest: generic with empty name")
		}
		if seenGenerics[g.Name] {
			return fmt.Errorf("manifest: generic %s declared twice", g.Name)
		}
		seenGenerics[g.Name] = true
		if g.Arity < 0 {
			return fmt.Errorf("manifest: generic %s has negative arity", g.Name)
		}
	}
	return nil
}

// Apply registers every declared class and generic in the runtime, in
// file order. Registration errors (duplicate class, unknown parent)
// come back from the runtime unchanged.
func (m *Manifest) Apply(r *runtime.Runtime) error {
	for _, c := range m.Classes {
		opts := runtime.ClassOptions{
			Parents:  c.Parents,
			Abstract: c.Abstract,
		}
		if c.Kind == "reference" {
			opts.Kind = runtime.KindReference
		}
		for _, s := range c.Slots {
			spec := runtime.SlotSpec{Name: s.Name, Type: s.Type}
			if s.Default != nil {
				v, err := valueFromTOML(s.Default)
				if err != nil {
					return fmt.Errorf("manifest: class %s slot %s: %w", c.Name, s.Name, err)
				}
				spec.Default = v
				spec.HasDefault = true
			}
			opts.Slots = append(opts.Slots, spec)
		}
		if _, err := r.DefineClass(c.Name, opts); err != nil {
			return err
		}
	}

	for _, g := range m.Generics {
		r.DefineGeneric(g.Name, g.Arity, nil)
	}
	return nil
}

// valueFromTOML converts a decoded TOML primitive into a runtime value.
func valueFromTOML(v any) (runtime.Value, error) {
	switch x := v.(type) {
	case int64:
		return runtime.IntValue(x), nil
	case float64:
		return runtime.FloatValue(x), nil
	case bool:
		return runtime.BoolValue(x), nil
	case string:
		return runtime.StringValue(x), nil
	case []any:
		elems := make([]runtime.Value, len(x))
		for i, e := range x {
			ev, err := valueFromTOML(e)
			if err != nil {
				return runtime.Nil, err
			}
			elems[i] = ev
		}
		return runtime.ListValue(elems), nil
	default:
		return runtime.Nil, fmt.Errorf("unsupported default value type %T", v)
	}
}
