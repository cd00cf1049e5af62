package schema

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides adds extra anchor keyword phrases per field, for contract
// layouts whose labels differ from the defaults.
type Overrides struct {
	Keywords map[string][]string `yaml:"keywords"`
}

// LoadOverrides reads a YAML overrides file. A missing path is not an
// error; it returns an empty override set.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return &Overrides{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Overrides{}, nil
		}
		return nil, eris.Wrapf(err, "schema: read overrides %s", path)
	}
	var o Overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, eris.Wrapf(err, "schema: parse overrides %s", path)
	}
	for name := range o.Keywords {
		if ByName(name) == nil {
			return nil, eris.Errorf("schema: overrides reference unknown field %q", name)
		}
	}
	return &o, nil
}

// Apply merges the override keywords into a field spec slice, prepending
// them so layout-specific labels win ties against the defaults.
func (o *Overrides) Apply(specs []FieldSpec) []FieldSpec {
	if o == nil || len(o.Keywords) == 0 {
		return specs
	}
	for i := range specs {
		if extra, ok := o.Keywords[specs[i].Name]; ok {
			specs[i].Keywords = append(append([]string{}, extra...), specs[i].Keywords...)
		}
	}
	return specs
}
