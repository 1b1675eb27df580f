package dialect

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of an extra rules file:
//
//	rules:
//	  - name: MYFUNC
//	    target: MYFUNC
//	    kind: direct
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules decodes and validates rules from YAML.
func LoadRules(r io.Reader) ([]Rule, error) {
	var f rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	out := make([]Rule, 0, len(f.Rules))
	for _, rule := range f.Rules {
		rule = rule.normalize()
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}
