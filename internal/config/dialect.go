package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/vizmigrate/pkg/dialect"
	_ "github.com/leapstack-labs/vizmigrate/pkg/dialects/dax" // register the built-in target
)

// BuildDialect resolves the translation target by name and extends it with
// rules from rulesFile and with inline rule entries from the config file.
// Inline entries override file entries of the same name.
func BuildDialect(name, rulesFile string, inline []map[string]any) (*dialect.Dialect, error) {
	if name == "" {
		name = DefaultDialect
	}
	d, err := dialect.Lookup(name)
	if err != nil {
		return nil, err
	}

	var extra []dialect.Rule
	if rulesFile != "" {
		f, err := os.Open(rulesFile)
		if err != nil {
			return nil, fmt.Errorf("opening rules file: %w", err)
		}
		rules, err := dialect.LoadRules(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rulesFile, err)
		}
		extra = append(extra, rules...)
	}

	if len(inline) > 0 {
		// Round-trip through YAML so inline entries get the same decoding
		// and validation as a rules file.
		data, err := yaml.Marshal(map[string]any{"rules": inline})
		if err != nil {
			return nil, fmt.Errorf("encoding inline rules: %w", err)
		}
		rules, err := dialect.LoadRules(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("inline rules: %w", err)
		}
		extra = append(extra, rules...)
	}

	if len(extra) == 0 {
		return d, nil
	}
	return d.Extend(extra...)
}
