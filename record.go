package llmgate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderRecord is a stored provider configuration, typically loaded from a
// YAML file or a database row.
type ProviderRecord struct {
	ID          int64   `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	AdapterType string  `yaml:"adapter_type" json:"adapter_type"`
	Options     Options `yaml:"options" json:"options"`
}

// LoadRecords reads provider records from a YAML file.
func LoadRecords(path string) ([]ProviderRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider records: %w", err)
	}

	var doc struct {
		Providers []ProviderRecord `yaml:"providers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse provider records: %w", err)
	}
	return doc.Providers, nil
}

// EnvSecretResolver resolves api_key_identifier values from environment
// variables, treating the identifier as the variable name.
type EnvSecretResolver struct{}

func (EnvSecretResolver) Resolve(identifier string) string {
	return os.Getenv(identifier)
}
