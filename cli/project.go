package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// projectConfig mirrors aotq.yaml at the project root. Every field is
// optional; the zero value runs the generator with defaults.
type projectConfig struct {
	Module string `yaml:"module"`
	// SchemaDir overrides the schema directory, "schema" by default.
	SchemaDir string `yaml:"schema_dir"`
	// NamedQueries is the path of a properties-format named query resource.
	NamedQueries string `yaml:"named_queries"`
	// Properties feed the metamodel bootstrap (dialect selection and
	// similar switches).
	Properties map[string]string `yaml:"properties"`
	// Query tunes derived-query rendering.
	Query struct {
		// IgnoreCase is "upper" or "lower", the case-folding function
		// wrapped around ignore-case comparisons.
		IgnoreCase string `yaml:"ignore_case"`
		// Escape is the LIKE escape character, backslash by default.
		Escape string `yaml:"escape"`
	} `yaml:"query"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Observability struct {
		EmitSpans bool `yaml:"emit_spans"`
	} `yaml:"observability"`
}

const configFileName = "aotq.yaml"

func loadProjectConfig(root string) (projectConfig, error) {
	path := filepath.Join(root, configFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return projectConfig{}, nil
		}
		return projectConfig{}, err
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return projectConfig{}, err
	}
	return cfg, nil
}

func detectModule(root string) string {
	if cfg, err := loadProjectConfig(root); err == nil && cfg.Module != "" {
		return cfg.Module
	}
	return moduleFromGoMod(root)
}

func moduleFromGoMod(root string) string {
	raw, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}

func writeFileOnce(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}
