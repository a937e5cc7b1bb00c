package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/castradar/castradar/app/database"
)

// Definition is one ingestion source as declared in the sources directory.
// The source registry proper is an external collaborator; these files are how
// a deployment seeds it so the binary has something to sweep.
type Definition struct {
	Name       string `yaml:"-"` // derived from filename
	Type       string `yaml:"type"`
	Identifier string `yaml:"identifier"`
	Enabled    bool   `yaml:"enabled"`
}

type Loader struct {
	sourcesDir string
}

func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads all YAML source definitions, keyed by source name.
func (l *Loader) LoadAll() (map[string]*Definition, error) {
	definitions := make(map[string]*Definition)

	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return definitions, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	yamlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	for _, file := range files {
		definition, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(definition); err != nil {
			return nil, fmt.Errorf("invalid source definition %s: %w", file, err)
		}

		definitions[definition.Name] = definition
		slog.Debug("Source definition loaded", "source", definition.Name, "type", definition.Type, "enabled", definition.Enabled)
	}

	return definitions, nil
}

func (l *Loader) loadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var definition Definition
	if err := yaml.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fileName := filepath.Base(path)
	definition.Name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	definition.Type = strings.ToUpper(definition.Type)

	return &definition, nil
}

func (l *Loader) validate(definition *Definition) error {
	switch definition.Type {
	case database.SourceTypeWeb, database.SourceTypeWhatsApp, database.SourceTypeOther:
	default:
		return fmt.Errorf("unknown source type: %s", definition.Type)
	}

	if definition.Identifier == "" {
		return fmt.Errorf("source identifier is required")
	}

	return nil
}
