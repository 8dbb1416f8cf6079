package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store exposes persona preset retrieval for HTTP handlers and tools.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	normalized := make([]Persona, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, item.Normalize())
	}
	return &MemoryStore{items: normalized}
}

// List returns the preset list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

type presetFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile 从 YAML 文件加载面试官预设。
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file %s: %w", path, err)
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	if err := validatePresets(file.Personas); err != nil {
		return nil, fmt.Errorf("invalid persona file %s: %w", path, err)
	}
	return file.Personas, nil
}

func validatePresets(items []Persona) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one persona is required")
	}

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return fmt.Errorf("persona %d must have an id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate persona id %q", id)
		}
		seen[id] = struct{}{}

		if strings.TrimSpace(item.SystemPrompt) == "" {
			return fmt.Errorf("persona %q must have system_prompt", id)
		}
		if len(item.Topics) == 0 {
			return fmt.Errorf("persona %q must list topics_to_evaluate", id)
		}
	}
	return nil
}
