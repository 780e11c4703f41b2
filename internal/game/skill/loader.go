package skill

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/corsair/internal/game/ruleset"
)

// skillDoc is the YAML shape of one catalog entry.
type skillDoc struct {
	ID            string          `yaml:"id"`
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description"`
	RequiredLevel int             `yaml:"required_level"`
	Classes       []ruleset.Class `yaml:"classes"`
	Cooldown      int             `yaml:"cooldown"`
	Effect        effectDoc       `yaml:"effect"`
}

type fileDoc struct {
	Skills []skillDoc `yaml:"skills"`
}

// LoadDirectory reads every *.yaml file in dir (in name order), parses its `skills` list,
// and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error naming the first file or skill
// that failed to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading skill dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		if err := loadInto(reg, data); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
	}
	return reg, nil
}

// Parse builds a Registry from a single YAML document.
func Parse(data []byte) (*Registry, error) {
	reg := NewRegistry()
	if err := loadInto(reg, data); err != nil {
		return nil, err
	}
	return reg, nil
}

func loadInto(reg *Registry, data []byte) error {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	for _, sd := range doc.Skills {
		effect, err := sd.Effect.toEffect()
		if err != nil {
			return fmt.Errorf("skill %q: %w", sd.ID, err)
		}
		s := &Skill{
			ID:            sd.ID,
			Name:          sd.Name,
			Description:   sd.Description,
			RequiredLevel: sd.RequiredLevel,
			Classes:       sd.Classes,
			Cooldown:      sd.Cooldown,
			Effect:        effect,
		}
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}
