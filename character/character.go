// Package character loads character files: the persona definition plus the
// rolling summaries that seed the semantic store.
package character

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-persona/core"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid character")

// File is the on-disk character format, YAML or JSON.
type File struct {
	Name             string   `json:"name" yaml:"name" jsonschema_description:"The character's name, used to label its lines."`
	LongDescription  string   `json:"long_description" yaml:"long_description" jsonschema_description:"First-person description of the character."`
	Greeting         string   `json:"greeting" yaml:"greeting" jsonschema_description:"Opening line shown before the first human message."`
	RollingSummaries []string `json:"rolling_summaries,omitempty" yaml:"rolling_summaries,omitempty" jsonschema_description:"Story snippets, in order, seeded into the semantic store."`
}

// Definition returns the immutable character definition.
func (f *File) Definition() core.CharacterDefinition {
	return core.CharacterDefinition{
		Name:            f.Name,
		LongDescription: f.LongDescription,
		Greeting:        f.Greeting,
	}
}

// Summaries returns a copy of the rolling summaries.
func (f *File) Summaries() []string {
	return append([]string(nil), f.RollingSummaries...)
}

// Validate reports missing required fields.
func (f *File) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(f.LongDescription) == "" {
		missing = append(missing, "long_description")
	}
	if strings.TrimSpace(f.Greeting) == "" {
		missing = append(missing, "greeting")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// Load reads and validates a character file. Files ending in .json are
// decoded as JSON, anything else as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read character file: %w", err)
	}

	var f *File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err = ParseJSON(data)
	} else {
		f, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseYAML decodes and validates a YAML character.
func ParseYAML(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseJSON decodes and validates a JSON character.
func ParseJSON(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Schema returns the JSON Schema of the character file format.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&File{})
	s.Title = "Character"
	s.Required = []string{"name", "long_description", "greeting"}

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
