package workspace

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name of a composite build definition.
const ManifestFile = "canopy.yaml"

// Manifest is the on-disk definition of one composite build.
type Manifest struct {
	Name        string                    `yaml:"name,omitempty" mapstructure:"name"`
	Description string                    `yaml:"description,omitempty" mapstructure:"description"`
	Tasks       []TaskManifest            `yaml:"tasks,omitempty" mapstructure:"tasks"`
	Includes    []IncludeManifest         `yaml:"includes,omitempty" mapstructure:"includes"`
	Templates   map[string][]TaskManifest `yaml:"templates,omitempty" mapstructure:"templates"`
}

// TaskManifest declares one task.
//
// Exactly one shape applies: "alias" makes an alias task, "aggregate: true"
// an aggregate task, anything else a primitive task running "run".
type TaskManifest struct {
	Name        string   `yaml:"name" mapstructure:"name"`
	Description string   `yaml:"description,omitempty" mapstructure:"description"`
	Group       string   `yaml:"group,omitempty" mapstructure:"group"`
	Run         Command  `yaml:"run,omitempty" mapstructure:"run"`
	Aggregate   bool     `yaml:"aggregate,omitempty" mapstructure:"aggregate"`
	Alias       string   `yaml:"alias,omitempty" mapstructure:"alias"`
	Exclusive   []string `yaml:"exclusive,omitempty" mapstructure:"exclusive"`
}

// IncludeManifest declares one or more included builds.
type IncludeManifest struct {
	// Path is the child directory relative to the including build.
	// With Pattern it is the parent directory of the generated children.
	Path string `yaml:"path,omitempty" mapstructure:"path"`

	// Name overrides the child name (defaults to the last Path segment).
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Pattern generates several children, e.g. "Chapter{1..6}".
	Pattern string `yaml:"pattern,omitempty" mapstructure:"pattern"`

	// Tasks maps parent aggregate task names to child task names.
	Tasks map[string]string `yaml:"tasks,omitempty" mapstructure:"tasks"`

	// Aggregate defaults to true.
	Aggregate *bool `yaml:"aggregate,omitempty" mapstructure:"aggregate"`

	// Template names a task list from the templates of this build or an ancestor.
	Template string `yaml:"template,omitempty" mapstructure:"template"`

	// Project defines the child inline.
	Project *Manifest `yaml:"project,omitempty" mapstructure:"project"`
}

// Command is an argv. In YAML it may be written as a list or as a single
// string split on whitespace.
type Command []string

var commandType = reflect.TypeOf(Command{})

func commandHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != commandType || from.Kind() != reflect.String {
		return data, nil
	}
	return Command(strings.Fields(data.(string))), nil
}

// ParseManifest decodes a canopy.yaml document.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidManifest)
	}
	return DecodeManifest(raw)
}

// DecodeManifest decodes a manifest from a generic map (YAML document or
// front matter). Unknown keys are rejected.
func DecodeManifest(raw map[string]any) (*Manifest, error) {
	var m Manifest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  commandHook,
		ErrorUnused: true,
		Result:      &m,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}
	return &m, nil
}
