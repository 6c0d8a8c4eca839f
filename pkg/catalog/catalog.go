// Package catalog loads flag and experiment definitions from YAML
// documents. Documents are validated against a JSON Schema before any
// domain object is constructed, so structural errors surface with
// schema paths instead of half-built registries. The catalog is
// read-only input, fixed for the life of the process.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/experiment"
	"github.com/driftline/rollout/pkg/flag"
)

// Document is the on-disk shape of a catalog.
type Document struct {
	Flags       []FlagDef               `yaml:"flags" json:"flags"`
	Experiments []experiment.Experiment `yaml:"experiments" json:"experiments"`
}

// FlagDef is the on-disk shape of one flag definition.
type FlagDef struct {
	ID                string          `yaml:"id" json:"id"`
	Description       string          `yaml:"description,omitempty" json:"description,omitempty"`
	Environments      map[string]bool `yaml:"environments" json:"environments"`
	RolloutPercentage *float64        `yaml:"rollout_percentage,omitempty" json:"rollout_percentage,omitempty"`
}

// Catalog is the constructed, validated result.
type Catalog struct {
	Registry    *flag.Registry
	Experiments []experiment.Experiment
}

// Experiment looks up an experiment definition by id.
func (c *Catalog) Experiment(id string) (experiment.Experiment, bool) {
	for _, e := range c.Experiments {
		if e.ID == id {
			return e, true
		}
	}
	return experiment.Experiment{}, false
}

const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "flags": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "environments"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "environments": {
            "type": "object",
            "additionalProperties": {"type": "boolean"}
          },
          "rollout_percentage": {"type": "number", "minimum": 0, "maximum": 100}
        },
        "additionalProperties": false
      }
    },
    "experiments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "rollout_percentage", "variants"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "rollout_percentage": {"type": "number", "minimum": 0, "maximum": 100},
          "status": {"enum": ["draft", "running", "paused", "completed"]},
          "variants": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["id", "base_conversion_rate"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "name": {"type": "string"},
                "base_conversion_rate": {"type": "number", "minimum": 0, "maximum": 100}
              },
              "additionalProperties": false
            }
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://driftline.schemas.local/rollout/catalog.schema.json"
	if err := c.AddResource(url, strings.NewReader(documentSchema)); err != nil {
		panic(fmt.Sprintf("catalog schema load failed: %v", err))
	}
	s, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("catalog schema compile failed: %v", err))
	}
	return s
}

// Load reads and parses a catalog document from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %q: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %q: %w", path, err)
	}
	return cat, nil
}

// Parse validates a YAML catalog document against the schema and
// constructs the registry and experiment definitions.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	// Round-trip through JSON so the schema validator sees the value
	// types it is specified over.
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize catalog document: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(jsonBytes, &normalized); err != nil {
		return nil, fmt.Errorf("normalize catalog document: %w", err)
	}
	if err := compiledSchema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("catalog schema validation: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog document: %w", err)
	}
	return build(doc)
}

func build(doc Document) (*Catalog, error) {
	flags := make([]flag.FeatureFlag, 0, len(doc.Flags))
	for _, def := range doc.Flags {
		gates := make(map[environment.Environment]bool, len(def.Environments))
		for name, enabled := range def.Environments {
			env, err := environment.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("flag %q: %w", def.ID, err)
			}
			gates[env] = enabled
		}
		flags = append(flags, flag.FeatureFlag{
			ID:                   def.ID,
			Description:          def.Description,
			EnabledByEnvironment: gates,
			RolloutPercentage:    def.RolloutPercentage,
		})
	}

	registry, err := flag.NewRegistry(flags...)
	if err != nil {
		return nil, err
	}

	for _, exp := range doc.Experiments {
		if err := exp.Validate(); err != nil {
			return nil, err
		}
	}

	return &Catalog{Registry: registry, Experiments: doc.Experiments}, nil
}
