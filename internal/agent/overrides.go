package agent

import (
	"fmt"
	"io"
	"os"

	"github.com/m2tx/tutor_agent/internal/model"
	"gopkg.in/yaml.v3"
)

// PolicyOverride changes selected fields of one agent's policy. Zero values
// leave the default in place.
type PolicyOverride struct {
	Model           string   `yaml:"model"`
	Temperature     *float32 `yaml:"temperature"`
	MaxOutputTokens int32    `yaml:"max_output_tokens"`
	TurnCeiling     int      `yaml:"turn_ceiling"`
}

// LoadPolicyOverrides reads overrides keyed by agent type from a YAML file
// and applies them to policies. A missing path is not an error.
func LoadPolicyOverrides(path string, policies map[model.AgentType]Policy) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("policies: %w", err)
	}
	defer f.Close()

	return ApplyPolicyOverrides(f, policies)
}

// ApplyPolicyOverrides decodes YAML overrides from r into policies.
func ApplyPolicyOverrides(r io.Reader, policies map[model.AgentType]Policy) error {
	var overrides map[model.AgentType]PolicyOverride
	if err := yaml.NewDecoder(r).Decode(&overrides); err != nil && err != io.EOF {
		return fmt.Errorf("policies: decode: %w", err)
	}

	for agentType, o := range overrides {
		p, ok := policies[agentType]
		if !ok {
			return fmt.Errorf("policies: unknown agent %q", agentType)
		}
		if o.Model != "" {
			p.Model = o.Model
		}
		if o.Temperature != nil {
			p.Temperature = *o.Temperature
		}
		if o.MaxOutputTokens > 0 {
			p.MaxOutputTokens = o.MaxOutputTokens
		}
		// general stays single-call
		if o.TurnCeiling > 0 && p.ToolsEnabled {
			p.TurnCeiling = o.TurnCeiling
		}
		policies[agentType] = p
	}
	return nil
}
