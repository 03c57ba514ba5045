package agent

import (
	"fmt"
	"strings"

	"github.com/m2tx/tutor_agent/assets"
	"github.com/m2tx/tutor_agent/internal/model"
)

// Policy configures how one agent answers. The three agents share the same
// turn loop and differ only in these fields.
type Policy struct {
	Agent             model.AgentType
	Model             string
	SystemInstruction string
	Temperature       float32
	MaxOutputTokens   int32
	ToolsEnabled      bool
	TurnCeiling       int
	// SearchFirst amends the instruction and forces an initial search when
	// the router predicts the answer depends on the student's materials.
	SearchFirst bool
}

// Models names the model tier used by each agent.
type Models struct {
	Answer      string
	Explanation string
	General     string
}

// DefaultPolicies returns the answering, explanation and general policies.
func DefaultPolicies(m Models) map[model.AgentType]Policy {
	return map[model.AgentType]Policy{
		model.AgentQuestionAnswering: {
			Agent:             model.AgentQuestionAnswering,
			Model:             m.Answer,
			SystemInstruction: assets.QuestionAnsweringInstruction,
			Temperature:       0.3,
			MaxOutputTokens:   2048,
			ToolsEnabled:      true,
			TurnCeiling:       5,
		},
		model.AgentExplanation: {
			Agent:             model.AgentExplanation,
			Model:             m.Explanation,
			SystemInstruction: assets.ExplanationInstruction,
			Temperature:       0.7,
			MaxOutputTokens:   8192,
			ToolsEnabled:      true,
			TurnCeiling:       3,
			SearchFirst:       true,
		},
		model.AgentGeneral: {
			Agent:             model.AgentGeneral,
			Model:             m.General,
			SystemInstruction: assets.GeneralInstruction,
			Temperature:       0.7,
			MaxOutputTokens:   1024,
			TurnCeiling:       1,
		},
	}
}

// instruction builds the system instruction for one request and reports
// whether the first call must search.
func (p Policy) instruction(decision model.RouterDecision) (string, bool) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.SystemInstruction))

	if decision.DetectedLanguage != "" {
		fmt.Fprintf(&b, "\n\nThe student writes in %s (%s). Respond in that language.",
			languageName(decision.DetectedLanguage), decision.DetectedLanguage)
	}

	searchFirst := p.ToolsEnabled && p.SearchFirst && decision.LikelyNeedsDocuments
	if searchFirst {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(assets.SearchFirstDirective))
	}

	return b.String(), searchFirst
}
