package functions

import (
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/model"
)

const SelectAgentName = "select_agent"

// CreateSelectAgentFunctionDeclaration is the router's only output channel.
// It has no handler: the router reads the arguments directly.
func CreateSelectAgentFunctionDeclaration() *llm.FunctionDeclaration {
	return &llm.FunctionDeclaration{
		Name:        SelectAgentName,
		Description: "Selects the agent that will answer the student's latest message.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agentType": map[string]any{
					"type": "string",
					"enum": []string{
						string(model.AgentQuestionAnswering),
						string(model.AgentExplanation),
						string(model.AgentGeneral),
					},
					"description": "The agent best suited to the message",
				},
				"reasoning": map[string]any{
					"type":        "string",
					"description": "One sentence explaining the choice",
				},
				"detectedLanguage": map[string]any{
					"type":        "string",
					"description": "ISO 639-1 code of the student's language, empty when unsure",
				},
				"likelyNeedsDocuments": map[string]any{
					"type":        "boolean",
					"description": "Whether answering probably requires the student's course materials",
				},
			},
			"required": []string{"agentType", "reasoning"},
		},
	}
}
