package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/m2tx/tutor_agent/internal/model"
)

// ErrNoCandidates is returned when the reasoning service answers with nothing usable.
var ErrNoCandidates = errors.New("llm: response has no candidates")

// ToolMode controls how the model may use the declared tools.
type ToolMode int

const (
	// ToolModeAuto lets the model decide between text and a tool call.
	ToolModeAuto ToolMode = iota
	// ToolModeForced requires exactly one call to one of AllowedFunctions.
	ToolModeForced
	// ToolModeNone disables tool calls even if tools are declared.
	ToolModeNone
)

// Generator is the reasoning-service boundary.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single reasoning-service call.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	Tools             []*FunctionDeclaration
	ToolMode          ToolMode
	AllowedFunctions  []string
	Temperature       float32
	MaxOutputTokens   int32
	// ResponseSchema constrains the output to JSON matching the schema.
	ResponseSchema any
	Contents       []model.Content
}

// GenerateResponse carries either text or tool invocations.
type GenerateResponse struct {
	Text          string
	FunctionCalls []model.FunctionCall
}

// HasFunctionCalls reports whether the model asked for a tool.
func (r *GenerateResponse) HasFunctionCalls() bool {
	return r != nil && len(r.FunctionCalls) > 0
}

// FunctionDeclaration is a tool the model may call, with its Go handler.
type FunctionDeclaration struct {
	Name             string
	Description      string
	ParametersSchema any
	ResponseSchema   any
	FunctionCall     FunctionCallFn
}

type FunctionCallFn func(ctx context.Context, args map[string]any) (map[string]any, error)

// Validate checks a declaration before it is offered to the model.
func (fd *FunctionDeclaration) Validate() error {
	if fd == nil {
		return fmt.Errorf("function declaration cannot be nil")
	}

	if fd.Name == "" {
		return fmt.Errorf("function name cannot be empty")
	}

	if fd.FunctionCall == nil {
		return fmt.Errorf("function call implementation cannot be nil")
	}

	return nil
}
