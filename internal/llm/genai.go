package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m2tx/tutor_agent/internal/model"
	"google.golang.org/genai"
)

// GenAIGenerator implements Generator on the Gemini API.
type GenAIGenerator struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGenAIGenerator wraps an already constructed client. Every call is
// bounded by timeout when it is positive.
func NewGenAIGenerator(client *genai.Client, timeout time.Duration) *GenAIGenerator {
	return &GenAIGenerator{client: client, timeout: timeout}
}

// NewGenAIClient builds the Gemini client once at process start.
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: new client: %w", err)
	}
	return client, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toGenAIContents(req.Contents), buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("llm: generate %s: %w", req.Model, err)
	}

	return parseResponse(resp)
}

func buildConfig(req GenerateRequest) *genai.GenerateContentConfig {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}

	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}

	if len(req.Tools) > 0 {
		cfg.Tools = getTools(req.Tools)
		cfg.ToolConfig = getToolConfig(req.ToolMode, req.AllowedFunctions)
	}

	if req.ResponseSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.ResponseSchema
	}

	return cfg
}

func getTools(declarations []*FunctionDeclaration) []*genai.Tool {
	functions := make([]*genai.FunctionDeclaration, 0, len(declarations))

	for _, fd := range declarations {
		functions = append(functions, &genai.FunctionDeclaration{
			Name:                 fd.Name,
			Description:          fd.Description,
			ParametersJsonSchema: fd.ParametersSchema,
			ResponseJsonSchema:   fd.ResponseSchema,
		})
	}

	return []*genai.Tool{
		{
			FunctionDeclarations: functions,
		},
	}
}

func getToolConfig(mode ToolMode, allowed []string) *genai.ToolConfig {
	fc := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}

	switch mode {
	case ToolModeForced:
		fc.Mode = genai.FunctionCallingConfigModeAny
		fc.AllowedFunctionNames = allowed
	case ToolModeNone:
		fc.Mode = genai.FunctionCallingConfigModeNone
	}

	return &genai.ToolConfig{FunctionCallingConfig: fc}
}

// parseResponse reads the first candidate. Function calls win over text.
func parseResponse(resp *genai.GenerateContentResponse) (*GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrNoCandidates
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, ErrNoCandidates
	}

	out := &GenerateResponse{}
	var text strings.Builder

	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			out.FunctionCalls = append(out.FunctionCalls, model.FunctionCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		case part.Thought:
			// reasoning traces are not part of the answer
		default:
			text.WriteString(part.Text)
		}
	}

	out.Text = text.String()
	return out, nil
}

// toGenAIContents converts conversation turns to genai contents. Tool turns
// travel with the user role, which is how Gemini expects function responses.
func toGenAIContents(contents []model.Content) []*genai.Content {
	result := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		role := c.Role
		if role == model.RoleTool {
			role = model.RoleUser
		}

		gc := &genai.Content{Role: role, Parts: make([]*genai.Part, 0, len(c.Parts))}
		for _, p := range c.Parts {
			gp := &genai.Part{Text: p.Text}
			if p.Media != nil {
				gp.InlineData = &genai.Blob{
					MIMEType: p.Media.MIMEType,
					Data:     p.Media.Data,
				}
			}
			if p.FunctionCall != nil {
				gp.FunctionCall = &genai.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}
			}
			if p.FunctionResponse != nil {
				gp.FunctionResponse = &genai.FunctionResponse{
					ID:       p.FunctionResponse.ID,
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}
			}
			gc.Parts = append(gc.Parts, gp)
		}
		result = append(result, gc)
	}
	return result
}
