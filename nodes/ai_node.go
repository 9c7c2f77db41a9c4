package nodes

import (
	"context"
	"fmt"
	"strings"

	"nodeflow"
	"nodeflow/llm"
)

// PromptRequired is reported on the error socket when no prompt is given.
const PromptRequired = "Prompt is required for AI Node."

// AIService completes prompts for AI nodes. Every llm.Client satisfies it.
type AIService interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
}

// AIExecutor sends the prompt to an AIService and fires either response or
// error. Backend failures are reported on the error socket and never fail
// the run.
type AIExecutor struct {
	service AIService
}

func NewAIExecutor(service AIService) *AIExecutor {
	if service == nil {
		service = llm.NewMockClient()
	}
	return &AIExecutor{service: service}
}

func (a *AIExecutor) Execute(ctx context.Context, node Node, ec *ExecutionContext, _ Services, edges []Edge, nodes []Node) (Outputs, error) {
	prompt, ok := ec.GetInput(node.ID, "prompt", edges, nodes)
	if !ok || prompt == nil || strings.TrimSpace(toString(prompt)) == "" {
		prompt, _ = node.ConfigValue("prompt")
	}
	system, ok := ec.GetInput(node.ID, "systemPrompt", edges, nodes)
	if !ok || system == nil {
		system, _ = node.ConfigValue("systemPrompt")
	}
	model, _ := node.ConfigValue("selectedModelId")

	ec.AddLog(fmt.Sprintf("AiNode '%s': Executing with Prompt: %q, System Prompt: %q, Model ID: %s", node.ID, toString(prompt), toString(system), toString(model)), node.ID,
		map[string]any{"promptValue": prompt, "systemPromptValue": system, "modelIdValue": model})

	if falsy(prompt) || strings.TrimSpace(toString(prompt)) == "" {
		ec.AddLog(fmt.Sprintf("AiNode '%s': Error - %s", node.ID, PromptRequired), node.ID, map[string]any{"promptValue": prompt})
		return Outputs{"error": PromptRequired}, nil
	}

	req := llm.Request{Prompt: toString(prompt)}
	if system != nil {
		req.SystemPrompt = toString(system)
	}
	if model != nil {
		req.ModelID = toString(model)
	}

	resp, err := a.service.Complete(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		ec.AddLog(fmt.Sprintf("AiNode '%s': Exception during API call.", node.ID), node.ID, map[string]any{"error": err.Error()})
		return Outputs{"error": err.Error()}, nil
	}
	if resp.Error != "" {
		ec.AddLog(fmt.Sprintf("AiNode '%s': API returned an error.", node.ID), node.ID, map[string]any{"error": resp.Error})
		return Outputs{"error": resp.Error}, nil
	}

	ec.AddLog(fmt.Sprintf("AiNode '%s': API returned a response.", node.ID), node.ID, map[string]any{"response": resp.Response})
	return Outputs{"response": resp.Response}, nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeAI,
		Label:       "AI Task",
		Description: "Performs an AI task with a given prompt.",
		Category:    "AI",
		Inputs: []nodeflow.Socket{
			socket("prompt", nodeflow.SocketString, "Prompt"),
			socket("systemPrompt", nodeflow.SocketString, "System Prompt (Optional)"),
		},
		Outputs: []nodeflow.Socket{
			socket("response", nodeflow.SocketString, "Response"),
			socket("error", nodeflow.SocketString, "Error (Optional)"),
		},
		Defaults: map[string]any{
			"prompt":          "Translate the following text to French: {{input.prompt}}",
			"systemPrompt":    "You are a helpful AI assistant.",
			"selectedModelId": nil,
			"mockResponse":    "This is a mock AI response.",
		},
	})
}
