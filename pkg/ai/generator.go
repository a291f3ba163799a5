package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM backends (Gemini, Ollama, OpenAI-compatible) implement this
// interface; the recommendation pipeline is built on top of it.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
