// Package llm adapts a local OpenAI-compatible model server into the
// resolution engine's Disambiguator. The model runs on the device itself;
// the base URL is always a loopback address and no request ever leaves the
// machine. Prompts contain site names only, never credentials.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"blackbox/internal/catalog"
)

const systemPrompt = `
You match a possibly garbled spoken site name against a short list of known sites.
The spoken text comes from speech recognition and may be misheard ("jimale" for "gmail").

RULES:
1. Output ONLY JSON. No markdown, no explanations.
2. Pick the single best matching site id from the CANDIDATES list.
3. If none of the candidates plausibly match, output null.
4. Never invent a site id that is not in the list.

OUTPUT FORMAT:
{"site": "<candidate id or null>"}
`

// pick is the strict response shape the model must produce.
type pick struct {
	Site *string `json:"site"`
}

// Client calls the local model server. It implements resolve.Disambiguator.
type Client struct {
	api   openai.Client
	model string
}

// New builds a disambiguator against an OpenAI-compatible endpoint. The API
// key is optional; local servers usually accept any value.
func New(baseURL, model string) *Client {
	return &Client{
		api:   openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey("local")),
		model: model,
	}
}

// Disambiguate asks the model to pick one candidate id for fragment. An
// empty return with nil error means the model declined every candidate.
func (c *Client) Disambiguate(ctx context.Context, fragment string, candidates []catalog.Entry) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(fragment, candidates)),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(32),
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm: empty message content")
	}

	var out pick
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("llm: unmarshal pick: %w (raw: %s)", err, content)
	}
	if out.Site == nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(*out.Site)), nil
}

func userPrompt(fragment string, candidates []catalog.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SPOKEN: %q\nCANDIDATES:\n", fragment)
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id=%q aliases=%q\n", c.ID, strings.Join(c.Aliases, ", "))
	}
	return b.String()
}
