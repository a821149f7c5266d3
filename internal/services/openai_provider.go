package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

// maxHistory bounds how many prior turns are forwarded to the model.
const maxHistory = 20

var errEmptyCompletion = errors.New("provider returned no choices")

// OpenAIProvider serves chat and vision through the OpenAI chat completions API.
type OpenAIProvider struct {
	client      *openai.Client
	chatModel   string
	visionModel string
}

// NewOpenAIProvider creates a provider. A non-empty baseURL points the client
// at a compatible gateway.
func NewOpenAIProvider(apiKey, baseURL, chatModel, visionModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		chatModel:   chatModel,
		visionModel: visionModel,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Complete sends the system prompt followed by the conversation.
func (p *OpenAIProvider) Complete(ctx context.Context, system string, history []domain.ChatMessage) (string, error) {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Messages:    messages,
		Temperature: 0.4,
		MaxTokens:   800,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// AnalyzeImage sends the prompt and the image as a data URL part.
func (p *OpenAIProvider) AnalyzeImage(ctx context.Context, prompt string, img Image) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    img.DataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0.2,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
