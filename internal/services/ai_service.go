package services

import (
	"context"
	"errors"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
	"github.com/vladimiradmaev/diabetes-companion/internal/safety"
)

// ChatProvider completes a conversation under a system prompt.
type ChatProvider interface {
	Name() string
	Complete(ctx context.Context, system string, history []domain.ChatMessage) (string, error)
}

// VisionProvider answers a prompt about one image.
type VisionProvider interface {
	Name() string
	AnalyzeImage(ctx context.Context, prompt string, img Image) (string, error)
}

// AIService builds provider requests and post-processes replies.
type AIService struct {
	chat   ChatProvider
	vision VisionProvider
}

func NewAIService(chat ChatProvider, vision VisionProvider) *AIService {
	return &AIService{chat: chat, vision: vision}
}

// Chat answers the conversation, appending the medical disclaimer to replies
// that mention a dose.
func (s *AIService) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	lang := domain.ParseLang(req.Lang)
	reply, err := s.chat.Complete(ctx, ChatSystemPrompt(lang, req.RecentContext), req.Messages)
	if err != nil {
		return "", apperrors.NewAIError(err, s.chat.Name())
	}
	return safety.WithDisclaimer(reply, lang), nil
}

// AnalyzeMeal estimates the nutrition of the meal in the image.
func (s *AIService) AnalyzeMeal(ctx context.Context, img Image, lang domain.Lang) (domain.VisionResult, error) {
	reply, err := s.vision.AnalyzeImage(ctx, VisionPrompt(lang), img)
	if err != nil {
		return domain.VisionResult{}, apperrors.NewAIError(err, s.vision.Name())
	}

	result, err := ParseVisionResult(reply)
	if err != nil {
		msg := "Could not read the meal analysis"
		if errors.Is(err, ErrNoJSON) {
			msg = "Meal analysis did not contain a result"
		}
		return domain.VisionResult{}, apperrors.Wrap(err, apperrors.KindParse, msg).
			WithContext("provider", s.vision.Name())
	}
	return result, nil
}
