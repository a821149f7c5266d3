// Package api exposes the quota-gated AI endpoints, the entitlement endpoint
// and the billing webhook over HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/vladimiradmaev/diabetes-companion/internal/auth"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/entitlement"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
	"github.com/vladimiradmaev/diabetes-companion/internal/gate"
	"github.com/vladimiradmaev/diabetes-companion/internal/safety"
	"github.com/vladimiradmaev/diabetes-companion/internal/services"
)

const (
	maxChatBody    = 1 << 20
	maxVisionBody  = 8 << 20
	maxWebhookBody = 64 << 10
)

type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

type VisionService interface {
	AnalyzeMeal(ctx context.Context, img services.Image, lang domain.Lang) (domain.VisionResult, error)
}

type Gatekeeper interface {
	Run(ctx context.Context, req gate.Request, op func(ctx context.Context) error) error
}

type EntitlementResolver interface {
	Resolve(ctx context.Context, token string) domain.Entitlement
}

type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) error
}

// Deps wires the handlers. Chat or Vision left nil means the provider key is
// missing and the endpoint answers config_error.
type Deps struct {
	Chat         ChatService
	Vision       VisionService
	Gate         Gatekeeper
	Verifier     domain.IdentityVerifier
	Entitlements EntitlementResolver
	Billing      WebhookProcessor
	Logger       *slog.Logger
}

type Handlers struct {
	deps Deps
	log  *slog.Logger
	errs *apperrors.Handler
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps, log: deps.Logger, errs: apperrors.NewHandler(deps.Logger)}
}

// NewRouter mounts every endpoint behind panic recovery and CORS.
func NewRouter(h *Handlers, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ai-chat", h.Chat)
	mux.HandleFunc("/ai-vision", h.Vision)
	mux.HandleFunc("/entitlement", h.Entitlement)
	if h.deps.Billing != nil {
		mux.HandleFunc("/billing/stripe", h.StripeWebhook)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return CORSMiddleware(allowedOrigins)(RecoverMiddleware(h.log)(mux))
}

// Chat handles POST /ai-chat.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, apperrors.New(apperrors.KindMethodNotAllowed, "Only POST is allowed"))
		return
	}
	if h.deps.Chat == nil {
		h.writeError(w, r, apperrors.New(apperrors.KindConfig, "AI chat is not configured"))
		return
	}
	token := auth.BearerToken(r)
	if token == "" {
		h.writeError(w, r, apperrors.New(apperrors.KindAuthRequired, "Authorization required"))
		return
	}

	var req domain.ChatRequest
	if err := decodeBody(w, r, maxChatBody, &req, apperrors.KindInvalidRequest); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, r, apperrors.NewInvalidRequest("messages must be a non-empty array"))
		return
	}
	lang := domain.ParseLang(req.Lang)

	if safety.IsCrisis(req.LastUserMessage()) {
		h.log.Warn("Crisis language detected, returning crisis resources", "path", r.URL.Path)
		writeJSON(w, http.StatusOK, domain.ChatResponse{Text: safety.CrisisMessage(lang)})
		return
	}

	userID, err := h.deps.Verifier.Verify(r.Context(), token)
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(err, apperrors.KindInvalidToken, "Invalid or expired token"))
		return
	}

	var text string
	err = h.deps.Gate.Run(r.Context(), gate.Request{
		UserID:   userID,
		Feature:  domain.FeatureChat,
		Limit:    entitlement.QuotasFor(domain.PlanFree).ChatPerDay,
		ClientIP: ClientIP(r),
		Lang:     lang,
	}, func(ctx context.Context) error {
		var err error
		text, err = h.deps.Chat.Chat(ctx, req)
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ChatResponse{Text: text})
}

// Vision handles POST /ai-vision.
func (h *Handlers) Vision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, apperrors.New(apperrors.KindMethodNotAllowed, "Only POST is allowed"))
		return
	}
	if h.deps.Vision == nil {
		h.writeError(w, r, apperrors.New(apperrors.KindConfig, "AI vision is not configured"))
		return
	}
	token := auth.BearerToken(r)
	if token == "" {
		h.writeError(w, r, apperrors.New(apperrors.KindAuthRequired, "Authorization required"))
		return
	}

	var req domain.VisionRequest
	if err := decodeBody(w, r, maxVisionBody, &req, apperrors.KindImageTooLarge); err != nil {
		h.writeError(w, r, err)
		return
	}
	img, err := validateImage(req.ImageDataURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lang := domain.ParseLang(req.Lang)

	userID, err := h.deps.Verifier.Verify(r.Context(), token)
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(err, apperrors.KindInvalidToken, "Invalid or expired token"))
		return
	}

	var result domain.VisionResult
	err = h.deps.Gate.Run(r.Context(), gate.Request{
		UserID:   userID,
		Feature:  domain.FeatureVision,
		Limit:    entitlement.QuotasFor(domain.PlanFree).VisionPerDay,
		ClientIP: ClientIP(r),
		Lang:     lang,
	}, func(ctx context.Context) error {
		var err error
		result, err = h.deps.Vision.AnalyzeMeal(ctx, img, lang)
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func validateImage(dataURL string) (services.Image, error) {
	if dataURL == "" {
		return services.Image{}, apperrors.NewInvalidRequest("imageDataUrl is required")
	}
	size, err := services.EstimateDecodedSize(dataURL)
	if err != nil {
		return services.Image{}, apperrors.Wrap(err, apperrors.KindInvalidRequest, "imageDataUrl must be a base64 image data URL")
	}
	if size > services.MaxImageBytes {
		return services.Image{}, apperrors.New(apperrors.KindImageTooLarge, "Image must be 4 MB or smaller").
			WithContext("size", size)
	}
	img, err := services.DecodeDataURL(dataURL)
	if err != nil {
		return services.Image{}, apperrors.Wrap(err, apperrors.KindInvalidRequest, "imageDataUrl could not be decoded")
	}
	return img, nil
}

// Entitlement handles /entitlement. It never rejects: unauthenticated callers
// get the free view.
func (h *Handlers) Entitlement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Entitlements.Resolve(r.Context(), auth.BearerToken(r)))
}

// StripeWebhook handles POST /billing/stripe.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, apperrors.New(apperrors.KindMethodNotAllowed, "Only POST is allowed"))
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(err, apperrors.KindInvalidRequest, "Failed to read request body"))
		return
	}
	if err := h.deps.Billing.Process(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
