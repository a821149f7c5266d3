package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err and writes the error envelope. Internal details stay in the log.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewServerError(err)
	}
	h.errs.Handle(r.Context(), appErr.WithContext("path", r.URL.Path))

	writeJSON(w, appErr.Kind.Status(), domain.ErrorEnvelope{
		Error:   string(appErr.Kind),
		Code:    string(appErr.Kind),
		Message: appErr.Message,
	})
}

// RecoverMiddleware turns panics into server_error responses.
func RecoverMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "Panic in handler", "path", r.URL.Path, "panic", fmt.Sprint(rec))
					writeJSON(w, http.StatusInternalServerError, domain.ErrorEnvelope{
						Error:   string(apperrors.KindServer),
						Code:    string(apperrors.KindServer),
						Message: "Internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, falling back to the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// decodeBody reads at most limit bytes of JSON into v.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any, tooLarge apperrors.Kind) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Wrap(err, tooLarge, "Request body is too large")
		}
		return apperrors.Wrap(err, apperrors.KindInvalidJSON, "Request body is not valid JSON")
	}
	return nil
}
