package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

func TestEntitlement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entitlement", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(domain.Entitlement{
			IsPro:  true,
			Plan:   domain.PlanPro,
			Quotas: domain.Quotas{ChatPerDay: 999, VisionPerDay: 999, AIMemory: true},
			Usage:  domain.Usage{DailyChatCount: 3, LastResetDate: "2026-01-02"},
		})
	}))
	defer srv.Close()

	ent, err := New(srv.URL+"/", "tok", time.Second).Entitlement(context.Background())
	require.NoError(t, err)
	assert.True(t, ent.IsPro)
	assert.Equal(t, 3, ent.Usage.DailyChatCount)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req domain.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "en", req.Lang)
		if assert.NotNil(t, req.RecentContext) && assert.NotNil(t, req.RecentContext.Stats) {
			assert.Equal(t, 130, req.RecentContext.Stats.AvgGlucose)
		}
		_ = json.NewEncoder(w).Encode(domain.ChatResponse{Text: "echo: " + req.LastUserMessage()})
	}))
	defer srv.Close()

	text, err := New(srv.URL, "tok", time.Second).Chat(context.Background(), domain.ChatRequest{
		Messages:      []domain.ChatMessage{{Role: "user", Content: "hello"}},
		Lang:          "en",
		RecentContext: &domain.RecentContext{Stats: &domain.RecentStats{AvgGlucose: 130}},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", text)
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"quota_exceeded","code":"quota_exceeded","message":"0 remaining"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok", time.Second).Chat(context.Background(), domain.ChatRequest{})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "quota_exceeded", apiErr.Kind)
	assert.Equal(t, "0 remaining", apiErr.Message)
}

func TestNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Entitlement(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Gateway", apiErr.Kind)
}

func TestAnonymousHasNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(domain.Entitlement{Plan: domain.PlanFree})
	}))
	defer srv.Close()

	ent, err := New(srv.URL, "", time.Second).Entitlement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, ent.Plan)
}
