package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
)

type stubProvider struct {
	reply  string
	err    error
	system string
	prompt string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, system string, _ []domain.ChatMessage) (string, error) {
	s.system = system
	return s.reply, s.err
}

func (s *stubProvider) AnalyzeImage(_ context.Context, prompt string, _ Image) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`},
		{"prose around", `Sure! {"a":1} and then {"b":2}`, `{"a":1}`},
		{"brace in string", `{"notes":"looks like a } smile {","a":1}`, `{"notes":"looks like a } smile {","a":1}`},
		{"escaped quote", `{"notes":"say \"hi}\"","a":1}`, `{"notes":"say \"hi}\"","a":1}`},
		{"unbalanced", `{"a":1`, ""},
		{"none", "I cannot analyze this image.", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestParseVisionResultDefaults(t *testing.T) {
	got, err := ParseVisionResult("Here you go:\n```json\n{\"total_carbs_g\": 42.5, \"items\": [{\"name\": \"pilav\", \"carbs_g\": 42.5}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.TotalCarbsG)
	assert.Equal(t, "medium", got.GlycemicImpact)
	assert.Equal(t, "low", got.Confidence)
	assert.Equal(t, "", got.Notes)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "pilav", got.Items[0].Name)

	got, err = ParseVisionResult(`{"items": null, "glycemicImpact": "high"}`)
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Equal(t, "high", got.GlycemicImpact)
}

func TestParseVisionResultErrors(t *testing.T) {
	_, err := ParseVisionResult("no json at all")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseVisionResult(`{"items": "rice", "total_carbs_g": 40}`)
	assert.Error(t, err)
}

func TestParseVisionResultStringNumbers(t *testing.T) {
	got, err := ParseVisionResult(`{
		"items": [{"name": "mercimek", "carbs_g": "30g"}],
		"total_carbs_g": "45",
		"total_calories": "520 kcal",
		"total_fat_g": "12,5",
		"total_protein_g": "lots",
		"confidence": "high"
	}`)
	require.NoError(t, err)
	assert.Equal(t, 45.0, got.TotalCarbsG)
	assert.Equal(t, 520.0, got.TotalCalories)
	assert.Equal(t, 12.5, got.TotalFatG)
	assert.Zero(t, got.TotalProteinG)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 30.0, got.Items[0].CarbsG)
	assert.Equal(t, "high", got.Confidence)
	assert.Equal(t, "medium", got.GlycemicImpact)
}

func TestDataURL(t *testing.T) {
	payload := []byte("not really a jpeg but close enough")
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	n, err := EstimateDecodedSize(url)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, payload, img.Data)
	assert.Equal(t, "png", img.Subtype())

	for _, bad := range []string{"https://example.com/a.jpg", "data:text/plain;base64,aGk=", "data:image/jpeg,raw"} {
		_, err := EstimateDecodedSize(bad)
		assert.ErrorIs(t, err, ErrNotDataURL, bad)
	}
}

func TestEstimateDecodedSizeUnpadded(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 5, 100} {
		raw := base64.RawStdEncoding.EncodeToString(make([]byte, size))
		n, err := EstimateDecodedSize("data:image/jpeg;base64," + raw)
		require.NoError(t, err)
		assert.Equal(t, size, n)
	}
}

func TestChatSystemPrompt(t *testing.T) {
	assert.Equal(t, chatSystemTR, ChatSystemPrompt(domain.LangTR, nil))
	assert.Equal(t, chatSystemEN, ChatSystemPrompt(domain.LangEN, &domain.RecentContext{}))

	rc := &domain.RecentContext{
		Stats:         &domain.RecentStats{Days: 7, AvgGlucose: 142, TimeInRange: 71, TargetLow: 70, TargetHigh: 180, ReadingCount: 40},
		ProfileFacts:  map[string]string{"insulinType": "aspart", "carbRatio": "1:10"},
		MemorySummary: "Prefers short answers.",
	}
	got := ChatSystemPrompt(domain.LangEN, rc)
	assert.Contains(t, got, "average glucose 142 mg/dL")
	assert.Contains(t, got, "- carbRatio: 1:10\n- insulinType: aspart")
	assert.Contains(t, got, "Prefers short answers.")
}

func TestAIServiceChat(t *testing.T) {
	p := &stubProvider{reply: "Try 3 units."}
	svc := NewAIService(p, p)

	text, err := svc.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "dose?"}},
		Lang:     "en",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Try 3 units."))
	assert.Contains(t, text, "not medical advice")
	assert.Contains(t, p.system, "Answer in English")

	p.err = errors.New("rate limited")
	_, err = svc.Chat(context.Background(), domain.ChatRequest{Messages: []domain.ChatMessage{{Role: "user", Content: "x"}}})
	assert.Equal(t, apperrors.KindAI, apperrors.KindOf(err))
}

func TestAIServiceAnalyzeMeal(t *testing.T) {
	p := &stubProvider{reply: `{"total_carbs_g": 30}`}
	svc := NewAIService(p, p)

	res, err := svc.AnalyzeMeal(context.Background(), Image{}, domain.LangTR)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.TotalCarbsG)
	assert.Contains(t, p.prompt, "Turkish")

	p.reply = "Sorry, I can't see any food."
	_, err = svc.AnalyzeMeal(context.Background(), Image{}, domain.LangTR)
	assert.Equal(t, apperrors.KindParse, apperrors.KindOf(err))

	p.err = errors.New("boom")
	_, err = svc.AnalyzeMeal(context.Background(), Image{}, domain.LangTR)
	assert.Equal(t, apperrors.KindAI, apperrors.KindOf(err))
}

func TestOpenAIProviderComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o-mini", "gpt-4o")
	reply, err := p.Complete(context.Background(), "system prompt", []domain.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "tool", Content: "coerced to user"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
}

func TestOpenAIProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o-mini", "gpt-4o")
	_, err := p.AnalyzeImage(context.Background(), "prompt", Image{DataURL: "data:image/jpeg;base64,AAAA"})
	assert.Error(t, err)
}
