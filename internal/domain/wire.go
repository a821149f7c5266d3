package domain

// ChatMessage is one turn of the conversation sent to /ai-chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages      []ChatMessage  `json:"messages"`
	Lang          string         `json:"lang,omitempty"`
	RecentContext *RecentContext `json:"recentContext,omitempty"`
}

// LastUserMessage returns the content of the latest message with role "user".
func (r ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

type ChatResponse struct {
	Text string `json:"text"`
}

type VisionRequest struct {
	ImageDataURL string `json:"imageDataUrl"`
	Lang         string `json:"lang,omitempty"`
}

type VisionItem struct {
	Name     string  `json:"name"`
	Portion  string  `json:"portion"`
	CarbsG   float64 `json:"carbs_g"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g"`
}

// VisionResult is the meal analysis returned by /ai-vision.
type VisionResult struct {
	Items          []VisionItem `json:"items"`
	TotalCarbsG    float64      `json:"total_carbs_g"`
	TotalCalories  float64      `json:"total_calories"`
	TotalProteinG  float64      `json:"total_protein_g"`
	TotalFatG      float64      `json:"total_fat_g"`
	TotalFiberG    float64      `json:"total_fiber_g"`
	GlycemicImpact string       `json:"glycemicImpact"`
	Notes          string       `json:"notes"`
	Confidence     string       `json:"confidence"`
}

// DefaultVisionResult holds the values used for fields the model left out.
func DefaultVisionResult() VisionResult {
	return VisionResult{
		Items:          []VisionItem{},
		GlycemicImpact: "medium",
		Confidence:     "low",
	}
}

// RecentStats summarizes the trailing glucose window.
type RecentStats struct {
	Days         int `json:"days"`
	AvgGlucose   int `json:"avgGlucose"`
	TimeInRange  int `json:"timeInRange"`
	TargetLow    int `json:"targetLow"`
	TargetHigh   int `json:"targetHigh"`
	HypoCount    int `json:"hypoCount"`
	HyperCount   int `json:"hyperCount"`
	ReadingCount int `json:"readingCount"`
	MealsLogged  int `json:"mealsLogged"`
}

// RecentContext is the personalization payload attached to chat requests.
// The zero value encodes as {} and means "no context".
type RecentContext struct {
	Stats         *RecentStats      `json:"recentStats,omitempty"`
	ProfileFacts  map[string]string `json:"profileFacts,omitempty"`
	MemorySummary string            `json:"memorySummary,omitempty"`
}

func (c RecentContext) IsEmpty() bool {
	return c.Stats == nil && len(c.ProfileFacts) == 0 && c.MemorySummary == ""
}

// ErrorEnvelope is the JSON body of every error response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
