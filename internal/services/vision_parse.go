package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

var ErrNoJSON = errors.New("no JSON object found in response")

// extractJSON returns the first balanced {...} substring of s, skipping braces
// inside string literals. Code fences and surrounding prose are ignored.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// lenientFloat accepts JSON numbers and numeric strings such as "45",
// "12,5" or "30 g". Anything else decodes as zero.
type lenientFloat float64

func (f *lenientFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = 0
	if len(data) == 0 || data[0] != '"' {
		var v float64
		if json.Unmarshal(data, &v) == nil {
			*f = lenientFloat(v)
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	end := 0
	for end < len(s) && strings.IndexByte("+-.0123456789", s[end]) >= 0 {
		end++
	}
	if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
		*f = lenientFloat(v)
	}
	return nil
}

type visionItemJSON struct {
	Name     string       `json:"name"`
	Portion  string       `json:"portion"`
	CarbsG   lenientFloat `json:"carbs_g"`
	Calories lenientFloat `json:"calories"`
	ProteinG lenientFloat `json:"protein_g"`
	FatG     lenientFloat `json:"fat_g"`
	FiberG   lenientFloat `json:"fiber_g"`
}

type visionResultJSON struct {
	Items          []visionItemJSON `json:"items"`
	TotalCarbsG    lenientFloat     `json:"total_carbs_g"`
	TotalCalories  lenientFloat     `json:"total_calories"`
	TotalProteinG  lenientFloat     `json:"total_protein_g"`
	TotalFatG      lenientFloat     `json:"total_fat_g"`
	TotalFiberG    lenientFloat     `json:"total_fiber_g"`
	GlycemicImpact string           `json:"glycemicImpact"`
	Notes          string           `json:"notes"`
	Confidence     string           `json:"confidence"`
}

// ParseVisionResult decodes the model reply. Absent fields keep their
// defaults and numbers sent as strings are accepted.
func ParseVisionResult(reply string) (domain.VisionResult, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return domain.VisionResult{}, ErrNoJSON
	}
	var decoded visionResultJSON
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return domain.VisionResult{}, fmt.Errorf("failed to parse vision response: %w", err)
	}

	result := domain.DefaultVisionResult()
	for _, it := range decoded.Items {
		result.Items = append(result.Items, domain.VisionItem{
			Name:     it.Name,
			Portion:  it.Portion,
			CarbsG:   float64(it.CarbsG),
			Calories: float64(it.Calories),
			ProteinG: float64(it.ProteinG),
			FatG:     float64(it.FatG),
			FiberG:   float64(it.FiberG),
		})
	}
	result.TotalCarbsG = float64(decoded.TotalCarbsG)
	result.TotalCalories = float64(decoded.TotalCalories)
	result.TotalProteinG = float64(decoded.TotalProteinG)
	result.TotalFatG = float64(decoded.TotalFatG)
	result.TotalFiberG = float64(decoded.TotalFiberG)
	result.Notes = decoded.Notes
	if decoded.GlycemicImpact != "" {
		result.GlycemicImpact = decoded.GlycemicImpact
	}
	if decoded.Confidence != "" {
		result.Confidence = decoded.Confidence
	}
	return result, nil
}
