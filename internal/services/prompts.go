package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

const chatSystemTR = `Sen diyabetli bireylere destek olan bir sağlık asistanısın.
KURALLAR:
- Türkçe, sade ve kısa yanıt ver
- Kan şekeri, karbonhidrat sayımı, beslenme ve egzersiz konularında pratik bilgi ver
- Kesin insülin dozu önerme; doz sorularında hesaplama mantığını açıkla ve doktora yönlendir
- Acil belirtilerde (bilinç bulanıklığı, ketoasidoz şüphesi, 54 mg/dL altı) hemen 112'yi aramasını söyle
- Emin olmadığın konularda bunu açıkça belirt`

const chatSystemEN = `You are a health assistant supporting people living with diabetes.
RULES:
- Answer in English, plainly and briefly
- Give practical guidance on blood glucose, carb counting, nutrition and exercise
- Never prescribe an exact insulin dose; explain the calculation and refer to their doctor
- For emergency signs (confusion, suspected ketoacidosis, glucose below 54 mg/dL) tell them to call emergency services now
- Say so clearly when you are not sure`

// ChatSystemPrompt assembles the system prompt from the language and the
// optional personalization context.
func ChatSystemPrompt(lang domain.Lang, rc *domain.RecentContext) string {
	base := chatSystemTR
	if lang == domain.LangEN {
		base = chatSystemEN
	}
	if rc == nil || rc.IsEmpty() {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	if lang == domain.LangEN {
		b.WriteString("USER CONTEXT (use it to personalize, do not repeat it verbatim):\n")
	} else {
		b.WriteString("KULLANICI BAĞLAMI (kişiselleştirmek için kullan, aynen tekrarlama):\n")
	}

	if s := rc.Stats; s != nil {
		if lang == domain.LangEN {
			fmt.Fprintf(&b, "- Last %d days: average glucose %d mg/dL, time in range %d%% (%d-%d), %d lows, %d highs, %d readings, %d meals logged\n",
				s.Days, s.AvgGlucose, s.TimeInRange, s.TargetLow, s.TargetHigh, s.HypoCount, s.HyperCount, s.ReadingCount, s.MealsLogged)
		} else {
			fmt.Fprintf(&b, "- Son %d gün: ortalama kan şekeri %d mg/dL, hedef aralıkta kalma %%%d (%d-%d), %d düşük, %d yüksek, %d ölçüm, %d öğün kaydı\n",
				s.Days, s.AvgGlucose, s.TimeInRange, s.TargetLow, s.TargetHigh, s.HypoCount, s.HyperCount, s.ReadingCount, s.MealsLogged)
		}
	}

	keys := make([]string, 0, len(rc.ProfileFacts))
	for k := range rc.ProfileFacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, rc.ProfileFacts[k])
	}

	if rc.MemorySummary != "" {
		fmt.Fprintf(&b, "- %s\n", rc.MemorySummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

const visionPromptTemplate = `You are a certified diabetes educator specializing in nutrition analysis.
Analyze the meal in the image and estimate its nutrition for diabetes management.

REQUIREMENTS:
- Identify every food item, including likely hidden carbohydrate sources (sauces, breading, sugar)
- Estimate portion sizes from plate and utensil size
- If packaging or a nutrition label is visible, prioritize that data
- Write item names, portions and notes in %s

CRITICAL JSON FORMAT REQUIREMENTS:
- Respond with a single valid JSON object and nothing else
- No markdown, no explanatory text before or after the JSON
- Use exactly these fields:
  {
    "items": [{"name": "", "portion": "", "carbs_g": 0, "calories": 0, "protein_g": 0, "fat_g": 0, "fiber_g": 0}],
    "total_carbs_g": 0,
    "total_calories": 0,
    "total_protein_g": 0,
    "total_fat_g": 0,
    "total_fiber_g": 0,
    "glycemicImpact": "low|medium|high",
    "notes": "",
    "confidence": "low|medium|high"
  }`

// VisionPrompt returns the fixed JSON-eliciting meal analysis prompt.
func VisionPrompt(lang domain.Lang) string {
	language := "Turkish"
	if lang == domain.LangEN {
		language = "English"
	}
	return fmt.Sprintf(visionPromptTemplate, language)
}
