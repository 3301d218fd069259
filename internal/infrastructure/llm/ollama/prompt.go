package ollama

import (
	"fmt"
	"strings"
)

const DefaultHypothesisTemplate = "This text is from {}."

// hypothesis fills the template placeholder with the label's description.
func hypothesis(template, description string) string {
	if !strings.Contains(template, "{}") {
		return strings.TrimSpace(template + " " + description)
	}
	return strings.Replace(template, "{}", description, 1)
}

func buildEntailmentPrompt(premise, hypothesis string) string {
	return fmt.Sprintf(`You are a natural language inference judge.
Decide how strongly the premise entails the hypothesis.
Return strict JSON object {"score": number} where score is the probability from 0 to 1 that the hypothesis is true given the premise.
No markdown, no extra keys.

Hypothesis: %s

Premise:
%s`, hypothesis, premise)
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	count := 0
	for idx := range text {
		if count == limit {
			return text[:idx]
		}
		count++
	}
	return text
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
