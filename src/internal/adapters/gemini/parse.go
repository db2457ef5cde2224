package gemini

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/reelgen/reelgen/src/internal/domain"
)

// parseAnalysisResult extracts analysis/plan from model output. The prompt
// asks for JSON, but models regularly wrap it in markdown fences or ignore
// the instruction entirely; in the latter case the text is split in half,
// analysis first.
func parseAnalysisResult(text string) (*domain.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty model response")
	}

	cleaned := stripCodeFence(text)
	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		if result.Analysis != "" && result.Plan != "" {
			return &result, nil
		}
	}

	half := len(text) / 2
	return &domain.AnalysisResult{
		Analysis: text[:half],
		Plan:     text[half:],
	}, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
