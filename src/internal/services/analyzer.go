package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/reelgen/reelgen/src/internal/domain"
	"github.com/reelgen/reelgen/src/internal/ports"
)

// AnalyzerChain runs the ordered fallback strategies for the initial
// analysis call: the primary client first, then each cheaper degraded mode
// until one produces a usable plan or all are exhausted.
type AnalyzerChain struct {
	strategies []ports.AnalysisStrategy
}

func NewAnalyzerChain(strategies ...ports.AnalysisStrategy) *AnalyzerChain {
	return &AnalyzerChain{strategies: strategies}
}

func (a *AnalyzerChain) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	var failures []string

	for _, strategy := range a.strategies {
		log.Printf("[Analyzer] Attempting analysis with strategy %s...", strategy.Name())
		result, err := strategy.Analyze(ctx, req)
		if err != nil {
			log.Printf("[Analyzer] Strategy %s failed: %v", strategy.Name(), err)
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.Name(), err))
			continue
		}
		if strings.TrimSpace(result.Plan) == "" {
			log.Printf("[Analyzer] Strategy %s returned an empty plan, trying next", strategy.Name())
			failures = append(failures, fmt.Sprintf("%s: empty plan", strategy.Name()))
			continue
		}
		log.Printf("[Analyzer] Strategy %s succeeded (analysis: %d chars, plan: %d chars)",
			strategy.Name(), len(result.Analysis), len(result.Plan))
		return result, nil
	}

	return nil, fmt.Errorf("video analysis failed with all strategies: %s", strings.Join(failures, " | "))
}
