package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgen/reelgen/src/internal/domain"
)

type stubStrategy struct {
	name   string
	result *domain.AnalysisResult
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	s.calls++
	return s.result, s.err
}

func TestAnalyzerChainUsesFirstSuccess(t *testing.T) {
	primary := &stubStrategy{name: "primary", result: &domain.AnalysisResult{Analysis: "a", Plan: "p"}}
	fallback := &stubStrategy{name: "fallback", result: &domain.AnalysisResult{Analysis: "b", Plan: "q"}}
	chain := NewAnalyzerChain(primary, fallback)

	result, err := chain.Analyze(context.Background(), domain.AnalysisRequest{VideoPath: "v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "p", result.Plan)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestAnalyzerChainFallsBackOnError(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("quota exhausted")}
	fallback := &stubStrategy{name: "fallback", result: &domain.AnalysisResult{Analysis: "b", Plan: "q"}}
	chain := NewAnalyzerChain(primary, fallback)

	result, err := chain.Analyze(context.Background(), domain.AnalysisRequest{VideoPath: "v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "q", result.Plan)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestAnalyzerChainSkipsEmptyPlan(t *testing.T) {
	primary := &stubStrategy{name: "primary", result: &domain.AnalysisResult{Analysis: "a", Plan: "  "}}
	fallback := &stubStrategy{name: "fallback", result: &domain.AnalysisResult{Analysis: "b", Plan: "q"}}
	chain := NewAnalyzerChain(primary, fallback)

	result, err := chain.Analyze(context.Background(), domain.AnalysisRequest{VideoPath: "v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "q", result.Plan)
}

func TestAnalyzerChainAllFail(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("upload failed")}
	fallback := &stubStrategy{name: "fallback", err: errors.New("quota exhausted")}
	chain := NewAnalyzerChain(primary, fallback)

	result, err := chain.Analyze(context.Background(), domain.AnalysisRequest{VideoPath: "v.mp4"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "video analysis failed with all strategies")
	assert.Contains(t, err.Error(), "primary: upload failed")
	assert.Contains(t, err.Error(), "fallback: quota exhausted")
}
