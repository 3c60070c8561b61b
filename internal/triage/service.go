package triage

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/knowledge"
)

const instrumentationName = "github.com/sponteware/triaged/internal/triage"

// Analyzer produces a structured diagnosis for a ticket. Implementations
// may call an external generative model; the service treats any returned
// error as an unusable finding, never as a request failure.
type Analyzer interface {
	Analyze(ctx context.Context, text, module string, patterns []DetectedPattern) (*Finding, error)

	// Available reports whether the analyzer is configured to make real
	// calls. When false the service falls back to the mock finding.
	Available() bool
}

// Service orchestrates pattern matching, AI analysis, consolidation and
// summarization for a single ticket. The rule set is read-only after
// construction, so one Service may serve concurrent requests.
type Service struct {
	base     *knowledge.Base
	analyzer Analyzer
	logger   *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	analyzeCounter metric.Int64Counter
	aiErrorCounter metric.Int64Counter
}

// NewService creates a triage service. A nil base behaves as an empty rule
// set and a nil analyzer forces mock mode.
func NewService(base *knowledge.Base, analyzer Analyzer, logger *zap.Logger) *Service {
	if base == nil {
		base = &knowledge.Base{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		base:     base,
		analyzer: analyzer,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	s.initMetrics()

	return s
}

func (s *Service) initMetrics() {
	var err error

	s.analyzeCounter, err = s.meter.Int64Counter(
		"triaged.analyses_total",
		metric.WithDescription("Total number of triage analyses"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		s.logger.Warn("failed to create analyze counter", zap.Error(err))
	}

	s.aiErrorCounter, err = s.meter.Int64Counter(
		"triaged.ai_errors_total",
		metric.WithDescription("Total number of failed AI analysis calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		s.logger.Warn("failed to create ai error counter", zap.Error(err))
	}
}

// MockMode reports whether analyses run without a live AI analyzer.
func (s *Service) MockMode() bool {
	return s.analyzer == nil || !s.analyzer.Available()
}

// Base returns the loaded rule set.
func (s *Service) Base() *knowledge.Base {
	return s.base
}

// Analyze runs a full triage over the ticket text.
//
// Pattern matching always runs first. The AI analyzer is invoked with the
// detected patterns as context, or replaced by the fixed mock finding when
// unavailable. Consolidation and summarization observe the identical
// finding instance, keeping solutions and summary consistent.
//
// AI failures never fail the request: they are folded into a Finding that
// carries only an error message.
func (s *Service) Analyze(ctx context.Context, text, module string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "triage.analyze")
	defer span.End()

	span.SetAttributes(
		attribute.String("module", module),
		attribute.Int("text_length", len(text)),
	)

	patterns := Match(text, s.base)

	var finding *Finding
	usedMock := s.MockMode()
	if usedMock {
		finding = MockFinding()
	} else {
		f, err := s.analyzer.Analyze(ctx, text, module, patterns)
		switch {
		case err != nil:
			s.logger.Warn("ai analysis failed, continuing with rule matches only",
				zap.String("module", module),
				zap.Error(err))
			if s.aiErrorCounter != nil {
				s.aiErrorCounter.Add(ctx, 1)
			}
			finding = &Finding{Error: err.Error()}
		case f == nil:
			finding = &Finding{Error: "analyzer returned no finding"}
		default:
			finding = f
		}
	}

	result := &Result{
		Patterns:  patterns,
		Finding:   finding,
		Solutions: Consolidate(patterns, finding),
		Summary:   Summarize(patterns, finding),
		UsedMock:  usedMock,
	}

	if s.analyzeCounter != nil {
		s.analyzeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("mock", usedMock),
			attribute.Int("pattern_count", len(patterns)),
		))
	}

	s.logger.Debug("triage complete",
		zap.String("module", module),
		zap.Int("patterns", len(patterns)),
		zap.Int("solutions", len(result.Solutions)),
		zap.Bool("mock", usedMock))

	span.SetAttributes(
		attribute.Int("pattern_count", len(patterns)),
		attribute.Int("solution_count", len(result.Solutions)),
		attribute.Bool("mock", usedMock),
	)

	return result, nil
}
