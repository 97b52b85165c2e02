package ai

import (
	"context"
	"time"

	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.ContentGenerator = (*meteredGenerator)(nil)

type meteredGenerator struct {
	inner adapter.ContentGenerator
	log   *zerolog.Logger
}

// NewMeteredGenerator records latency and outcome of every call to inner.
func NewMeteredGenerator(inner adapter.ContentGenerator, logger *zerolog.Logger) adapter.ContentGenerator {
	l := logger.With().Str("component", "generator").Str("provider", inner.Name()).Logger()
	return &meteredGenerator{inner: inner, log: &l}
}

func (m *meteredGenerator) Name() string { return m.inner.Name() }

func (m *meteredGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	start := time.Now()
	c, err := m.inner.Generate(ctx, req)
	elapsed := time.Since(start)
	metrics.ObserveGeneration(m.inner.Name(), elapsed, err == nil)

	log := logging.With(ctx, m.log)
	if err != nil {
		log.Warn().Err(err).Dur("duration", elapsed).Msg("generation failed")
		return nil, err
	}
	log.Debug().Dur("duration", elapsed).Int("body_len", len(c.Body)).Msg("generation finished")
	return c, nil
}
