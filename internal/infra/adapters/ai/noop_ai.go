package ai

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*NoopGenerator)(nil)

// NoopGenerator writes placeholder articles for local/dev runs.
// Every call returns a different draft.
type NoopGenerator struct {
	delay time.Duration
	n     atomic.Int64
}

func NewNoopGenerator(delay time.Duration) *NoopGenerator {
	return &NoopGenerator{delay: delay}
}

func (g *NoopGenerator) Name() string { return "noop" }

func (g *NoopGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	if req.Topic == "" {
		return nil, domain.Validationf("topic is empty")
	}
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, &domain.GenerationError{Provider: g.Name(), Reason: "cancelled", Err: ctx.Err()}
		}
	}
	tag := "general"
	if f := strings.Fields(req.Topic); len(f) > 0 {
		tag = strings.ToLower(f[0])
	}
	n := g.n.Add(1)
	raw := fmt.Sprintf("TITLE: %s, draft %d\nTAGS: %s, draft\n\nCONTENT:\n## Why it matters\n\n%s is worth a closer look.\n\n## Takeaways\n\nThis is placeholder draft number %d.",
		req.Topic, n, tag, req.Topic, n)
	return parseArticle(g.Name(), raw)
}
