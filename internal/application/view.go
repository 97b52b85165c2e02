package application

import (
	"sort"
	"strings"
	"time"

	"telegram-ai-autoposter/internal/domain/model"
)

// PostView is a read-only snapshot of a post for presentation.
type PostView struct {
	ID            string                    `json:"id"`
	Topic         string                    `json:"topic"`
	Status        model.PostStatus          `json:"status"`
	Title         string                    `json:"title,omitempty"`
	Preview       string                    `json:"preview,omitempty"`
	Tags          []string                  `json:"tags,omitempty"`
	Platforms     []model.Platform          `json:"platforms,omitempty"`
	Results       []model.PublicationResult `json:"results,omitempty"`
	FailureReason string                    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// NewPostView builds a view whose body preview holds at most previewLen runes.
// Results are ordered by platform.
func NewPostView(p *model.Post, previewLen int) PostView {
	v := PostView{
		ID:            p.ID,
		Topic:         p.Topic,
		Status:        p.Status,
		Platforms:     append([]model.Platform(nil), p.Platforms...),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if c := p.Content; c != nil {
		v.Title = c.Title
		v.Preview = preview(c.Body, previewLen)
		v.Tags = append([]string(nil), c.Tags...)
	}
	for _, r := range p.PublicationResults {
		v.Results = append(v.Results, r)
	}
	sort.Slice(v.Results, func(i, j int) bool { return v.Results[i].Platform < v.Results[j].Platform })
	return v
}

func (v PostView) HasContent() bool { return v.Title != "" }

func preview(body string, n int) string {
	body = strings.TrimSpace(body)
	r := []rune(body)
	if n <= 0 || len(r) <= n {
		return body
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
