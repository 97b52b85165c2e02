package publisher

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

var _ adapter.PlatformPublisher = (*DevToPublisher)(nil)

// Dev.to accepts at most four alphanumeric tags per article.
const devToMaxTags = 4

type DevToPublisher struct {
	cfg config.DevToConfig
	hc  *http.Client
}

func NewDevToPublisher(cfg config.DevToConfig, hc *http.Client) *DevToPublisher {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &DevToPublisher{cfg: cfg, hc: hc}
}

func (d *DevToPublisher) Platform() model.Platform { return model.PlatformDevTo }

type devToArticle struct {
	Title        string   `json:"title"`
	BodyMarkdown string   `json:"body_markdown"`
	Published    bool     `json:"published"`
	Tags         []string `json:"tags,omitempty"`
}

func (d *DevToPublisher) Publish(ctx context.Context, c model.Content) (*model.PublishedRef, error) {
	body := map[string]devToArticle{"article": {
		Title:        c.Title,
		BodyMarkdown: c.Body,
		Published:    true,
		Tags:         devToTags(c.Tags),
	}}
	req, err := newJSONRequest(ctx, http.MethodPost, strings.TrimRight(d.cfg.BaseURL, "/")+"/articles", body)
	if err != nil {
		return nil, transportError(ctx, d.Platform(), err)
	}
	req.Header.Set("api-key", d.cfg.APIKey)

	var out struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	}
	if err := do(d.hc, d.Platform(), req, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, &domain.PublishError{Platform: string(d.Platform()), Reason: "response carried no url"}
	}
	return &model.PublishedRef{URL: out.URL, PlatformPostID: strconv.FormatInt(out.ID, 10)}, nil
}

func devToTags(tags []string) []string {
	out := make([]string, 0, devToMaxTags)
	for _, t := range tags {
		t = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == devToMaxTags {
			break
		}
	}
	return out
}
