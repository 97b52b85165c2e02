package publisher

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

var _ adapter.PlatformPublisher = (*MediumPublisher)(nil)

const mediumMaxTags = 5

// MediumPublisher posts HTML rendered from the markdown body. The author id is
// looked up once per process.
type MediumPublisher struct {
	cfg config.MediumConfig
	hc  *http.Client

	mu     sync.Mutex
	userID string
}

func NewMediumPublisher(cfg config.MediumConfig, hc *http.Client) *MediumPublisher {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &MediumPublisher{cfg: cfg, hc: hc}
}

func (m *MediumPublisher) Platform() model.Platform { return model.PlatformMedium }

func (m *MediumPublisher) base() string { return strings.TrimRight(m.cfg.BaseURL, "/") }

func (m *MediumPublisher) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
}

func (m *MediumPublisher) author(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID != "" {
		return m.userID, nil
	}
	req, err := newJSONRequest(ctx, http.MethodGet, m.base()+"/me", nil)
	if err != nil {
		return "", transportError(ctx, m.Platform(), err)
	}
	m.authorize(req)
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := do(m.hc, m.Platform(), req, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &domain.PublishError{Platform: string(m.Platform()), Reason: "author id missing from profile"}
	}
	m.userID = out.Data.ID
	return m.userID, nil
}

func (m *MediumPublisher) Publish(ctx context.Context, c model.Content) (*model.PublishedRef, error) {
	uid, err := m.author(ctx)
	if err != nil {
		return nil, err
	}
	content, err := RenderHTML(c.Title, c.Body)
	if err != nil {
		return nil, &domain.PublishError{Platform: string(m.Platform()), Reason: "markdown rendering failed", Err: err}
	}
	body := map[string]any{
		"title":         c.Title,
		"contentFormat": "html",
		"content":       content,
		"tags":          firstTags(c.Tags, mediumMaxTags),
		"publishStatus": m.cfg.PublishStatus,
	}
	req, err := newJSONRequest(ctx, http.MethodPost, m.base()+"/users/"+uid+"/posts", body)
	if err != nil {
		return nil, transportError(ctx, m.Platform(), err)
	}
	m.authorize(req)

	var out struct {
		Data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := do(m.hc, m.Platform(), req, &out); err != nil {
		return nil, err
	}
	if out.Data.URL == "" {
		return nil, &domain.PublishError{Platform: string(m.Platform()), Reason: "response carried no url"}
	}
	return &model.PublishedRef{URL: out.Data.URL, PlatformPostID: out.Data.ID}, nil
}
