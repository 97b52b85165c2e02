package publisher

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

var _ adapter.PlatformPublisher = (*RedditPublisher)(nil)

const redditMaxTitle = 300

// RedditPublisher submits self posts to a single subreddit using a
// script-app password grant. Tokens are reused until shortly before expiry.
type RedditPublisher struct {
	cfg config.RedditConfig
	hc  *http.Client
	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewRedditPublisher(cfg config.RedditConfig, hc *http.Client) *RedditPublisher {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &RedditPublisher{cfg: cfg, hc: hc, now: time.Now}
}

func (r *RedditPublisher) Platform() model.Platform { return model.PlatformReddit }

func (r *RedditPublisher) accessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token != "" && r.now().Before(r.expires) {
		return r.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {r.cfg.Username},
		"password":   {r.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", transportError(ctx, r.Platform(), err)
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := do(r.hc, r.Platform(), req, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		reason := "authentication failed"
		if out.Error != "" {
			reason += ": " + out.Error
		}
		return "", &domain.PublishError{Platform: string(r.Platform()), Reason: reason, Err: errors.New("empty access token")}
	}
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	r.token, r.expires = out.AccessToken, r.now().Add(ttl)
	return r.token, nil
}

func (r *RedditPublisher) forgetToken() {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
}

func (r *RedditPublisher) Publish(ctx context.Context, c model.Content) (*model.PublishedRef, error) {
	token, err := r.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"sr":       {r.cfg.Subreddit},
		"kind":     {"self"},
		"title":    {truncate(c.Title, redditMaxTitle)},
		"text":     {c.Body},
		"api_type": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(r.cfg.APIURL, "/")+"/api/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, transportError(ctx, r.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	var out struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := do(r.hc, r.Platform(), req, &out); err != nil {
		var pe *domain.PublishError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusUnauthorized {
			r.forgetToken()
			pe.Retryable = true
		}
		return nil, err
	}
	if errs := out.JSON.Errors; len(errs) > 0 {
		reason := "submission rejected"
		if len(errs[0]) > 1 {
			reason += ": " + errs[0][1]
		}
		retryable := len(errs[0]) > 0 && errs[0][0] == "RATELIMIT"
		return nil, &domain.PublishError{Platform: string(r.Platform()), Reason: reason, Retryable: retryable, Err: errors.New(strings.Join(errs[0], " "))}
	}
	if out.JSON.Data.URL == "" {
		return nil, &domain.PublishError{Platform: string(r.Platform()), Reason: "submission returned no url"}
	}
	return &model.PublishedRef{URL: out.JSON.Data.URL, PlatformPostID: out.JSON.Data.ID}, nil
}
