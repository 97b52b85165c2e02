package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/infra/worker"
)

type mockUpdates struct {
	got []tgbotapi.Update
	err error
}

func (m *mockUpdates) HandleUpdate(_ context.Context, u tgbotapi.Update) error {
	m.got = append(m.got, u)
	return m.err
}

type mockBot struct {
	SetWebhookFunc func() error
	deleted        bool
}

func (m *mockBot) SetWebhook(context.Context) error {
	if m.SetWebhookFunc != nil {
		return m.SetWebhookFunc()
	}
	return nil
}
func (m *mockBot) DeleteWebhook(context.Context) error { m.deleted = true; return nil }
func (m *mockBot) WebhookInfo(context.Context) (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{URL: "https://bot.example.com/hook", PendingUpdateCount: 3}, nil
}
func (m *mockBot) Me(context.Context) (tgbotapi.User, error) {
	return tgbotapi.User{ID: 1, IsBot: true, UserName: "autoposter_bot"}, nil
}

type memPosts struct {
	byID map[string]*model.Post
}

func (m *memPosts) GetPost(_ context.Context, owner int64, id string) (*model.Post, error) {
	p, ok := m.byID[id]
	if !ok || p.OwnerID != owner {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPosts) ListMyPosts(_ context.Context, owner int64) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range m.byID {
		if p.OwnerID == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

const (
	testAPIKey = "admin-key"
	testSecret = "hook-secret"
)

func newTestServer(t *testing.T) (*Server, *mockUpdates, *mockBot, *memPosts) {
	t.Helper()
	log := zerolog.Nop()
	up, bot := &mockUpdates{}, &mockBot{}
	posts := &memPosts{byID: map[string]*model.Post{}}
	s := NewServer(ServerOptions{
		HTTP: config.HTTPConfig{
			AdminAPIKey:    testAPIKey,
			JWTSecret:      "test-admin-jwt-secret-please-change",
			TokenTTL:       time.Minute,
			RequestTimeout: 5 * time.Second,
		},
		WebhookSecret: testSecret,
		PreviewLength: 10,
	}, up, bot, posts, &log)
	return s, up, bot, posts
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"api_key": testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := do(t, s.Router(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestTelegramWebhook(t *testing.T) {
	s, up, _, _ := newTestServer(t)
	h := s.Router()
	update := map[string]any{"update_id": 77, "message": map[string]any{"message_id": 1, "text": "hi"}}

	t.Run("wrong secret is 404", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/telegram/webhook/nope", "", update)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, up.got)
	})

	t.Run("accepted", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/telegram/webhook/"+testSecret, "", update)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, up.got, 1)
		assert.Equal(t, 77, up.got[0].UpdateID)
		assert.Equal(t, "hi", up.got[0].Message.Text)
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/telegram/webhook/"+testSecret, strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("saturated pool", func(t *testing.T) {
		up.err = worker.ErrQueueFull
		rec := do(t, h, http.MethodPost, "/api/v1/telegram/webhook/"+testSecret, "", update)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestAdminAuth(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	h := s.Router()

	t.Run("no credentials", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong api key", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"api_key": "guess"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := NewAuthManager(testAPIKey, "another-secret", time.Minute, false)
		tok, _, err := other.Mint(httptest.NewRecorder())
		require.NoError(t, err)
		rec := do(t, h, http.MethodGet, "/api/v1/admin/me", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/me", login(t, h), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "autoposter_bot")
	})

	t.Run("session cookie", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"api_key": testAPIKey})
		require.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/webhook", nil)
		req.AddCookie(cookies[0])
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "bot.example.com")
	})

	t.Run("disabled without api key", func(t *testing.T) {
		log := zerolog.Nop()
		disabled := NewServer(ServerOptions{HTTP: config.HTTPConfig{JWTSecret: "x", TokenTTL: time.Minute}}, nil, &mockBot{}, &memPosts{}, &log)
		rec := do(t, disabled.Router(), http.MethodPost, "/api/v1/admin/login", "", map[string]string{"api_key": ""})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWebhookAdmin(t *testing.T) {
	s, _, bot, _ := newTestServer(t)
	h := s.Router()
	tok := login(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/admin/webhook", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/admin/webhook", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bot.deleted)

	bot.SetWebhookFunc = func() error { return errors.New("telegram said no") }
	rec = do(t, h, http.MethodPost, "/api/v1/admin/webhook", tok, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAdminPosts(t *testing.T) {
	s, _, _, posts := newTestServer(t)
	h := s.Router()
	tok := login(t, h)

	p, err := model.NewPost(42, "markdown rendering", 200)
	require.NoError(t, err)
	require.NoError(t, p.StartGeneration())
	c, err := model.NewContent("Rendering", "Some **bold** text<script>alert(1)</script>", []string{"go"})
	require.NoError(t, err)
	require.NoError(t, p.CompleteGeneration(c))
	posts.byID[p.ID] = p

	t.Run("list truncates previews", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/users/42/posts", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Items []struct {
				ID      string `json:"id"`
				Preview string `json:"preview"`
				Status  string `json:"status"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out.Items, 1)
		assert.Equal(t, p.ID, out.Items[0].ID)
		assert.Equal(t, "pending_review", out.Items[0].Status)
		assert.True(t, strings.HasSuffix(out.Items[0].Preview, "…"))
	})

	t.Run("get full post", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/users/42/posts/"+p.ID, tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "alert(1)")
	})

	t.Run("preview is sanitized html", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/users/42/posts/"+p.ID+"/preview", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<strong>bold</strong>")
		assert.NotContains(t, body, "<script>")
	})

	t.Run("other owner is 404", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/users/7/posts/"+p.ID, tok, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad owner id", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/admin/users/abc/posts", tok, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
