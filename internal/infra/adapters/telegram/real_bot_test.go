package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-ai-autoposter/internal/application"
	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/infra/i18n"
	"telegram-ai-autoposter/internal/infra/worker"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	info     tgbotapi.WebhookInfo
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeBot) StopReceivingUpdates() {}

func (f *fakeBot) GetWebhookInfo() (tgbotapi.WebhookInfo, error) { return f.info, nil }

func (f *fakeBot) GetMe() (tgbotapi.User, error) {
	return tgbotapi.User{ID: 1, IsBot: true, UserName: "autoposter_bot"}, nil
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, "edit:"+m.Text)
		}
	}
	return out
}

// fakeFacade records calls and answers with canned replies.
type fakeFacade struct {
	mu       sync.Mutex
	calls    []string
	awaiting bool
}

func (f *fakeFacade) record(s string) *application.Reply {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
	return &application.Reply{Text: s, Buttons: [][]adapter.InlineButton{{{Text: "ok", Data: application.ActionMyPosts}}}}
}

func (f *fakeFacade) Start(_ context.Context, _ int64, name string) *application.Reply {
	return f.record("start " + name)
}
func (f *fakeFacade) Help() *application.Reply { return f.record("help") }
func (f *fakeFacade) NewPost(_ context.Context, _ int64, topic string) *application.Reply {
	return f.record("new " + topic)
}
func (f *fakeFacade) Text(_ context.Context, _ int64, text string) *application.Reply {
	return f.record("text " + text)
}
func (f *fakeFacade) AwaitingTopic(context.Context, int64) bool { return f.awaiting }
func (f *fakeFacade) Cancel(context.Context, int64) *application.Reply {
	return f.record("cancel")
}
func (f *fakeFacade) MyPosts(context.Context, int64) *application.Reply { return f.record("list") }
func (f *fakeFacade) Open(_ context.Context, _ int64, id string) *application.Reply {
	return f.record("open " + id)
}
func (f *fakeFacade) Confirm(_ context.Context, _ int64, id string) *application.Reply {
	return f.record("confirm " + id)
}
func (f *fakeFacade) TogglePlatform(_ context.Context, _ int64, id string, p model.Platform) *application.Reply {
	r := f.record("toggle " + id + " " + string(p))
	r.Edit = true
	return r
}
func (f *fakeFacade) Publish(_ context.Context, _ int64, id string) *application.Reply {
	return f.record("publish " + id)
}
func (f *fakeFacade) Regenerate(_ context.Context, _ int64, id string) *application.Reply {
	return f.record("regen " + id)
}
func (f *fakeFacade) Delete(_ context.Context, _ int64, id string) *application.Reply {
	return f.record("delete " + id)
}
func (f *fakeFacade) Reopen(_ context.Context, _ int64, id string) *application.Reply {
	return f.record("reopen " + id)
}

type countingLimiter struct {
	limit int
	seen  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}

func newTestAdapter(t *testing.T, rl limiter) (*RealTelegramBotAdapter, *fakeBot, *fakeFacade) {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	require.NoError(t, err)
	log := zerolog.Nop()
	bot, facade := &fakeBot{}, &fakeFacade{}
	cfg := &config.BotConfig{Workers: 2, RateLimit: 20, RateWindow: time.Minute, WebhookBaseURL: "https://bot.example.com/", WebhookSecret: "s3cret"}
	pool := worker.NewPool(1, 4, &log)
	return newAdapter(bot, cfg, facade, tr, rl, pool, &log), bot, facade
}

func commandUpdate(text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 7, FirstName: "Ada"},
		Chat:      &tgbotapi.Chat{ID: 7},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: 7}},
		Data:    data,
	}}
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("new_post with topic sends progress then the post", func(t *testing.T) {
		r, bot, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, commandUpdate("/new_post Rust vs Go")))
		assert.Equal(t, []string{"new Rust vs Go"}, facade.calls)
		texts := bot.texts()
		require.Len(t, texts, 2)
		assert.Contains(t, texts[0], "Writing your post")
		assert.Equal(t, "new Rust vs Go", texts[1])
	})

	t.Run("new_post without topic asks without progress message", func(t *testing.T) {
		r, bot, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, commandUpdate("/new_post")))
		assert.Equal(t, []string{"new "}, facade.calls)
		assert.Len(t, bot.texts(), 1)
	})

	t.Run("start uses first name", func(t *testing.T) {
		r, _, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, commandUpdate("/start")))
		assert.Equal(t, []string{"start Ada"}, facade.calls)
	})

	t.Run("unknown command shows help", func(t *testing.T) {
		r, _, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, commandUpdate("/plans")))
		assert.Equal(t, []string{"help"}, facade.calls)
	})

	t.Run("topic text while awaiting", func(t *testing.T) {
		r, bot, facade := newTestAdapter(t, nil)
		facade.awaiting = true
		up := tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: 7}, Text: "  eBPF  "}}
		require.NoError(t, r.handleUpdate(ctx, up))
		assert.Equal(t, []string{"text eBPF"}, facade.calls)
		assert.Len(t, bot.texts(), 2)
	})
}

func TestRateLimit(t *testing.T) {
	r, bot, facade := newTestAdapter(t, &countingLimiter{limit: 1, seen: map[string]int{}})
	ctx := context.Background()
	require.NoError(t, r.handleUpdate(ctx, commandUpdate("/my_posts")))
	require.NoError(t, r.handleUpdate(ctx, commandUpdate("/my_posts")))

	assert.Equal(t, []string{"list"}, facade.calls)
	texts := bot.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Too many requests")
}

func TestCallbacks(t *testing.T) {
	ctx := context.Background()
	id := model.NewPostID()

	t.Run("toggle edits the picker in place", func(t *testing.T) {
		r, bot, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, callbackUpdate(application.ToggleCallback(id, model.PlatformReddit))))
		assert.Equal(t, []string{"toggle " + id + " reddit"}, facade.calls)
		require.Len(t, bot.sent, 1)
		edit, ok := bot.sent[0].(tgbotapi.EditMessageTextConfig)
		require.True(t, ok)
		assert.Equal(t, 99, edit.MessageID)
		require.NotNil(t, edit.ReplyMarkup)
	})

	t.Run("publish answers with a progress toast", func(t *testing.T) {
		r, bot, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, callbackUpdate(application.PublishCallback(id))))
		assert.Equal(t, []string{"publish " + id}, facade.calls)
		require.Len(t, bot.requests, 1)
		ans, ok := bot.requests[0].(tgbotapi.CallbackConfig)
		require.True(t, ok)
		assert.Equal(t, "🚀 Publishing...", ans.Text)
	})

	t.Run("menu callback", func(t *testing.T) {
		r, _, facade := newTestAdapter(t, nil)
		require.NoError(t, r.handleUpdate(ctx, callbackUpdate(application.ActionNewPost)))
		assert.Equal(t, []string{"new "}, facade.calls)
	})

	t.Run("malformed data", func(t *testing.T) {
		r, bot, facade := newTestAdapter(t, nil)
		assert.Error(t, r.handleUpdate(ctx, callbackUpdate("post:regen:not-an-id")))
		assert.Error(t, r.handleUpdate(ctx, callbackUpdate("buy:plan")))
		assert.Empty(t, facade.calls)
		assert.Len(t, bot.requests, 2, "spinner must always be stopped")
	})
}

func TestKeyboard(t *testing.T) {
	kb, ok := keyboard([][]adapter.InlineButton{
		{{Text: "Open", URL: "https://dev.to/x"}, {Text: "Delete", Data: "post:delete:1"}},
		{},
		{{Text: " "}},
	})
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://dev.to/x", *kb.InlineKeyboard[0][0].URL)
	require.NotNil(t, kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "post:delete:1", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "•", kb.InlineKeyboard[1][0].Text)

	_, ok = keyboard(nil)
	assert.False(t, ok)
}

func TestWebhookManagement(t *testing.T) {
	r, bot, _ := newTestAdapter(t, nil)
	ctx := context.Background()

	require.NoError(t, r.SetWebhook(ctx))
	require.Len(t, bot.requests, 1)
	wh, ok := bot.requests[0].(tgbotapi.WebhookConfig)
	require.True(t, ok)
	assert.Equal(t, "https://bot.example.com/api/v1/telegram/webhook/s3cret", wh.URL.String())
	assert.Equal(t, 2, wh.MaxConnections)

	require.NoError(t, r.DeleteWebhook(ctx))
	_, ok = bot.requests[1].(tgbotapi.DeleteWebhookConfig)
	assert.True(t, ok)

	me, err := r.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "autoposter_bot", me.UserName)

	r.cfg.WebhookSecret = ""
	assert.Error(t, r.SetWebhook(ctx))
}

func TestHandleUpdateRunsOnPool(t *testing.T) {
	r, _, facade := newTestAdapter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.pool.Start(ctx)
	defer r.pool.Stop()

	require.NoError(t, r.HandleUpdate(ctx, commandUpdate("/cancel")))
	assert.Eventually(t, func() bool {
		facade.mu.Lock()
		defer facade.mu.Unlock()
		return len(facade.calls) == 1 && facade.calls[0] == "cancel"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopPolling(t *testing.T) {
	t.Run("stops a running poller", func(t *testing.T) {
		r, _, _ := newTestAdapter(t, nil)
		done := make(chan error, 1)
		go func() { done <- r.StartPolling(context.Background()) }()

		// StopPolling may land before or after the poller registers itself.
		r.StopPolling()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("polling did not stop")
		}
	})

	t.Run("stop before start", func(t *testing.T) {
		r, _, _ := newTestAdapter(t, nil)
		r.StopPolling()
		assert.NoError(t, r.StartPolling(context.Background()))
	})
}
