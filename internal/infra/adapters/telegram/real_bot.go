package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-ai-autoposter/internal/application"
	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/infra/i18n"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/metrics"
	red "telegram-ai-autoposter/internal/infra/redis"
	"telegram-ai-autoposter/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	GetMe() (tgbotapi.User, error)
}

// postFacade is the chat front of the post lifecycle.
type postFacade interface {
	Start(ctx context.Context, tgID int64, name string) *application.Reply
	Help() *application.Reply
	NewPost(ctx context.Context, tgID int64, topic string) *application.Reply
	Text(ctx context.Context, tgID int64, text string) *application.Reply
	AwaitingTopic(ctx context.Context, tgID int64) bool
	Cancel(ctx context.Context, tgID int64) *application.Reply
	MyPosts(ctx context.Context, tgID int64) *application.Reply
	Open(ctx context.Context, tgID int64, postID string) *application.Reply
	Confirm(ctx context.Context, tgID int64, postID string) *application.Reply
	TogglePlatform(ctx context.Context, tgID int64, postID string, p model.Platform) *application.Reply
	Publish(ctx context.Context, tgID int64, postID string) *application.Reply
	Regenerate(ctx context.Context, tgID int64, postID string) *application.Reply
	Delete(ctx context.Context, tgID int64, postID string) *application.Reply
	Reopen(ctx context.Context, tgID int64, postID string) *application.Reply
}

var _ postFacade = (*application.BotFacade)(nil)

type limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ limiter = (*red.RateLimiter)(nil)

// RealTelegramBotAdapter receives updates by polling or webhook, runs them on
// the worker pool and renders BotFacade replies.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	facade      postFacade
	translator  *i18n.Translator
	rateLimiter limiter
	pool        *worker.Pool
	log         *zerolog.Logger

	mu            sync.Mutex
	cancelPolling context.CancelFunc
	stopped       bool
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	facade *application.BotFacade,
	translator *i18n.Translator,
	rateLimiter *red.RateLimiter,
	pool *worker.Pool,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	var rl limiter
	if rateLimiter != nil {
		rl = rateLimiter
	}
	return newAdapter(bot, cfg, facade, translator, rl, pool, logger), nil
}

func newAdapter(bot botAPI, cfg *config.BotConfig, facade postFacade, translator *i18n.Translator, rl limiter, pool *worker.Pool, logger *zerolog.Logger) *RealTelegramBotAdapter {
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		translator:  translator,
		rateLimiter: rl,
		pool:        pool,
		log:         &l,
	}
}

// StartPolling feeds long-polled updates into the worker pool until ctx is canceled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.cancelPolling = cancel
	r.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	r.log.Info().Msg("polling for updates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.pool.SubmitWait(ctx, r.task(up)); err != nil && ctx.Err() == nil {
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("dropping update")
			}
		}
	}
}

// StopPolling ends a running StartPolling. Called first, it keeps a later
// StartPolling from starting.
func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// HandleUpdate queues a webhook update. It fails with worker.ErrQueueFull when saturated.
func (r *RealTelegramBotAdapter) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	return r.pool.Submit(r.task(update))
}

func (r *RealTelegramBotAdapter) task(update tgbotapi.Update) worker.Task {
	return func(ctx context.Context) error {
		ctx = logging.WithTraceID(ctx, uuid.NewString())
		return r.handleUpdate(ctx, update)
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)

	if msg.IsCommand() {
		command := msg.Command()
		handler, ok := r.commandRoutes()[command]
		if !ok {
			metrics.IncTelegramCommand("unknown")
			return r.deliver(ctx, msg.Chat.ID, 0, r.facade.Help())
		}
		metrics.IncTelegramCommand(command)
		if !r.allow(ctx, msg.Chat.ID, msg.From.ID, "/"+command) {
			return nil
		}
		return handler(ctx, msg)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if !r.allow(ctx, msg.Chat.ID, msg.From.ID, "message") {
		return nil
	}
	if r.facade.AwaitingTopic(ctx, msg.From.ID) {
		r.notify(ctx, msg.Chat.ID, "generating")
	}
	return r.deliver(ctx, msg.Chat.ID, 0, r.facade.Text(ctx, msg.From.ID, text))
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	ctx = logging.WithTgID(ctx, query.From.ID)

	chatID, messageID := query.From.ID, 0
	if query.Message != nil && query.Message.Chat != nil {
		chatID, messageID = query.Message.Chat.ID, query.Message.MessageID
	}
	data := strings.TrimSpace(query.Data)

	if !r.allow(ctx, chatID, query.From.ID, "callback") {
		r.answer(query.ID, "")
		return nil
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		metrics.IncTelegramCallback(data)
		r.answer(query.ID, "")
		return fn(ctx, query.From.ID, chatID, messageID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, query, chatID, messageID, data)
		}
	}
	r.answer(query.ID, "")
	return errors.New("unknown callback data")
}

// allow applies the per-user rate limit and tells the user when it trips.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID, tgID int64, key string) bool {
	if r.rateLimiter == nil {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, key), r.cfg.RateLimit, r.cfg.RateWindow)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
		_ = r.SendMessage(ctx, chatID, r.translator.T("error_rate_limited"))
	}
	return ok
}

// notify sends a short progress message before a slow operation.
func (r *RealTelegramBotAdapter) notify(ctx context.Context, chatID int64, key string) {
	if err := r.SendMessage(ctx, chatID, r.translator.T(key)); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("failed to send progress message")
	}
}

func (r *RealTelegramBotAdapter) answer(queryID, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		r.log.Debug().Err(err).Msg("answer callback failed")
	}
}

// deliver sends a facade reply, editing messageID in place when the reply asks for it.
func (r *RealTelegramBotAdapter) deliver(ctx context.Context, chatID int64, messageID int, reply *application.Reply) error {
	if reply == nil {
		return nil
	}
	if reply.Edit && messageID != 0 {
		return r.EditButtons(ctx, chatID, messageID, reply.Text, reply.Buttons)
	}
	if len(reply.Buttons) == 0 {
		return r.SendMessage(ctx, chatID, reply.Text)
	}
	return r.SendButtons(ctx, chatID, reply.Text, reply.Buttons)
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(tgID, text))
	return err
}

// SendButtons sends text with an inline keyboard.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(telegramID, text)
	if kb, ok := keyboard(rows); ok {
		msg.ReplyMarkup = kb
	}
	_, err := r.bot.Send(msg)
	return err
}

// EditButtons replaces the text and keyboard of an earlier message.
func (r *RealTelegramBotAdapter) EditButtons(ctx context.Context, telegramID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if kb, ok := keyboard(rows); ok {
		edit = tgbotapi.NewEditMessageTextAndMarkup(telegramID, messageID, text, kb)
	} else {
		edit = tgbotapi.NewEditMessageText(telegramID, messageID, text)
	}
	_, err := r.bot.Send(edit)
	return err
}

// keyboard converts button rows. URL buttons open links, the rest carry callback data.
func keyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}
