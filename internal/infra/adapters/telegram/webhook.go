package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookPath is the route Telegram posts updates to; the secret is appended.
const WebhookPath = "/api/v1/telegram/webhook/"

// WebhookURL joins the public base URL and the secret path.
func WebhookURL(baseURL, secret string) string {
	return strings.TrimRight(baseURL, "/") + WebhookPath + secret
}

// SetWebhook registers the configured webhook URL with Telegram.
func (r *RealTelegramBotAdapter) SetWebhook(ctx context.Context) error {
	if r.cfg.WebhookBaseURL == "" || r.cfg.WebhookSecret == "" {
		return errors.New("webhook base url and secret must be configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(WebhookURL(r.cfg.WebhookBaseURL, r.cfg.WebhookSecret))
	if err != nil {
		return err
	}
	wh.MaxConnections = r.cfg.Workers
	_, err = r.bot.Request(wh)
	if err == nil {
		r.log.Info().Str("base_url", r.cfg.WebhookBaseURL).Msg("webhook registered")
	}
	return err
}

func (r *RealTelegramBotAdapter) DeleteWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

func (r *RealTelegramBotAdapter) WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.WebhookInfo{}, err
	}
	return r.bot.GetWebhookInfo()
}

// Me returns the bot's own account.
func (r *RealTelegramBotAdapter) Me(ctx context.Context) (tgbotapi.User, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.User{}, err
	}
	return r.bot.GetMe()
}
