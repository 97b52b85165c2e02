package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-ai-autoposter/internal/application"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/metrics"
)

type cbHandler func(ctx context.Context, tgID, chatID int64, messageID int, data string) error

type prefixCB struct {
	Prefix string
	Fn     func(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, messageID int, data string) error
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.ActionNewPost: r.newPostCBRoute,
		application.ActionMyPosts: r.myPostsCBRoute,
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: "post:", Fn: r.postActionCBRoute},
		{Prefix: "pf:", Fn: r.postActionCBRoute},
	}
}

func (r *RealTelegramBotAdapter) newPostCBRoute(ctx context.Context, tgID, chatID int64, _ int, _ string) error {
	return r.deliver(ctx, chatID, 0, r.facade.NewPost(ctx, tgID, ""))
}

func (r *RealTelegramBotAdapter) myPostsCBRoute(ctx context.Context, tgID, chatID int64, _ int, _ string) error {
	return r.deliver(ctx, chatID, 0, r.facade.MyPosts(ctx, tgID))
}

// postActionCBRoute handles every button that targets a single post.
func (r *RealTelegramBotAdapter) postActionCBRoute(ctx context.Context, query *tgbotapi.CallbackQuery, chatID int64, messageID int, data string) error {
	cb, err := application.ParseCallback(data)
	if err != nil {
		r.answer(query.ID, "")
		return err
	}
	metrics.IncTelegramCallback(cb.Action)
	ctx = logging.WithPostID(ctx, cb.PostID)
	tgID := query.From.ID

	// Slow actions get a toast so the user knows the tap registered.
	switch cb.Action {
	case application.ActionRegen:
		r.answer(query.ID, r.translator.T("generating"))
	case application.ActionPublish:
		r.answer(query.ID, r.translator.T("publishing"))
	default:
		r.answer(query.ID, "")
	}

	var reply *application.Reply
	switch cb.Action {
	case application.ActionOpen:
		reply = r.facade.Open(ctx, tgID, cb.PostID)
	case application.ActionConfirm:
		reply = r.facade.Confirm(ctx, tgID, cb.PostID)
	case application.ActionToggle:
		reply = r.facade.TogglePlatform(ctx, tgID, cb.PostID, cb.Platform)
	case application.ActionPublish:
		reply = r.facade.Publish(ctx, tgID, cb.PostID)
	case application.ActionRegen:
		reply = r.facade.Regenerate(ctx, tgID, cb.PostID)
	case application.ActionDelete:
		reply = r.facade.Delete(ctx, tgID, cb.PostID)
	case application.ActionReopen:
		reply = r.facade.Reopen(ctx, tgID, cb.PostID)
	default:
		return errors.New("unknown post action " + cb.Action)
	}
	return r.deliver(ctx, chatID, messageID, reply)
}
