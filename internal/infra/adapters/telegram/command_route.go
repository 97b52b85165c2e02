package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    r.handleStartCommand,
		"help":     r.handleHelpCommand,
		"new_post": r.handleNewPostCommand,
		"my_posts": r.handleMyPostsCommand,
		"cancel":   r.handleCancelCommand,
	}
}

// menuCommands is the command list shown in the Telegram client menu.
func menuCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "new_post", Description: "Write a new post"},
		{Command: "my_posts", Description: "Your recent posts"},
		{Command: "cancel", Description: "Stop the current step"},
		{Command: "help", Description: "Show help"},
	}
}

// SetMenuCommands publishes the command menu to Telegram.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(menuCommands()...))
	return err
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	name := message.From.FirstName
	if name == "" {
		name = message.From.UserName
	}
	return r.deliver(ctx, message.Chat.ID, 0, r.facade.Start(ctx, message.From.ID, name))
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.deliver(ctx, message.Chat.ID, 0, r.facade.Help())
}

// handleNewPostCommand accepts "/new_post <topic>" or asks for the topic.
func (r *RealTelegramBotAdapter) handleNewPostCommand(ctx context.Context, message *tgbotapi.Message) error {
	topic := strings.TrimSpace(message.CommandArguments())
	if topic != "" {
		r.notify(ctx, message.Chat.ID, "generating")
	}
	return r.deliver(ctx, message.Chat.ID, 0, r.facade.NewPost(ctx, message.From.ID, topic))
}

func (r *RealTelegramBotAdapter) handleMyPostsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.deliver(ctx, message.Chat.ID, 0, r.facade.MyPosts(ctx, message.From.ID))
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.deliver(ctx, message.Chat.ID, 0, r.facade.Cancel(ctx, message.From.ID))
}
