package application

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	"telegram-ai-autoposter/internal/infra/i18n"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/usecase"
)

// Reply is what the bot sends back for one user action.
type Reply struct {
	Text    string
	Buttons [][]adapter.InlineButton
	// Edit asks the transport to replace the message the callback came from.
	Edit bool
}

type FacadeOptions struct {
	// DefaultPlatforms are preselected in the platform picker. Empty means every configured platform.
	DefaultPlatforms []model.Platform
	PreviewLength    int
}

// BotFacade turns chat actions into PostUseCase calls and renders the outcome
// as translated replies. It never returns errors; failures become messages.
type BotFacade struct {
	posts usecase.PostUseCase
	state repository.StateRepository
	tr    *i18n.Translator
	opts  FacadeOptions
	log   *zerolog.Logger
}

func NewBotFacade(posts usecase.PostUseCase, state repository.StateRepository, tr *i18n.Translator, opts FacadeOptions, logger *zerolog.Logger) *BotFacade {
	l := logger.With().Str("component", "BotFacade").Logger()
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = 500
	}
	return &BotFacade{posts: posts, state: state, tr: tr, opts: opts, log: &l}
}

func (b *BotFacade) menuButtons() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{{Text: b.tr.T("button_new_post"), Data: ActionNewPost}, {Text: b.tr.T("button_my_posts"), Data: ActionMyPosts}},
	}
}

func (b *BotFacade) Start(ctx context.Context, tgID int64, name string) *Reply {
	_ = b.state.ClearState(ctx, tgID)
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return &Reply{Text: b.tr.T("welcome_message", name), Buttons: b.menuButtons()}
}

func (b *BotFacade) Help() *Reply {
	return &Reply{Text: b.tr.T("help_message"), Buttons: b.menuButtons()}
}

// NewPost creates and generates a post, or asks for the topic when none is given.
func (b *BotFacade) NewPost(ctx context.Context, tgID int64, topic string) *Reply {
	if strings.TrimSpace(topic) == "" {
		st := &repository.ConversationState{Step: repository.StepAwaitingTopic, Data: map[string]string{}}
		if err := b.state.SetState(ctx, tgID, st); err != nil {
			return b.errorReply(ctx, nil, err)
		}
		return &Reply{Text: b.tr.T("ask_topic")}
	}
	_ = b.state.ClearState(ctx, tgID)
	post, err := b.posts.CreatePost(ctx, tgID, topic)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	return b.postReply(post)
}

// Text handles free text, which is only meaningful while a topic is awaited.
func (b *BotFacade) Text(ctx context.Context, tgID int64, text string) *Reply {
	st, err := b.state.GetState(ctx, tgID)
	if err != nil || st.Step != repository.StepAwaitingTopic {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, b.log).Warn().Err(err).Msg("conversation state lookup failed")
		}
		return &Reply{Text: b.tr.T("unknown_text"), Buttons: b.menuButtons()}
	}
	return b.NewPost(ctx, tgID, text)
}

// AwaitingTopic reports whether the next text message will be used as a topic.
func (b *BotFacade) AwaitingTopic(ctx context.Context, tgID int64) bool {
	st, err := b.state.GetState(ctx, tgID)
	return err == nil && st.Step == repository.StepAwaitingTopic
}

func (b *BotFacade) Cancel(ctx context.Context, tgID int64) *Reply {
	if _, err := b.state.GetState(ctx, tgID); err != nil {
		return &Reply{Text: b.tr.T("nothing_to_cancel"), Buttons: b.menuButtons()}
	}
	_ = b.state.ClearState(ctx, tgID)
	return &Reply{Text: b.tr.T("cancelled"), Buttons: b.menuButtons()}
}

func (b *BotFacade) MyPosts(ctx context.Context, tgID int64) *Reply {
	posts, err := b.posts.ListMyPosts(ctx, tgID)
	if err != nil {
		return b.errorReply(ctx, nil, err)
	}
	if len(posts) == 0 {
		return &Reply{Text: b.tr.T("my_posts_empty"), Buttons: b.menuButtons()}
	}
	rows := make([][]adapter.InlineButton, 0, len(posts))
	for _, p := range posts {
		label := p.Topic
		if p.Content != nil {
			label = p.Content.Title
		}
		label = b.tr.T("post_line", b.statusLabel(p.Status), preview(label, 40))
		rows = append(rows, []adapter.InlineButton{{Text: label, Data: PostCallback(ActionOpen, p.ID)}})
	}
	return &Reply{Text: b.tr.T("my_posts_header"), Buttons: rows}
}

func (b *BotFacade) Open(ctx context.Context, tgID int64, postID string) *Reply {
	post, err := b.posts.GetPost(ctx, tgID, postID)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	return b.postReply(post)
}

// Confirm opens the platform picker for a post awaiting review.
func (b *BotFacade) Confirm(ctx context.Context, tgID int64, postID string) *Reply {
	post, err := b.posts.GetPost(ctx, tgID, postID)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	if post.Status != model.PostStatusPendingReview {
		return b.errorReply(ctx, post, domain.ErrInvalidState)
	}
	selected := b.defaultSelection()
	if err := b.saveSelection(ctx, tgID, postID, selected); err != nil {
		return b.errorReply(ctx, post, err)
	}
	return b.pickerReply(postID, selected, false)
}

func (b *BotFacade) TogglePlatform(ctx context.Context, tgID int64, postID string, p model.Platform) *Reply {
	selected := b.selection(ctx, tgID, postID)
	if i := indexOf(selected, p); i >= 0 {
		selected = append(selected[:i], selected[i+1:]...)
	} else {
		selected = append(selected, p)
	}
	if err := b.saveSelection(ctx, tgID, postID, selected); err != nil {
		return b.errorReply(ctx, nil, err)
	}
	return b.pickerReply(postID, selected, true)
}

// Publish confirms the post with the platforms chosen in the picker.
func (b *BotFacade) Publish(ctx context.Context, tgID int64, postID string) *Reply {
	selected := b.selection(ctx, tgID, postID)
	if len(selected) == 0 {
		return &Reply{Text: b.tr.T("no_platform_selected")}
	}
	_ = b.state.ClearState(ctx, tgID)
	post, err := b.posts.ConfirmPost(ctx, tgID, postID, selected)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	return b.postReply(post)
}

func (b *BotFacade) Regenerate(ctx context.Context, tgID int64, postID string) *Reply {
	post, err := b.posts.RegenerateContent(ctx, tgID, postID)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	return b.postReply(post)
}

func (b *BotFacade) Delete(ctx context.Context, tgID int64, postID string) *Reply {
	post, err := b.posts.DeletePost(ctx, tgID, postID)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	return &Reply{Text: b.tr.T("post_deleted"), Buttons: b.menuButtons(), Edit: true}
}

func (b *BotFacade) Reopen(ctx context.Context, tgID int64, postID string) *Reply {
	post, err := b.posts.ReopenPost(ctx, tgID, postID)
	if err != nil {
		return b.errorReply(ctx, post, err)
	}
	return b.postReply(post)
}

// ---- rendering ----

func (b *BotFacade) postReply(post *model.Post) *Reply {
	v := NewPostView(post, b.opts.PreviewLength)
	switch {
	case v.Status == model.PostStatusPublished || (v.Status == model.PostStatusFailed && len(v.Results) > 0):
		return b.reportReply(v)
	case v.HasContent():
		var sb strings.Builder
		sb.WriteString(b.tr.T("post_preview", v.Title, v.Preview))
		if len(v.Tags) > 0 {
			sb.WriteString("\n\n" + b.tr.T("post_tags", "#"+strings.Join(v.Tags, " #")))
		}
		sb.WriteString("\n\n" + b.tr.T("post_status", b.statusLabel(v.Status)))
		if v.Status == model.PostStatusPendingReview {
			sb.WriteString("\n" + b.tr.T("preview_footer"))
		}
		return &Reply{Text: sb.String(), Buttons: b.actionButtons(v)}
	default:
		text := b.tr.T("post_topic", v.Topic) + "\n" + b.tr.T("post_status", b.statusLabel(v.Status))
		if v.FailureReason != "" {
			text = b.tr.T("error_generation", v.FailureReason) + "\n\n" + text
		}
		return &Reply{Text: text, Buttons: b.actionButtons(v)}
	}
}

func (b *BotFacade) reportReply(v PostView) *Reply {
	var sb strings.Builder
	if v.Status == model.PostStatusPublished {
		sb.WriteString(b.tr.T("report_header_published"))
	} else {
		sb.WriteString(b.tr.T("report_header_failed"))
	}
	sb.WriteString("\n📄 " + v.Title + "\n")
	for _, r := range v.Results {
		sb.WriteString("\n")
		switch r.Outcome {
		case model.OutcomeSuccess:
			sb.WriteString(b.tr.T("report_success", r.Platform.DisplayName(), r.URL))
		case model.OutcomeNotConfigured:
			sb.WriteString(b.tr.T("report_not_configured", r.Platform.DisplayName()))
		default:
			sb.WriteString(b.tr.T("report_failed", r.Platform.DisplayName(), r.ErrorReason))
		}
	}
	if v.Status == model.PostStatusFailed {
		sb.WriteString("\n\n" + b.tr.T("report_failed_footer"))
	}
	return &Reply{Text: sb.String(), Buttons: b.actionButtons(v)}
}

func (b *BotFacade) actionButtons(v PostView) [][]adapter.InlineButton {
	btn := func(key, action string) adapter.InlineButton {
		return adapter.InlineButton{Text: b.tr.T(key), Data: PostCallback(action, v.ID)}
	}
	switch v.Status {
	case model.PostStatusPendingReview:
		return [][]adapter.InlineButton{
			{btn("button_confirm", ActionConfirm)},
			{btn("button_regenerate", ActionRegen), btn("button_delete", ActionDelete)},
		}
	case model.PostStatusFailed:
		rows := [][]adapter.InlineButton{{btn("button_regenerate", ActionRegen), btn("button_delete", ActionDelete)}}
		if v.HasContent() {
			rows = append([][]adapter.InlineButton{{btn("button_reopen", ActionReopen)}}, rows...)
		}
		return rows
	case model.PostStatusDraft:
		return [][]adapter.InlineButton{{btn("button_delete", ActionDelete)}}
	case model.PostStatusPublished:
		var rows [][]adapter.InlineButton
		for _, r := range v.Results {
			if r.Succeeded() && r.URL != "" {
				rows = append(rows, []adapter.InlineButton{{Text: r.Platform.DisplayName(), URL: r.URL}})
			}
		}
		return append(rows, b.menuButtons()...)
	default:
		return nil
	}
}

func (b *BotFacade) pickerReply(postID string, selected []model.Platform, edit bool) *Reply {
	configured := b.posts.ConfiguredPlatforms()
	rows := make([][]adapter.InlineButton, 0, len(model.AllPlatforms())+2)
	for _, p := range model.AllPlatforms() {
		key := "platform_unselected"
		switch {
		case indexOf(selected, p) >= 0:
			key = "platform_selected"
		case indexOf(configured, p) < 0:
			key = "platform_unconfigured"
		}
		rows = append(rows, []adapter.InlineButton{{Text: b.tr.T(key, p.DisplayName()), Data: ToggleCallback(postID, p)}})
	}
	rows = append(rows,
		[]adapter.InlineButton{{Text: b.tr.T("button_publish_now"), Data: PublishCallback(postID)}},
		[]adapter.InlineButton{{Text: b.tr.T("button_back"), Data: PostCallback(ActionOpen, postID)}},
	)
	return &Reply{Text: b.tr.T("pick_platforms"), Buttons: rows, Edit: edit}
}

func (b *BotFacade) statusLabel(s model.PostStatus) string {
	return b.tr.T("status_" + string(s))
}

// errorReply maps lifecycle failures to messages. post is the snapshot the
// use case returned with the error, if any.
func (b *BotFacade) errorReply(ctx context.Context, post *model.Post, err error) *Reply {
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		return &Reply{Text: b.tr.T("error_validation", msg)}
	case errors.Is(err, domain.ErrNotFound):
		return &Reply{Text: b.tr.T("error_not_found"), Buttons: b.menuButtons()}
	case errors.Is(err, domain.ErrRateLimited):
		return &Reply{Text: b.tr.T("error_rate_limited")}
	case errors.Is(err, domain.ErrGeneration) && post != nil:
		return b.postReply(post)
	case errors.Is(err, domain.ErrConflict) && post != nil:
		r := b.postReply(post)
		r.Text = b.tr.T("error_conflict") + "\n\n" + r.Text
		return r
	case errors.Is(err, domain.ErrInvalidState) && post != nil:
		r := b.postReply(post)
		r.Text = b.tr.T("error_invalid_state", b.statusLabel(post.Status)) + "\n\n" + r.Text
		return r
	}
	logging.With(ctx, b.log).Error().Err(err).Msg("bot action failed")
	return &Reply{Text: b.tr.T("error_generic")}
}

// ---- platform selection state ----

func (b *BotFacade) defaultSelection() []model.Platform {
	if len(b.opts.DefaultPlatforms) > 0 {
		return append([]model.Platform(nil), b.opts.DefaultPlatforms...)
	}
	return b.posts.ConfiguredPlatforms()
}

func (b *BotFacade) selection(ctx context.Context, tgID int64, postID string) []model.Platform {
	st, err := b.state.GetState(ctx, tgID)
	if err != nil || st.Step != repository.StepSelectingPlatforms || st.Data["post_id"] != postID {
		return b.defaultSelection()
	}
	var out []model.Platform
	for _, s := range strings.Split(st.Data["platforms"], ",") {
		if p, err := model.ParsePlatform(s); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (b *BotFacade) saveSelection(ctx context.Context, tgID int64, postID string, selected []model.Platform) error {
	names := make([]string, 0, len(selected))
	for _, p := range selected {
		names = append(names, string(p))
	}
	return b.state.SetState(ctx, tgID, &repository.ConversationState{
		Step: repository.StepSelectingPlatforms,
		Data: map[string]string{"post_id": postID, "platforms": strings.Join(names, ",")},
	})
}

func indexOf(ps []model.Platform, p model.Platform) int {
	for i, x := range ps {
		if x == p {
			return i
		}
	}
	return -1
}
