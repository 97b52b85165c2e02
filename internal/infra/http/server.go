package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-ai-autoposter/internal/application"
	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/infra/adapters/publisher"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/worker"
)

// UpdateHandler queues Telegram updates received by webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// WebhookAdmin manages the bot's webhook registration.
type WebhookAdmin interface {
	SetWebhook(ctx context.Context) error
	DeleteWebhook(ctx context.Context) error
	WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error)
	Me(ctx context.Context) (tgbotapi.User, error)
}

// PostReader is the read side of the post lifecycle.
type PostReader interface {
	GetPost(ctx context.Context, ownerID int64, postID string) (*model.Post, error)
	ListMyPosts(ctx context.Context, ownerID int64) ([]*model.Post, error)
}

type Server struct {
	cfg           config.HTTPConfig
	webhookSecret string
	previewLen    int
	updates       UpdateHandler
	bot           WebhookAdmin
	posts         PostReader
	auth          *AuthManager
	log           *zerolog.Logger
	srv           *http.Server
}

type ServerOptions struct {
	HTTP          config.HTTPConfig
	WebhookSecret string
	PreviewLength int
	SecureCookie  bool
}

func NewServer(opts ServerOptions, updates UpdateHandler, bot WebhookAdmin, posts PostReader, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		cfg:           opts.HTTP,
		webhookSecret: opts.WebhookSecret,
		previewLen:    opts.PreviewLength,
		updates:       updates,
		bot:           bot,
		posts:         posts,
		auth:          NewAuthManager(opts.HTTP.AdminAPIKey, opts.HTTP.JWTSecret, opts.HTTP.TokenTTL, opts.SecureCookie),
		log:           &l,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))
	if s.cfg.RequestTimeout > 0 {
		r.Use(Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/telegram/webhook/{secret}", s.handleTelegramWebhook)

		r.Post("/admin/login", s.handleLogin)
		r.Post("/admin/logout", s.handleLogout)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Get("/admin/me", s.handleMe)
			r.Get("/admin/webhook", s.handleWebhookInfo)
			r.Post("/admin/webhook", s.handleSetWebhook)
			r.Delete("/admin/webhook", s.handleDeleteWebhook)
			r.Get("/admin/users/{tgID}/posts", s.handleListPosts)
			r.Get("/admin/users/{tgID}/posts/{postID}", s.handleGetPost)
			r.Get("/admin/users/{tgID}/posts/{postID}/preview", s.handlePreviewPost)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTelegramWebhook accepts an update when the path secret matches. The
// update is processed asynchronously so Telegram gets a fast 200.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if s.updates == nil || s.webhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.webhookSecret)) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}
	if err := s.updates.HandleUpdate(r.Context(), update); err != nil {
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, "busy")
			return
		}
		logging.With(r.Context(), s.log).Error().Err(err).Int("update_id", update.UpdateID).Msg("webhook update rejected")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.auth.Enabled() {
		writeError(w, http.StatusForbidden, "admin api is disabled")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.auth.CheckKey(req.APIKey) {
		logging.With(r.Context(), s.log).Warn().Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	token, exp, err := s.auth.Mint(w)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("mint token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": exp.UTC()})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me, err := s.bot.Me(r.Context())
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handleWebhookInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.bot.WebhookInfo(r.Context())
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.SetWebhook(r.Context()); err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.DeleteWebhook(r.Context()); err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	posts, err := s.posts.ListMyPosts(r.Context(), owner)
	if err != nil {
		s.domainError(w, r, err)
		return
	}
	items := make([]application.PostView, 0, len(posts))
	for _, p := range posts {
		items = append(items, application.NewPostView(p, s.previewLen))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.loadPost(w, r)
	if !ok {
		return
	}
	// full body, no preview truncation
	writeJSON(w, http.StatusOK, application.NewPostView(post, 0))
}

// handlePreviewPost renders the post body as the sanitized HTML sent to Medium.
func (s *Server) handlePreviewPost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.loadPost(w, r)
	if !ok {
		return
	}
	if post.Content == nil {
		writeError(w, http.StatusConflict, "post has no content yet")
		return
	}
	html, err := publisher.RenderHTML(post.Content.Title, post.Content.Body)
	if err != nil {
		s.domainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (s *Server) loadPost(w http.ResponseWriter, r *http.Request) (*model.Post, bool) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return nil, false
	}
	post, err := s.posts.GetPost(r.Context(), owner, chi.URLParam(r, "postID"))
	if err != nil {
		s.domainError(w, r, err)
		return nil, false
	}
	return post, true
}

func ownerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	owner, err := strconv.ParseInt(chi.URLParam(r, "tgID"), 10, 64)
	if err != nil || owner <= 0 {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return 0, false
	}
	return owner, true
}

func (s *Server) domainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	logging.With(r.Context(), s.log).Error().Err(err).Msg("telegram api call failed")
	writeError(w, http.StatusBadGateway, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
