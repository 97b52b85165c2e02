package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"telegram-ai-autoposter/internal/domain"

	"github.com/oklog/ulid/v2"
)

const (
	MaxTitleLength = 200
	MaxTags        = 10
)

type PostStatus string

const (
	PostStatusDraft             PostStatus = "draft"
	PostStatusGeneratingContent PostStatus = "generating_content"
	PostStatusPendingReview     PostStatus = "pending_review"
	PostStatusPublishing        PostStatus = "publishing"
	PostStatusPublished         PostStatus = "published"
	PostStatusFailed            PostStatus = "failed"
	PostStatusDeleted           PostStatus = "deleted"
)

// AllPostStatuses lists every status in lifecycle order.
func AllPostStatuses() []PostStatus {
	return []PostStatus{
		PostStatusDraft, PostStatusGeneratingContent, PostStatusPendingReview,
		PostStatusPublishing, PostStatusPublished, PostStatusFailed, PostStatusDeleted,
	}
}

func (s PostStatus) Valid() bool {
	for _, v := range AllPostStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports statuses with no outgoing transitions.
func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusDeleted
}

// Content is the generated article payload. Treat it as untrusted text.
type Content struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

// NewContent validates and normalizes generated content.
func NewContent(title, body string, tags []string) (*Content, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return nil, domain.Validationf("content title is empty")
	}
	if body == "" {
		return nil, domain.Validationf("content body is empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, domain.Validationf("content title longer than %d characters", MaxTitleLength)
	}
	return &Content{Title: title, Body: body, Tags: NormalizeTags(tags)}, nil
}

// NormalizeTags lower-cases, trims and de-duplicates tags, keeping at most MaxTags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Tags != nil {
		cp.Tags = append([]string(nil), c.Tags...)
	}
	return &cp
}

// Post is the aggregate for one article from topic to publication outcome.
type Post struct {
	ID                 string                         `json:"id"`
	OwnerID            int64                          `json:"owner_id"`
	Topic              string                         `json:"topic"`
	Content            *Content                       `json:"content,omitempty"`
	Status             PostStatus                     `json:"status"`
	Platforms          []Platform                     `json:"platforms,omitempty"`
	PublicationResults map[Platform]PublicationResult `json:"publication_results,omitempty"`
	FailureReason      string                         `json:"failure_reason,omitempty"`
	// Version counts stored writes. Stores use it as the compare-and-swap token.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPostID returns a new lexicographically sortable post id.
func NewPostID() string {
	return ulid.Make().String()
}

// ValidPostID reports whether s looks like an id produced by NewPostID.
func ValidPostID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// NewPost validates the topic and returns a Draft owned by ownerID.
// maxTopicLen <= 0 disables the length check.
func NewPost(ownerID int64, topic string, maxTopicLen int) (*Post, error) {
	if ownerID == 0 {
		return nil, domain.Validationf("owner is required")
	}
	topic = strings.Join(strings.Fields(topic), " ")
	if topic == "" {
		return nil, domain.Validationf("topic is empty")
	}
	if maxTopicLen > 0 && utf8.RuneCountInString(topic) > maxTopicLen {
		return nil, domain.Validationf("topic longer than %d characters", maxTopicLen)
	}
	now := time.Now().UTC()
	return &Post{
		ID:        NewPostID(),
		OwnerID:   ownerID,
		Topic:     topic,
		Status:    PostStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Post) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s a post in status %s", domain.ErrInvalidState, op, p.Status)
}

func (p *Post) touch() { p.UpdatedAt = time.Now().UTC() }

func (p *Post) resetForGeneration() {
	p.Status = PostStatusGeneratingContent
	p.Content = nil
	p.Platforms = nil
	p.PublicationResults = nil
	p.FailureReason = ""
	p.touch()
}

// StartGeneration moves a Draft into GeneratingContent.
func (p *Post) StartGeneration() error {
	if p.Status != PostStatusDraft {
		return p.invalid("generate")
	}
	p.resetForGeneration()
	return nil
}

// StartRegeneration discards content and results of a PendingReview or Failed post.
func (p *Post) StartRegeneration() error {
	if p.Status != PostStatusPendingReview && p.Status != PostStatusFailed {
		return p.invalid("regenerate")
	}
	p.resetForGeneration()
	return nil
}

// CompleteGeneration attaches content and moves the post to PendingReview.
func (p *Post) CompleteGeneration(c *Content) error {
	if p.Status != PostStatusGeneratingContent {
		return p.invalid("complete generation of")
	}
	if c == nil {
		return domain.Validationf("content is required")
	}
	p.Content = c.Clone()
	p.Status = PostStatusPendingReview
	p.FailureReason = ""
	p.touch()
	return nil
}

// FailGeneration moves the post to Failed without content.
func (p *Post) FailGeneration(reason string) error {
	if p.Status != PostStatusGeneratingContent {
		return p.invalid("fail generation of")
	}
	if reason == "" {
		reason = "content generation failed"
	}
	p.Content = nil
	p.Status = PostStatusFailed
	p.FailureReason = reason
	p.touch()
	return nil
}

// StartPublishing records the platform selection and moves PendingReview to Publishing.
func (p *Post) StartPublishing(platforms []Platform) error {
	if p.Status != PostStatusPendingReview {
		return p.invalid("confirm")
	}
	sel, err := NormalizePlatforms(platforms)
	if err != nil {
		return err
	}
	p.Platforms = sel
	p.PublicationResults = nil
	p.Status = PostStatusPublishing
	p.touch()
	return nil
}

// CompletePublishing records every platform result. At least one success
// makes the post Published, otherwise it is Failed and keeps its content.
func (p *Post) CompletePublishing(results map[Platform]PublicationResult) error {
	if p.Status != PostStatusPublishing {
		return p.invalid("complete publishing of")
	}
	p.PublicationResults = make(map[Platform]PublicationResult, len(results))
	succeeded := 0
	for k, v := range results {
		p.PublicationResults[k] = v
		if v.Succeeded() {
			succeeded++
		}
	}
	if succeeded > 0 {
		p.Status = PostStatusPublished
		p.FailureReason = ""
	} else {
		p.Status = PostStatusFailed
		p.FailureReason = "publishing failed on every selected platform"
	}
	p.touch()
	return nil
}

// Reopen returns a post that failed after generation to PendingReview.
func (p *Post) Reopen() error {
	if p.Status != PostStatusFailed || p.Content == nil {
		return p.invalid("reopen")
	}
	p.Status = PostStatusPendingReview
	p.PublicationResults = nil
	p.FailureReason = ""
	p.touch()
	return nil
}

// Delete marks the post Deleted. Publishing and terminal posts are rejected.
func (p *Post) Delete() error {
	switch p.Status {
	case PostStatusDraft, PostStatusGeneratingContent, PostStatusPendingReview, PostStatusFailed:
		p.Status = PostStatusDeleted
		p.touch()
		return nil
	}
	return p.invalid("delete")
}

// SucceededPlatforms returns platforms with a successful publication, sorted.
func (p *Post) SucceededPlatforms() []Platform {
	var out []Platform
	for _, pl := range AllPlatforms() {
		if r, ok := p.PublicationResults[pl]; ok && r.Succeeded() {
			out = append(out, pl)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Content = p.Content.Clone()
	if p.Platforms != nil {
		cp.Platforms = append([]Platform(nil), p.Platforms...)
	}
	if p.PublicationResults != nil {
		cp.PublicationResults = make(map[Platform]PublicationResult, len(p.PublicationResults))
		for k, v := range p.PublicationResults {
			cp.PublicationResults[k] = v
		}
	}
	return &cp
}
