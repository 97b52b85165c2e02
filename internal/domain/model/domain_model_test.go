//go:build !integration

package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-ai-autoposter/internal/domain"
)

// --- Post Model Tests ---

func TestNewPost(t *testing.T) {
	t.Run("should create a draft", func(t *testing.T) {
		p, err := NewPost(42, "  Artificial   Intelligence in Healthcare ", 200)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Status != PostStatusDraft {
			t.Errorf("expected draft, got %s", p.Status)
		}
		if p.Topic != "Artificial Intelligence in Healthcare" {
			t.Errorf("topic not normalized: %q", p.Topic)
		}
		if !ValidPostID(p.ID) {
			t.Errorf("expected a valid post id, got %q", p.ID)
		}
		if p.Content != nil {
			t.Error("draft must not carry content")
		}
	})

	t.Run("should reject empty topic", func(t *testing.T) {
		_, err := NewPost(42, "   ", 200)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("should reject long topic", func(t *testing.T) {
		_, err := NewPost(42, strings.Repeat("a", 11), 10)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("should reject missing owner", func(t *testing.T) {
		if _, err := NewPost(0, "topic", 0); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestNewContent(t *testing.T) {
	c, err := NewContent(" Title ", " body ", []string{"#AI", "ai", " Health ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Title != "Title" || c.Body != "body" {
		t.Errorf("content not trimmed: %+v", c)
	}
	if len(c.Tags) != 2 || c.Tags[0] != "ai" || c.Tags[1] != "health" {
		t.Errorf("unexpected tags: %v", c.Tags)
	}

	if _, err := NewContent("", "body", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for empty title, got %v", err)
	}
	if _, err := NewContent("t", " ", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for empty body, got %v", err)
	}
	if _, err := NewContent(strings.Repeat("x", MaxTitleLength+1), "b", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for long title, got %v", err)
	}
}

func postIn(t *testing.T, status PostStatus) *Post {
	t.Helper()
	p, err := NewPost(1, "topic", 0)
	if err != nil {
		t.Fatal(err)
	}
	p.Status = status
	switch status {
	case PostStatusPendingReview, PostStatusPublishing, PostStatusPublished:
		p.Content = &Content{Title: "t", Body: "b"}
	}
	return p
}

func TestPostTransitions(t *testing.T) {
	t.Run("generation success reaches pending review with content", func(t *testing.T) {
		p := postIn(t, PostStatusDraft)
		if err := p.StartGeneration(); err != nil {
			t.Fatal(err)
		}
		if err := p.CompleteGeneration(&Content{Title: "t", Body: "b"}); err != nil {
			t.Fatal(err)
		}
		if p.Status != PostStatusPendingReview || p.Content == nil || p.FailureReason != "" {
			t.Errorf("unexpected post: %+v", p)
		}
	})

	t.Run("generation failure reaches failed without content", func(t *testing.T) {
		p := postIn(t, PostStatusDraft)
		_ = p.StartGeneration()
		if err := p.FailGeneration("quota exceeded"); err != nil {
			t.Fatal(err)
		}
		if p.Status != PostStatusFailed || p.Content != nil || p.FailureReason != "quota exceeded" {
			t.Errorf("unexpected post: %+v", p)
		}
	})

	t.Run("confirm only from pending review", func(t *testing.T) {
		for _, s := range AllPostStatuses() {
			p := postIn(t, s)
			err := p.StartPublishing([]Platform{PlatformDevTo})
			if s == PostStatusPendingReview {
				if err != nil {
					t.Errorf("confirm from %s: unexpected error %v", s, err)
				}
				continue
			}
			if !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("confirm from %s: expected ErrInvalidState, got %v", s, err)
			}
		}
	})

	t.Run("confirm rejects unknown platforms", func(t *testing.T) {
		p := postIn(t, PostStatusPendingReview)
		if err := p.StartPublishing([]Platform{"myspace"}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if p.Status != PostStatusPendingReview {
			t.Errorf("status must not change on validation error, got %s", p.Status)
		}
	})

	t.Run("delete rules", func(t *testing.T) {
		allowed := map[PostStatus]bool{
			PostStatusDraft:             true,
			PostStatusGeneratingContent: true,
			PostStatusPendingReview:     true,
			PostStatusFailed:            true,
		}
		for _, s := range AllPostStatuses() {
			p := postIn(t, s)
			err := p.Delete()
			if allowed[s] {
				if err != nil || p.Status != PostStatusDeleted {
					t.Errorf("delete from %s: err=%v status=%s", s, err, p.Status)
				}
				continue
			}
			if !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("delete from %s: expected ErrInvalidState, got %v", s, err)
			}
		}
	})

	t.Run("publishing resolution", func(t *testing.T) {
		p := postIn(t, PostStatusPendingReview)
		_ = p.StartPublishing([]Platform{PlatformDevTo, PlatformMedium, PlatformReddit})
		now := time.Now()
		err := p.CompletePublishing(map[Platform]PublicationResult{
			PlatformDevTo:  SuccessResult(PlatformDevTo, PublishedRef{URL: "https://dev.to/x"}, now),
			PlatformMedium: FailedResult(PlatformMedium, "boom"),
			PlatformReddit: NotConfiguredResult(PlatformReddit),
		})
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != PostStatusPublished || len(p.PublicationResults) != 3 {
			t.Errorf("unexpected post: status=%s results=%d", p.Status, len(p.PublicationResults))
		}

		q := postIn(t, PostStatusPendingReview)
		_ = q.StartPublishing([]Platform{PlatformMedium})
		_ = q.CompletePublishing(map[Platform]PublicationResult{PlatformMedium: FailedResult(PlatformMedium, "boom")})
		if q.Status != PostStatusFailed || q.Content == nil || len(q.PublicationResults) != 1 {
			t.Errorf("unexpected post: %+v", q)
		}
		if err := q.Reopen(); err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if q.Status != PostStatusPendingReview || q.PublicationResults != nil {
			t.Errorf("reopen must clear results: %+v", q)
		}
	})

	t.Run("regenerate discards content and results", func(t *testing.T) {
		p := postIn(t, PostStatusPendingReview)
		if err := p.StartRegeneration(); err != nil {
			t.Fatal(err)
		}
		if p.Content != nil || p.Status != PostStatusGeneratingContent {
			t.Errorf("unexpected post: %+v", p)
		}
		d := postIn(t, PostStatusDraft)
		if err := d.StartRegeneration(); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestPostClone(t *testing.T) {
	p := postIn(t, PostStatusPendingReview)
	p.Content.Tags = []string{"a"}
	p.PublicationResults = map[Platform]PublicationResult{PlatformDevTo: FailedResult(PlatformDevTo, "x")}
	cp := p.Clone()
	cp.Content.Tags[0] = "b"
	cp.PublicationResults[PlatformMedium] = FailedResult(PlatformMedium, "y")
	if p.Content.Tags[0] != "a" || len(p.PublicationResults) != 1 {
		t.Error("clone must not share mutable state")
	}
}

// --- Platform Tests ---

func TestParsePlatform(t *testing.T) {
	cases := map[string]Platform{"devto": PlatformDevTo, "Dev.to": PlatformDevTo, "DEV_TO": PlatformDevTo, " medium ": PlatformMedium, "reddit": PlatformReddit}
	for in, want := range cases {
		got, err := ParsePlatform(in)
		if err != nil || got != want {
			t.Errorf("ParsePlatform(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePlatform("myspace"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestNormalizePlatforms(t *testing.T) {
	got, err := NormalizePlatforms([]Platform{PlatformReddit, PlatformDevTo, PlatformReddit})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != PlatformDevTo || got[1] != PlatformReddit {
		t.Errorf("unexpected selection: %v", got)
	}
	if _, err := NormalizePlatforms(nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for empty selection, got %v", err)
	}
}

// --- Retry Policy Tests ---

func TestRetryPolicy(t *testing.T) {
	transient := errors.New("transient")
	permanent := errors.New("permanent")
	isTransient := func(err error) bool { return errors.Is(err, transient) }

	t.Run("zero value makes one attempt", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{}.Do(context.Background(), func(context.Context) error { calls++; return transient }, nil)
		if !errors.Is(err, transient) || calls != 1 {
			t.Errorf("calls=%d err=%v", calls, err)
		}
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Retries: 3, Backoff: time.Millisecond}.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		}, isTransient)
		if err != nil || calls != 3 {
			t.Errorf("calls=%d err=%v", calls, err)
		}
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Retries: 5}.Do(context.Background(), func(context.Context) error { calls++; return permanent }, isTransient)
		if !errors.Is(err, permanent) || calls != 1 {
			t.Errorf("calls=%d err=%v", calls, err)
		}
	})

	t.Run("stops when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := RetryPolicy{Retries: 5, Backoff: time.Hour}.Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return transient
		}, nil)
		if !errors.Is(err, transient) || calls != 1 {
			t.Errorf("calls=%d err=%v", calls, err)
		}
	})
}
