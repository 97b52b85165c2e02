package model

import "time"

type PublicationOutcome string

const (
	OutcomeSuccess       PublicationOutcome = "success"
	OutcomeFailed        PublicationOutcome = "failed"
	OutcomeNotConfigured PublicationOutcome = "not_configured"
)

// PublishedRef points at content after a successful publish.
type PublishedRef struct {
	URL            string
	PlatformPostID string
}

// PublicationResult is the outcome of one platform in a publish fan-out.
type PublicationResult struct {
	Platform       Platform           `json:"platform"`
	Outcome        PublicationOutcome `json:"outcome"`
	URL            string             `json:"url,omitempty"`
	PlatformPostID string             `json:"platform_post_id,omitempty"`
	ErrorReason    string             `json:"error_reason,omitempty"`
	PublishedAt    *time.Time         `json:"published_at,omitempty"`
}

func (r PublicationResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }

func SuccessResult(p Platform, ref PublishedRef, at time.Time) PublicationResult {
	return PublicationResult{
		Platform:       p,
		Outcome:        OutcomeSuccess,
		URL:            ref.URL,
		PlatformPostID: ref.PlatformPostID,
		PublishedAt:    &at,
	}
}

func FailedResult(p Platform, reason string) PublicationResult {
	return PublicationResult{Platform: p, Outcome: OutcomeFailed, ErrorReason: reason}
}

func NotConfiguredResult(p Platform) PublicationResult {
	return PublicationResult{
		Platform:    p,
		Outcome:     OutcomeNotConfigured,
		ErrorReason: "publisher for " + p.DisplayName() + " is not configured",
	}
}
