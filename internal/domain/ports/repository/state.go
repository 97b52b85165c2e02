package repository

import (
	"context"
)

const (
	StepAwaitingTopic      = "awaiting_topic"
	StepSelectingPlatforms = "selecting_platforms"
)

// ConversationState holds the user's progress in a multi-step chat flow.
type ConversationState struct {
	Step string            `json:"step"` // e.g. StepAwaitingTopic
	Data map[string]string `json:"data"` // e.g. post_id, selected platforms
}

// StateRepository is the port for managing a user's conversational state.
// GetState returns domain.ErrNotFound when no state is stored.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state *ConversationState) error
	GetState(ctx context.Context, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, tgID int64) error
}
