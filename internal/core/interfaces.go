package core

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Meet/internal/domain"
)

// InboundEvent is one decoded frame from the signaling relay.
// Payload stays raw until the handler for Name picks a concrete shape.
type InboundEvent struct {
	Name    string
	Payload json.RawMessage
}

// SignalChannel abstracts the relay transport.
// Owned by the adapter; the adapter must Close() it.
type SignalChannel interface {
	Send(event string, v any) error
	Events() <-chan InboundEvent
	Close()
}

// Notifier surfaces non-fatal notices to the presentation layer.
type Notifier interface {
	Notify(level NoticeLevel, msg string)
}

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// RatingRequest is a host-issued score adjustment for one participant.
type RatingRequest struct {
	Reason    string `json:"reason"`
	Points    int    `json:"points"`
	MeetingID string `json:"meetingId"`
}

// RatingResult mirrors the backend response for rate/award calls.
type RatingResult struct {
	PreviousScore int                    `json:"previousScore"`
	NewScore      int                    `json:"newScore"`
	Level         domain.ReputationLevel `json:"reputationLevel"`
}

// ReputationService is the external backend that owns all scores.
type ReputationService interface {
	Rate(ctx context.Context, userID domain.UserID, req RatingRequest) (RatingResult, error)
	Award(ctx context.Context, userID domain.UserID, req RatingRequest) (RatingResult, error)
	BulkFetch(ctx context.Context, userIDs []domain.UserID) (map[domain.UserID]domain.ReputationSnapshot, error)
}
