// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxUserIDLen      = 36
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type (
	UserID string
	PeerID string
	RoomID string
)

// Identity is the stable application identity of the local participant.
// PeerID is transport-assigned and only valid for one connection lifetime.
type Identity struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
}

func NewIdentity(userID UserID, displayName string) (Identity, error) {
	if displayName == "" {
		return Identity{}, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{UserID: userID, DisplayName: displayName}, nil
}

// MediaState mirrors what a participant broadcasts about its own devices.
type MediaState struct {
	AudioOn       bool `json:"audioOn"`
	VideoOn       bool `json:"videoOn"`
	HandRaised    bool `json:"handRaised"`
	ScreenSharing bool `json:"screenSharing"`
	HasCamera     bool `json:"hasCamera"`
}

// ConnectionQuality is the displayed session-level transport quality.
type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityFair      ConnectionQuality = "fair"
	QualityPoor      ConnectionQuality = "poor"
)
