package core

import "github.com/dkeye/Meet/internal/domain"

// PeerDTO is a read-only view for APIs (no transport fields).
type PeerDTO struct {
	PeerID      domain.PeerID             `json:"peerId"`
	UserID      domain.UserID             `json:"userId"`
	DisplayName string                    `json:"displayName"`
	IsHost      bool                      `json:"isHost"`
	Media       domain.MediaState         `json:"media"`
	Reputation  domain.ReputationSnapshot `json:"reputation"`
}

// SessionSnapshot is what the presentation layer renders.
// It is a copy; mutating it has no effect on the session.
type SessionSnapshot struct {
	RoomID         domain.RoomID               `json:"roomId"`
	Local          domain.Identity             `json:"local"`
	IsHost         bool                        `json:"isHost"`
	AdmissionState string                      `json:"admissionState"`
	Quality        domain.ConnectionQuality    `json:"connectionQuality"`
	Media          domain.MediaState           `json:"media"`
	Peers          []PeerDTO                   `json:"peers"`
	Waiting        []domain.WaitingParticipant `json:"waiting,omitempty"`
}
