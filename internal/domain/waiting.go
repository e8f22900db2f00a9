package domain

// WaitingParticipant is one entry in the host's admission queue.
type WaitingParticipant struct {
	PeerID      PeerID             `json:"peerId"`
	DisplayName string             `json:"displayName"`
	Reputation  ReputationSnapshot `json:"reputation"`
}
