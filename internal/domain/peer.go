package domain

// Peer is the meta-data of one remote participant.
// No transport or lifecycle logic here; the mesh owns the connection.
type Peer struct {
	PeerID      PeerID
	UserID      UserID
	DisplayName string
	IsHost      bool
	Media       MediaState
	Reputation  ReputationSnapshot
}

// NewPeer avoids raw literals in adapters and keeps construction obvious.
func NewPeer(peerID PeerID, userID UserID, displayName string) *Peer {
	return &Peer{
		PeerID:      peerID,
		UserID:      userID,
		DisplayName: displayName,
		Media:       MediaState{AudioOn: true, VideoOn: true, HasCamera: true},
	}
}
