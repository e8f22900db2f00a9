package core

// Signaling event names. These are stable wire identifiers shared with
// the relay service; renaming one is a protocol change.
const (
	// outbound
	EvJoinRoom         = "join-room"
	EvSignal           = "signal"
	EvChatMessage      = "chat-message"
	EvTypingStart      = "typing-start"
	EvTypingStop       = "typing-stop"
	EvEmojiReaction    = "emoji-reaction"
	EvHandRaiseToggle  = "hand-raise-toggle"
	EvToggleAudio      = "toggle-audio"
	EvToggleVideo      = "toggle-video"
	EvStartScreenShare = "start-screen-share"
	EvStopScreenShare  = "stop-screen-share"
	EvAdmit            = "admit-participant"
	EvReject           = "reject-participant"

	// host moderation commands (out for the host, in for the target)
	EvHostMute             = "host-mute-participant"
	EvHostDisableVideo     = "host-disable-video"
	EvHostRemove           = "host-remove-participant"
	EvHostMuteAll          = "host-mute-all"
	EvHostDisableAllVideos = "host-disable-all-videos"

	// inbound
	EvHostStatus         = "host-status"
	EvExistingUsers      = "existing-users"
	EvUserConnected      = "user-connected"
	EvUserDisconnected   = "user-disconnected"
	EvAdmitted           = "admitted-to-meeting"
	EvRejected           = "rejected-from-meeting"
	EvAdmissionRejected  = "admission-rejected"
	EvWaitingRoomStatus  = "waiting-room-status"
	EvWaitingUpdate      = "waiting-participants-update"
	EvHostMutedYou       = "host-muted-you"
	EvHostDisabledVideo  = "host-disabled-your-video"
	EvHostRemovedYou     = "host-removed-you"
	EvHostMutedAll       = "host-muted-all"
	EvHostDisabledVideos = "host-disabled-all-videos"
	EvDisconnected       = "disconnected"
)
