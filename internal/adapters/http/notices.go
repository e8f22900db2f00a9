package http

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
)

// Notice is one user-facing message surfaced by the session core.
type Notice struct {
	Level core.NoticeLevel `json:"level"`
	Text  string           `json:"text"`
	At    time.Time        `json:"at"`
}

// NoticeLog implements core.Notifier as a bounded ring the UI polls.
type NoticeLog struct {
	mu      sync.Mutex
	notices []Notice
	max     int
}

func NewNoticeLog(max int) *NoticeLog {
	if max <= 0 {
		max = 64
	}
	return &NoticeLog{max: max}
}

func (n *NoticeLog) Notify(level core.NoticeLevel, msg string) {
	log.Info().Str("module", "notices").Str("level", string(level)).Msg(msg)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{Level: level, Text: msg, At: time.Now()})
	if len(n.notices) > n.max {
		n.notices = n.notices[len(n.notices)-n.max:]
	}
}

func (n *NoticeLog) Snapshot() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}
