// Package moderation translates host commands into signaling events and
// REST calls, and applies the resulting state and score updates.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrNotHost       = errors.New("host-only action")
	ErrPointsInvalid = errors.New("points outside allowed range")
)

// Sender pushes a fire-and-forget signaling command.
type Sender func(event string, v any) error

// SnapshotUpdater applies a confirmed score to the local peer cache.
type SnapshotUpdater func(userID domain.UserID, snap domain.ReputationSnapshot)

type Coordinator struct {
	isHost    func() bool
	hostName  string
	send      Sender
	backend   core.ReputationService
	update    SnapshotUpdater
	notifier  core.Notifier
	pointsCap int
	meetingID string
}

func NewCoordinator(
	isHost func() bool,
	hostName string,
	meetingID string,
	send Sender,
	backend core.ReputationService,
	update SnapshotUpdater,
	notifier core.Notifier,
	pointsCap int,
) *Coordinator {
	if pointsCap <= 0 {
		pointsCap = 25
	}
	return &Coordinator{
		isHost:    isHost,
		hostName:  hostName,
		meetingID: meetingID,
		send:      send,
		backend:   backend,
		update:    update,
		notifier:  notifier,
		pointsCap: pointsCap,
	}
}

type targetCommand struct {
	PeerID   domain.PeerID `json:"peerId"`
	HostName string        `json:"hostName"`
	Reason   string        `json:"reason,omitempty"`
}

type broadcastCommand struct {
	HostName string `json:"hostName"`
	Reason   string `json:"reason,omitempty"`
}

// Host commands. All are fire-and-forget: the receiving participant
// applies the effect locally and the host only sees a roster update as
// confirmation, never a direct acknowledgement.

func (c *Coordinator) MuteParticipant(id domain.PeerID, reason string) error {
	return c.sendTargeted(core.EvHostMute, id, reason)
}

func (c *Coordinator) DisableParticipantVideo(id domain.PeerID, reason string) error {
	return c.sendTargeted(core.EvHostDisableVideo, id, reason)
}

func (c *Coordinator) RemoveParticipant(id domain.PeerID, reason string) error {
	return c.sendTargeted(core.EvHostRemove, id, reason)
}

func (c *Coordinator) MuteAll(reason string) error {
	return c.sendBroadcast(core.EvHostMuteAll, reason)
}

func (c *Coordinator) DisableAllVideos(reason string) error {
	return c.sendBroadcast(core.EvHostDisableAllVideos, reason)
}

func (c *Coordinator) sendTargeted(event string, id domain.PeerID, reason string) error {
	if err := c.requireHost(); err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("event", event).Str("peer", string(id)).Msg("host command")
	return c.send(event, targetCommand{PeerID: id, HostName: c.hostName, Reason: reason})
}

func (c *Coordinator) sendBroadcast(event string, reason string) error {
	if err := c.requireHost(); err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("event", event).Msg("host broadcast command")
	return c.send(event, broadcastCommand{HostName: c.hostName, Reason: reason})
}

// Rate posts a score adjustment. Points are validated before any
// network call; on success the local snapshot is updated optimistically
// from the response, on failure it is left unchanged. No retries.
func (c *Coordinator) Rate(ctx context.Context, userID domain.UserID, reason string, points int) error {
	return c.score(ctx, userID, reason, points, c.backend.Rate)
}

// Award is Rate's positive-only sibling.
func (c *Coordinator) Award(ctx context.Context, userID domain.UserID, reason string, points int) error {
	if points < 0 {
		return ErrPointsInvalid
	}
	return c.score(ctx, userID, reason, points, c.backend.Award)
}

type scoreCall func(ctx context.Context, userID domain.UserID, req core.RatingRequest) (core.RatingResult, error)

func (c *Coordinator) score(ctx context.Context, userID domain.UserID, reason string, points int, call scoreCall) error {
	if err := c.requireHost(); err != nil {
		return err
	}
	if points < -c.pointsCap || points > c.pointsCap {
		c.notify(core.NoticeWarn, fmt.Sprintf("points must be within ±%d", c.pointsCap))
		return ErrPointsInvalid
	}

	res, err := call(ctx, userID, core.RatingRequest{
		Reason:    reason,
		Points:    points,
		MeetingID: c.meetingID,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "moderation").Str("user", string(userID)).Msg("score call failed")
		c.notify(core.NoticeError, "reputation update failed")
		return err
	}

	c.update(userID, domain.ReputationSnapshot{
		Score:        res.NewScore,
		Level:        res.Level,
		IsRestricted: res.Level == domain.LevelRestricted,
	})
	log.Info().
		Str("module", "moderation").
		Str("user", string(userID)).
		Int("previous", res.PreviousScore).
		Int("new", res.NewScore).
		Msg("score updated")
	return nil
}

// RefreshSnapshots bulk-fetches reputation for the given participants.
func (c *Coordinator) RefreshSnapshots(ctx context.Context, userIDs []domain.UserID) {
	if c.backend == nil || len(userIDs) == 0 {
		return
	}
	snaps, err := c.backend.BulkFetch(ctx, userIDs)
	if err != nil {
		log.Error().Err(err).Str("module", "moderation").Msg("bulk fetch failed")
		c.notify(core.NoticeWarn, "could not refresh reputation scores")
		return
	}
	for uid, snap := range snaps {
		c.update(uid, snap)
	}
}

// requireHost rejects locally, before any network call.
func (c *Coordinator) requireHost() error {
	if !c.isHost() {
		c.notify(core.NoticeWarn, "only the host can do that")
		return ErrNotHost
	}
	return nil
}

func (c *Coordinator) notify(level core.NoticeLevel, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(level, msg)
	}
}
