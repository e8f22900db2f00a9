package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type fakeBackend struct {
	calls  int
	result core.RatingResult
	err    error
}

func (f *fakeBackend) Rate(_ context.Context, _ domain.UserID, _ core.RatingRequest) (core.RatingResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeBackend) Award(_ context.Context, _ domain.UserID, _ core.RatingRequest) (core.RatingResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeBackend) BulkFetch(_ context.Context, ids []domain.UserID) (map[domain.UserID]domain.ReputationSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[domain.UserID]domain.ReputationSnapshot, len(ids))
	for _, id := range ids {
		out[id] = domain.ReputationSnapshot{Score: 50, Level: domain.LevelMember}
	}
	return out, nil
}

type fakeNotifier struct{ notices []string }

func (f *fakeNotifier) Notify(_ core.NoticeLevel, msg string) { f.notices = append(f.notices, msg) }

type sentEvent struct {
	event string
	body  any
}

type harness struct {
	coord    *Coordinator
	backend  *fakeBackend
	notifier *fakeNotifier
	sent     []sentEvent
	updates  map[domain.UserID]domain.ReputationSnapshot
	isHost   bool
}

func newHarness(isHost bool) *harness {
	h := &harness{
		backend:  &fakeBackend{},
		notifier: &fakeNotifier{},
		updates:  make(map[domain.UserID]domain.ReputationSnapshot),
		isHost:   isHost,
	}
	h.coord = NewCoordinator(
		func() bool { return h.isHost },
		"Ada",
		"room-1",
		func(event string, v any) error {
			h.sent = append(h.sent, sentEvent{event: event, body: v})
			return nil
		},
		h.backend,
		func(id domain.UserID, snap domain.ReputationSnapshot) { h.updates[id] = snap },
		h.notifier,
		25,
	)
	return h
}

func TestNonHostIsRejectedLocally(t *testing.T) {
	h := newHarness(false)

	assert.ErrorIs(t, h.coord.MuteParticipant("p1", ""), ErrNotHost)
	assert.ErrorIs(t, h.coord.Rate(context.Background(), "u1", "spam", 5), ErrNotHost)

	assert.Empty(t, h.sent, "no signaling command may leave a non-host")
	assert.Zero(t, h.backend.calls, "no network call may leave a non-host")
	assert.NotEmpty(t, h.notifier.notices)
}

func TestPointsOutsideCapRejectedBeforeNetwork(t *testing.T) {
	h := newHarness(true)

	err := h.coord.Award(context.Background(), "u1", "great question", 130)
	assert.ErrorIs(t, err, ErrPointsInvalid)
	assert.Zero(t, h.backend.calls, "cap check must precede the REST call")

	err = h.coord.Rate(context.Background(), "u1", "spam", -26)
	assert.ErrorIs(t, err, ErrPointsInvalid)
	assert.Zero(t, h.backend.calls)
}

func TestAwardRejectsNegativePoints(t *testing.T) {
	h := newHarness(true)
	assert.ErrorIs(t, h.coord.Award(context.Background(), "u1", "x", -5), ErrPointsInvalid)
	assert.Zero(t, h.backend.calls)
}

func TestSuccessfulRateUpdatesSnapshot(t *testing.T) {
	h := newHarness(true)
	h.backend.result = core.RatingResult{PreviousScore: 40, NewScore: 45, Level: domain.LevelMember}

	require.NoError(t, h.coord.Rate(context.Background(), "u1", "helpful", 5))

	snap, ok := h.updates["u1"]
	require.True(t, ok)
	assert.Equal(t, 45, snap.Score)
	assert.Equal(t, domain.LevelMember, snap.Level)
	assert.False(t, snap.IsRestricted)
}

func TestRestrictedLevelMarksSnapshot(t *testing.T) {
	h := newHarness(true)
	h.backend.result = core.RatingResult{PreviousScore: 10, NewScore: 2, Level: domain.LevelRestricted}

	require.NoError(t, h.coord.Rate(context.Background(), "u1", "abuse", -20))
	assert.True(t, h.updates["u1"].IsRestricted)
}

func TestBackendFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(true)
	h.backend.err = errors.New("boom")

	err := h.coord.Rate(context.Background(), "u1", "helpful", 5)
	require.Error(t, err)
	assert.Empty(t, h.updates, "snapshot must stay unchanged on failure")
	assert.NotEmpty(t, h.notifier.notices, "failure surfaces a notice, no retry")
}

func TestHostCommandsAreFireAndForget(t *testing.T) {
	h := newHarness(true)

	require.NoError(t, h.coord.MuteParticipant("p1", "background noise"))
	require.NoError(t, h.coord.MuteAll(""))
	require.NoError(t, h.coord.DisableAllVideos(""))

	require.Len(t, h.sent, 3)
	assert.Equal(t, core.EvHostMute, h.sent[0].event)
	assert.Equal(t, core.EvHostMuteAll, h.sent[1].event)
	assert.Equal(t, core.EvHostDisableAllVideos, h.sent[2].event)
}

func TestBulkRefreshAppliesSnapshots(t *testing.T) {
	h := newHarness(true)
	h.coord.RefreshSnapshots(context.Background(), []domain.UserID{"u1", "u2"})
	assert.Len(t, h.updates, 2)
}
