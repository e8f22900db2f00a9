package mesh

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingBufferTTL(t *testing.T) {
	b := newPendingBuffer(10*time.Second, 16)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }

	b.Add("p", json.RawMessage(`1`))
	now = now.Add(5 * time.Second)
	b.Add("p", json.RawMessage(`2`))
	now = now.Add(6 * time.Second) // first entry is now 11s old

	got := b.Take("p")
	assert.Len(t, got, 1)
	assert.Equal(t, `2`, string(got[0]))
}

func TestPendingBufferBounded(t *testing.T) {
	b := newPendingBuffer(time.Minute, 2)

	assert.True(t, b.Add("p", json.RawMessage(`1`)))
	assert.True(t, b.Add("p", json.RawMessage(`2`)))
	assert.False(t, b.Add("p", json.RawMessage(`3`)), "bucket over capacity")

	assert.Len(t, b.Take("p"), 2)
	assert.Empty(t, b.Take("p"), "take drains the bucket")
}

func TestPendingBufferDrop(t *testing.T) {
	b := newPendingBuffer(time.Minute, 16)
	b.Add("p", json.RawMessage(`1`))
	b.Drop("p")
	assert.Empty(t, b.Take("p"))
}
