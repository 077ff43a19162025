package framecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/crowdwatch/internal/model"
)

func TestPutGetLatestReturnsHighestSeq(t *testing.T) {
	c := New(10, 5*time.Second)
	c.Put("cam1", 1, model.Frame{FrameID: 1})
	c.Put("cam1", 2, model.Frame{FrameID: 2})
	c.Put("cam1", 3, model.Frame{FrameID: 3})

	f, ok := c.GetLatest("cam1")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), f.FrameID)
}

func TestGetLatestUnknownCameraMisses(t *testing.T) {
	c := New(10, 5*time.Second)
	_, ok := c.GetLatest("unknown")
	assert.False(t, ok)
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Put("cam1", 1, model.Frame{FrameID: 1})

	time.Sleep(30 * time.Millisecond)
	c.EvictExpired()

	_, ok := c.GetLatest("cam1")
	assert.False(t, ok, "entry should have expired")
}

func TestBoundedCapacityEvictsOldest(t *testing.T) {
	c := New(2, time.Minute)
	c.Put("cam1", 1, model.Frame{FrameID: 1})
	c.Put("cam1", 2, model.Frame{FrameID: 2})
	c.Put("cam1", 3, model.Frame{FrameID: 3})

	f, ok := c.GetLatest("cam1")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), f.FrameID)
	assert.False(t, c.camera("cam1").lru.Contains(1), "seq 1 should have been evicted")
}

func TestCamerasAreIndependent(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("cam1", 1, model.Frame{FrameID: 11})
	c.Put("cam2", 1, model.Frame{FrameID: 22})

	f1, _ := c.GetLatest("cam1")
	f2, _ := c.GetLatest("cam2")
	assert.Equal(t, uint64(11), f1.FrameID)
	assert.Equal(t, uint64(22), f2.FrameID)
}
