package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *memPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *memPublisher) entries() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollector_AggregatesRepeatsOnClose(t *testing.T) {
	pub := &memPublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := range 3 {
		l.Error("fetch failed", Int("attempt", i), Error(errors.New("502")))
	}
	l.Warn("slow cycle")
	l.Info("ignored")
	l.RemoveCollector()

	got := pub.entries()
	require.Len(t, got, 1, "warn is not collected by default")
	assert.Equal(t, "logs", pub.topic)
	assert.Equal(t, "error", got[0].Level)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, 2, got[0].Fields["attempt"], "latest fields kept")
	assert.Equal(t, "502", got[0].Fields["error"])
}

func TestCollector_WarnLevelAndThreshold(t *testing.T) {
	pub := &memPublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub, Levels: []string{"warn", "error"}})
	defer l.RemoveCollector()

	l.Warn("first")
	l.Error("second")

	require.Eventually(t, func() bool { return len(pub.entries()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestErrorField_Nil(t *testing.T) {
	k, v := Error(nil).GetKeyValue()
	assert.Equal(t, "error", k)
	assert.Nil(t, v)
}
