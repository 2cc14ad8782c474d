package system

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wavefrontHQ/newrelic/internal/domain"
)

type captureSender struct {
	mu     sync.Mutex
	points []domain.MetricPoint
}

func (c *captureSender) Send(p domain.MetricPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = append(c.points, p)
	return nil
}

func (c *captureSender) byName() map[string]domain.MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]domain.MetricPoint{}
	for _, p := range c.points {
		out[p.Name] = p
	}
	return out
}

func TestItems_SamplersEmitPoints(t *testing.T) {
	sender := &captureSender{}
	src := New(sender, zaptest.NewLogger(t), WithHost("web-1"))

	end := time.Date(2016, 5, 1, 0, 10, 0, 0, time.UTC)
	items, err := src.Items(context.TODO(), domain.TimeRange{Start: end.Add(-10 * time.Minute), End: end})
	require.NoError(t, err)
	require.Len(t, items, 3)

	for _, it := range items {
		require.NoError(t, it.Do(context.TODO()), it.Name)
	}

	got := sender.byName()
	for _, name := range []string{
		"system.mem.total",
		"system.mem.free",
		"system.mem.used_percent",
		"system.disk.used_percent",
		"system.disk.free",
	} {
		p, ok := got[name]
		require.True(t, ok, "missing point %s", name)
		assert.Equal(t, "web-1", p.Source)
		assert.Equal(t, end, p.Timestamp)
	}

	disk, ok := got["system.disk.used_percent"]
	require.True(t, ok)
	assert.Equal(t, "/", disk.Tags["path"])
}

func TestName(t *testing.T) {
	src := New(&captureSender{}, zaptest.NewLogger(t))
	assert.Equal(t, "system", src.Name())
}
