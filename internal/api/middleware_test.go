package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiterEvictsIdleAddresses(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newIPLimiter(60, 1)
	l.now = func() time.Time { return now }

	first := l.get("10.0.0.1")
	l.get("10.0.0.2")
	assert.Len(t, l.visitors, 2)
	assert.Same(t, first, l.get("10.0.0.1"))

	now = now.Add(limiterIdle / 2)
	l.get("10.0.0.1")

	now = now.Add(limiterIdle/2 + time.Second)
	l.get("10.0.0.3")
	assert.Len(t, l.visitors, 2)
	assert.Contains(t, l.visitors, "10.0.0.1")
	assert.NotContains(t, l.visitors, "10.0.0.2")

	now = now.Add(2 * limiterIdle)
	fresh := l.get("10.0.0.1")
	assert.NotSame(t, first, fresh)
	assert.Len(t, l.visitors, 1)
}
