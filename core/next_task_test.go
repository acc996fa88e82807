package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChooseNext(t *testing.T) {
	tests := []struct {
		name       string
		nowMs      int64
		front      OrderID
		hasPending bool
		earliest   delayedKey
		hasDelayed bool
		want       nextDecision
	}{
		{
			name: "both empty sleeps forever",
			want: nextDecision{source: sourceNone, sleep: Forever},
		},
		{
			name:       "pending only",
			front:      3,
			hasPending: true,
			want:       nextDecision{source: sourcePending},
		},
		{
			name:       "delayed not due sleeps until deadline",
			nowMs:      1000,
			earliest:   delayedKey{fireAtMs: 1250, order: 0},
			hasDelayed: true,
			want:       nextDecision{source: sourceNone, sleep: 250 * time.Millisecond},
		},
		{
			name:       "delayed due at exactly now",
			nowMs:      1000,
			earliest:   delayedKey{fireAtMs: 1000, order: 0},
			hasDelayed: true,
			want:       nextDecision{source: sourceDelayed},
		},
		{
			name:       "due delayed submitted first wins",
			nowMs:      1000,
			front:      5,
			hasPending: true,
			earliest:   delayedKey{fireAtMs: 900, order: 4},
			hasDelayed: true,
			want:       nextDecision{source: sourceDelayed},
		},
		{
			name:       "pending submitted first wins over due delayed",
			nowMs:      1000,
			front:      4,
			hasPending: true,
			earliest:   delayedKey{fireAtMs: 900, order: 5},
			hasDelayed: true,
			want:       nextDecision{source: sourcePending},
		},
		{
			name:       "pending runs while delayed not due",
			nowMs:      1000,
			front:      9,
			hasPending: true,
			earliest:   delayedKey{fireAtMs: 5000, order: 1},
			hasDelayed: true,
			want:       nextDecision{source: sourcePending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chooseNext(tt.nowMs, tt.front, tt.hasPending, tt.earliest, tt.hasDelayed)
			assert.Equal(t, tt.want.source, got.source)
			if tt.want.source == sourceNone {
				assert.Equal(t, tt.want.sleep, got.sleep)
			}
		})
	}
}

func TestDeadlineMillis(t *testing.T) {
	base := time.UnixMilli(1000)

	assert.Equal(t, int64(1000), deadlineMillis(base, 0))
	assert.Equal(t, int64(1001), deadlineMillis(base, time.Nanosecond), "sub-millisecond delays round up")
	assert.Equal(t, int64(1050), deadlineMillis(base, 50*time.Millisecond))
	assert.Equal(t, int64(1000), deadlineMillis(base, -5*time.Millisecond), "negative delay means now")
	assert.Equal(t, int64(1000), deadlineMillis(base.Add(time.Nanosecond), 0), "zero delay is due within the current millisecond")
	assert.Equal(t, int64(1001), deadlineMillis(base.Add(time.Nanosecond), time.Nanosecond))

	// a zero-delay entry must be due for the same clock reading
	mid := base.Add(500 * time.Microsecond)
	key := delayedKey{fireAtMs: deadlineMillis(mid, 0), order: 0}
	got := chooseNext(mid.UnixMilli(), 1, true, key, true)
	assert.Equal(t, sourceDelayed, got.source)
}
