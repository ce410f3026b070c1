package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_DaysRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  *Subscription
		want int
	}{
		{name: "nil", sub: nil, want: 0},
		{name: "inactive", sub: &Subscription{Active: false, ExpiresAt: now.Add(72 * time.Hour)}, want: 0},
		{name: "expired", sub: &Subscription{Active: true, ExpiresAt: now.Add(-time.Minute)}, want: 0},
		{name: "exactly at expiry", sub: &Subscription{Active: true, ExpiresAt: now}, want: 0},
		{name: "one hour left", sub: &Subscription{Active: true, ExpiresAt: now.Add(time.Hour)}, want: 1},
		{name: "exact days", sub: &Subscription{Active: true, ExpiresAt: now.Add(14 * 24 * time.Hour)}, want: 14},
		{name: "partial day rounds up", sub: &Subscription{Active: true, ExpiresAt: now.Add(13*24*time.Hour + time.Minute)}, want: 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.DaysRemaining(now))
		})
	}
}

func TestSubscription_RecordEvent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var sub Subscription

	sub.RecordEvent("evt-1", t0)
	sub.RecordEvent("evt-2", t0.Add(-time.Minute))
	assert.True(t, sub.SeenEvent("evt-1"))
	assert.True(t, sub.SeenEvent("evt-2"))
	assert.False(t, sub.SeenEvent("evt-3"))
	assert.Equal(t, "evt-2", sub.LastEventID)
	assert.Equal(t, t0, sub.LastEventAt, "LastEventAt never moves backwards")

	for i := 0; i < MaxRecentEvents; i++ {
		sub.RecordEvent(fmt.Sprintf("bulk-%d", i), time.Time{})
	}
	assert.Len(t, sub.RecentEventIDs, MaxRecentEvents)
	assert.False(t, sub.SeenEvent("evt-1"))
	assert.True(t, sub.SeenEvent("bulk-0"))
	assert.True(t, sub.SeenEvent(fmt.Sprintf("bulk-%d", MaxRecentEvents-1)))
}

func TestSubscription_SeenEventLegacyField(t *testing.T) {
	sub := Subscription{LastEventID: "evt-legacy"}
	assert.True(t, sub.SeenEvent("evt-legacy"))
}
