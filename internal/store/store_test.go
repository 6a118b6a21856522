package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmquang/sensorex/internal/model/messages"
)

func reading(id string, temp float64, at time.Time) messages.Reading {
	return messages.Reading{
		DeviceID:    id,
		Temperature: temp,
		Humidity:    55,
		Timestamp:   at,
		Status:      messages.StatusOnline,
	}
}

func TestUpsertReadingSupersedes(t *testing.T) {
	s := New()
	t0 := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	s.UpsertReading(reading("s1", 21.5, t0))
	s.UpsertReading(reading("s1", 24.0, t0.Add(3*time.Second)))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap["s1"].LastReading)
	// only the most recent upsert survives, no field merging
	assert.Equal(t, 24.0, snap["s1"].LastReading.Temperature)
	assert.True(t, snap["s1"].Enabled, "first sight defaults to enabled")
}

func TestDisableAllDoesNotApplyToLaterDevices(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	s.UpsertReading(reading("A", 20, now))
	s.UpsertReading(reading("B", 21, now))

	s.SetEnabled(messages.TargetAll, false, s.Keys())

	// C appears only after the disable-all was applied
	s.UpsertReading(reading("C", 22, now.Add(time.Second)))

	snap := s.Snapshot()
	assert.False(t, snap["A"].Enabled)
	assert.False(t, snap["B"].Enabled)
	assert.True(t, snap["C"].Enabled, "command must not retroactively apply to C")
}

func TestSetEnabledIdempotent(t *testing.T) {
	s := New()
	s.UpsertReading(reading("B", 20, time.Now().UTC()))

	s.SetEnabled("B", true, s.Keys())
	first := s.Snapshot()

	s.SetEnabled("B", true, s.Keys())
	second := s.Snapshot()

	assert.Equal(t, first["B"].Enabled, second["B"].Enabled)
	require.NotNil(t, second["B"].LastReading)
	assert.Equal(t, first["B"].LastReading.Temperature, second["B"].LastReading.Temperature)
}

func TestSetEnabledCreatesEntryForUnseenTarget(t *testing.T) {
	s := New()
	s.SetEnabled("ghost", false, nil)

	d, ok := s.Get("ghost")
	require.True(t, ok)
	assert.False(t, d.Enabled)
	assert.Nil(t, d.LastReading, "control-created entry has no reading")
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New()
	s.UpsertReading(reading("s1", 25, time.Now().UTC()))

	snap := s.Snapshot()
	snap["s1"].LastReading.Temperature = -100

	again := s.Snapshot()
	assert.Equal(t, 25.0, again["s1"].LastReading.Temperature)
}

func TestStaleSince(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	var empty DeviceState
	_, ok := empty.StaleSince(now)
	assert.False(t, ok)

	s := New()
	s.UpsertReading(reading("s1", 20, now.Add(-90*time.Second)))
	d, _ := s.Get("s1")
	age, ok := d.StaleSince(now)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)
}
