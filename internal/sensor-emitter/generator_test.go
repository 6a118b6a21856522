package sensor_emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalkStaysInsideBounds(t *testing.T) {
	walk := WalkConfig{TempMin: 20, TempMax: 35, HumidityMin: 40, HumidityMax: 80}
	g := NewDataGenerator(walk, 42)

	for i := 0; i < 500; i++ {
		r := g.Next("s1", true)
		assert.GreaterOrEqual(t, r.Temperature, walk.TempMin)
		assert.LessOrEqual(t, r.Temperature, walk.TempMax)
		assert.GreaterOrEqual(t, r.Humidity, walk.HumidityMin)
		assert.LessOrEqual(t, r.Humidity, walk.HumidityMax)
	}
}

func TestWalkDrifts(t *testing.T) {
	g := NewDataGenerator(DefaultProfile().Walk, 7)

	first := g.Next("s1", true)
	changed := false
	for i := 0; i < 20; i++ {
		if g.Next("s1", true).Temperature != first.Temperature {
			changed = true
			break
		}
	}
	assert.True(t, changed, "walk should move over 20 samples")
}

func TestOfflineStatus(t *testing.T) {
	g := NewDataGenerator(DefaultProfile().Walk, 3)
	r := g.Next("s1", false)
	assert.Equal(t, "offline", r.Status)
}
