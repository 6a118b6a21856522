package sensor_emitter

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dmquang/sensorex/internal/model"
)

// ====== Tunables ======
const (
	// tempStep: max °C drift per sample.
	tempStep = 0.8

	// humidityStep: max %RH drift per sample.
	humidityStep = 2.5
)

// DataGenerator keeps the internal walk state and yields a Reading on
// demand. The first call seeds uniformly inside the configured bounds; later
// calls drift by a small bounded step, clamped to the bounds.
type DataGenerator struct {
	mu       sync.Mutex
	walk     WalkConfig
	rng      *rand.Rand
	seeded   bool
	temp     float64
	humidity float64
}

func NewDataGenerator(walk WalkConfig, seed int64) *DataGenerator {
	return &DataGenerator{
		walk: walk,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Next advances the walk and returns a Reading for deviceID. online selects
// the origin status stamped on the reading.
func (g *DataGenerator) Next(deviceID string, online bool) model.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.seeded {
		g.temp = g.walk.TempMin + g.rng.Float64()*(g.walk.TempMax-g.walk.TempMin)
		g.humidity = g.walk.HumidityMin + g.rng.Float64()*(g.walk.HumidityMax-g.walk.HumidityMin)
		g.seeded = true
	} else {
		g.temp = clamp(g.temp+(g.rng.Float64()*2-1)*tempStep, g.walk.TempMin, g.walk.TempMax)
		g.humidity = clamp(g.humidity+(g.rng.Float64()*2-1)*humidityStep, g.walk.HumidityMin, g.walk.HumidityMax)
	}

	status := model.StatusOnline
	if !online {
		status = model.StatusOffline
	}

	return model.Reading{
		DeviceID:    deviceID,
		Temperature: round2(g.temp),
		Humidity:    round2(g.humidity),
		Timestamp:   time.Now().UTC(),
		Status:      status,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
