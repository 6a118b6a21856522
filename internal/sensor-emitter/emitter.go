package sensor_emitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dmquang/sensorex/internal/codec"
	"github.com/dmquang/sensorex/internal/model"
	"github.com/dmquang/sensorex/internal/store"
	"github.com/dmquang/sensorex/pkg/dedup"
	"github.com/dmquang/sensorex/pkg/mqttbus"
)

// ConnState exposes the bus adapter's connection flag. The emitter only
// reads it to gate publish attempts; transitions happen in the adapter.
type ConnState interface {
	IsConnected() bool
}

// Emitter runs one simulated device: the sampling-tick loop and the control
// consumer share a single processing loop, so the Enabled flag and the local
// state copy see commands and ticks in arrival order.
type Emitter struct {
	mu        sync.Mutex
	device    *model.Device
	generator *DataGenerator
	connState ConnState
	readings  mqttbus.IPublisher
	acks      mqttbus.IPublisher
	consumer  mqttbus.IConsumer
	local     *store.Store // local copy of this device's converged state
	deduper   *dedup.Deduper
	interval  time.Duration
}

func NewEmitter(
	connState ConnState,
	consumer mqttbus.IConsumer,
	readings, acks mqttbus.IPublisher,
	gen *DataGenerator,
	device *model.Device,
	interval time.Duration,
) *Emitter {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	e := &Emitter{
		device:    device,
		generator: gen,
		connState: connState,
		readings:  readings,
		acks:      acks,
		consumer:  consumer,
		local:     store.New(),
		deduper:   dedup.New(2*time.Minute, 10000), // TTL e cap
		interval:  interval,
	}
	e.local.SetEnabled(device.ID, device.Enabled, nil)
	return e
}

// Run starts the control consumer and the tick loop. It blocks until the
// context is cancelled.
func (e *Emitter) Run(ctx context.Context) {
	go func() {
		if err := e.consumer.Run(ctx); err != nil {
			log.Printf("emitter: control consumer stopped: %v", err)
		}
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.consumer.Events():
			e.handleControl(ev)
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick publishes one reading. Disconnected or disabled ticks are no-ops,
// not errors; there is no retry and the next tick proceeds independently.
func (e *Emitter) tick() {
	if !e.connState.IsConnected() {
		return
	}
	if !e.Enabled() {
		return
	}

	r := e.generator.Next(e.device.ID, true)
	e.local.UpsertReading(r)

	payload, err := codec.EncodeReading(r)
	if err != nil {
		log.Printf("emitter: encode reading: %v", err)
		return
	}
	if err := e.readings.Publish(payload); err != nil {
		if !errors.Is(err, mqttbus.ErrNotConnected) {
			log.Printf("emitter: publish error: %v", err)
		}
		return
	}
	log.Printf("emitter: pub reading device=%s temp=%.2f hum=%.2f", r.DeviceID, r.Temperature, r.Humidity)
}

// handleControl applies a command addressed to this device (or "all") and
// rebroadcasts the acknowledgement. Acknowledgement-by-rebroadcast is the
// only convergence signal observers get: the bus has no request/response.
func (e *Emitter) handleControl(ev mqttbus.Event) {
	// QoS1 redelivery carries the same payload, so same hash
	h := sha256.Sum256(ev.Payload)
	if e.deduper != nil && !e.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		log.Printf("emitter: duplicate control delivery dropped (total=%d)", e.deduper.Duplicates())
		return
	}

	cmd, err := codec.DecodeControl(ev.Payload)
	if err != nil {
		log.Printf("emitter: bad control payload: %v", err)
		return
	}
	if cmd.Target != e.device.ID && cmd.Target != model.TargetAll {
		// command for another device, no reply channel to report on
		return
	}

	enabled := cmd.Enables()
	e.mu.Lock()
	e.device.Enabled = enabled
	e.mu.Unlock()
	e.local.SetEnabled(e.device.ID, enabled, nil)
	log.Printf("emitter: device %s -> %s (originator=%s)", e.device.ID, cmd.Command, cmd.OriginatorID)

	ack := model.ControlCommand{
		Command:      cmd.Command,
		Target:       e.device.ID, // ack names this device, even for "all"
		OriginatorID: cmd.OriginatorID,
		IssuedAt:     time.Now().UTC(),
	}
	payload, err := codec.EncodeControl(ack)
	if err != nil {
		log.Printf("emitter: encode ack: %v", err)
		return
	}
	if err := e.acks.Publish(payload); err != nil && !errors.Is(err, mqttbus.ErrNotConnected) {
		log.Printf("emitter: ack publish error: %v", err)
	}
}

// Enabled reports the device's current enable flag.
func (e *Emitter) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device.Enabled
}

// LocalState returns a copy of the emitter's own converged state.
func (e *Emitter) LocalState() map[string]store.DeviceState {
	return e.local.Snapshot()
}
