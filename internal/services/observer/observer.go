// Package observer aggregates readings from every emitter into the device
// state store, issues control commands and reconciles emitter
// acknowledgements with its own optimistic edits.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dmquang/sensorex/internal/codec"
	"github.com/dmquang/sensorex/internal/model"
	"github.com/dmquang/sensorex/internal/store"
	"github.com/dmquang/sensorex/pkg/mqttbus"
)

// UpdateKind discriminates the discrete events handed to the presentation
// collaborator.
type UpdateKind string

const (
	UpdateReading     UpdateKind = "reading"
	UpdateStateChange UpdateKind = "state_change"
)

// Update is one discrete notification: a new reading or a state change.
type Update struct {
	Kind     UpdateKind
	DeviceID string
	Reading  *model.Reading // set for reading updates
	Enabled  bool           // set for state changes
}

// Observer is the observer protocol engine. One dispatch loop consumes the
// readings and acknowledgement topics; IssueCommand may be called
// concurrently from the presentation surface; the store serializes them.
type Observer struct {
	store    *store.Store
	consumer mqttbus.IConsumer
	control  mqttbus.IPublisher
	originID string
	recorder *Recorder // optional
	metrics  *Metrics  // optional
	updates  chan Update
	dropped  atomic.Uint64
}

func New(consumer mqttbus.IConsumer, control mqttbus.IPublisher, originID string, recorder *Recorder, metrics *Metrics) *Observer {
	return &Observer{
		store:    store.New(),
		consumer: consumer,
		control:  control,
		originID: originID,
		recorder: recorder,
		metrics:  metrics,
		updates:  make(chan Update, 128),
	}
}

// Snapshot returns a copy of the converged device mapping.
func (o *Observer) Snapshot() map[string]store.DeviceState {
	return o.store.Snapshot()
}

// Updates delivers discrete presentation events. A slow consumer never
// stalls inbound processing: sends are non-blocking and drop on a full
// channel.
func (o *Observer) Updates() <-chan Update { return o.updates }

// Run starts the consumer and blocks dispatching inbound events until the
// context is cancelled.
func (o *Observer) Run(ctx context.Context) {
	go func() {
		if err := o.consumer.Run(ctx); err != nil {
			log.Printf("observer: consumer stopped: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.consumer.Events():
			o.handleEvent(ev)
		}
	}
}

func (o *Observer) handleEvent(ev mqttbus.Event) {
	switch ev.Topic {
	case model.TopicReadings:
		o.handleReading(ev.Payload)
	case model.TopicControlAck:
		o.handleAck(ev.Payload)
	default:
		// ignora altri topic
	}
}

func (o *Observer) handleReading(payload []byte) {
	r, err := codec.DecodeReading(payload)
	if err != nil {
		o.countDecodeError()
		log.Printf("observer: bad reading payload: %v", err)
		return
	}

	o.store.UpsertReading(r)
	if o.metrics != nil {
		o.metrics.ReadingsReceived.Inc()
		o.metrics.KnownDevices.Set(float64(len(o.store.Keys())))
	}
	o.notify(Update{Kind: UpdateReading, DeviceID: r.DeviceID, Reading: &r})
}

// handleAck applies an emitter acknowledgement. Acknowledgements are
// authoritative: the last one received wins over any optimistic local edit.
// Re-applying a duplicate is harmless because SetEnabled sets, not toggles.
func (o *Observer) handleAck(payload []byte) {
	ack, err := codec.DecodeControl(payload)
	if err != nil {
		o.countDecodeError()
		log.Printf("observer: bad ack payload: %v", err)
		return
	}

	known := o.store.Keys()
	o.store.SetEnabled(ack.Target, ack.Enables(), known)

	if o.metrics != nil {
		o.metrics.AcksReceived.Inc()
		o.metrics.KnownDevices.Set(float64(len(o.store.Keys())))
	}
	if o.recorder != nil {
		o.recorder.RecordStateChange("command.acked", ack)
	}

	for _, id := range expand(ack.Target, known) {
		o.notify(Update{Kind: UpdateStateChange, DeviceID: id, Enabled: ack.Enables()})
	}
	log.Printf("observer: ack %s %s (originator=%s)", ack.Command, ack.Target, ack.OriginatorID)
}

// IssueCommand publishes a control command and optimistically applies it to
// the local store before any acknowledgement arrives. The optimistic edit is
// authoritative only over the absence of an acknowledgement, never over one.
func (o *Observer) IssueCommand(command, target string) error {
	switch command {
	case model.CommandEnable, model.CommandDisable:
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if target == "" {
		return errors.New("empty target")
	}

	cmd := model.ControlCommand{
		Command:      command,
		Target:       target,
		OriginatorID: o.originID,
		IssuedAt:     time.Now().UTC(),
	}
	payload, err := codec.EncodeControl(cmd)
	if err != nil {
		return err
	}
	if err := o.control.Publish(payload); err != nil {
		log.Printf("observer: command publish failed: %v", err)
		return err
	}

	known := o.store.Keys()
	o.store.SetEnabled(cmd.Target, cmd.Enables(), known)

	if o.metrics != nil {
		o.metrics.CommandsIssued.Inc()
	}
	if o.recorder != nil {
		o.recorder.RecordStateChange("command.issued", cmd)
	}
	for _, id := range expand(cmd.Target, known) {
		o.notify(Update{Kind: UpdateStateChange, DeviceID: id, Enabled: cmd.Enables()})
	}
	log.Printf("observer: issued %s %s", command, target)
	return nil
}

func (o *Observer) notify(u Update) {
	select {
	case o.updates <- u:
	default:
		n := o.dropped.Add(1)
		if o.metrics != nil {
			o.metrics.UpdatesDropped.Inc()
		}
		if n%100 == 1 {
			log.Printf("observer: slow presentation consumer, dropped %d updates", n)
		}
	}
}

func (o *Observer) countDecodeError() {
	if o.metrics != nil {
		o.metrics.DecodeErrors.Inc()
	}
}

// expand resolves "all" against the known set captured by the caller at
// application time.
func expand(target string, known []string) []string {
	if target == model.TargetAll {
		return known
	}
	return []string{target}
}
