package sensor_emitter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmquang/sensorex/internal/codec"
	"github.com/dmquang/sensorex/internal/model"
	"github.com/dmquang/sensorex/pkg/mqttbus"
)

type fakeConn struct{ connected bool }

func (f *fakeConn) IsConnected() bool { return f.connected }

type fakePublisher struct {
	topic    string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(p []byte) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakePublisher) Topic() string { return f.topic }

func newTestEmitter(t *testing.T, connected bool) (*Emitter, *fakeConn, *fakePublisher, *fakePublisher) {
	t.Helper()
	conn := &fakeConn{connected: connected}
	readings := &fakePublisher{topic: model.TopicReadings}
	acks := &fakePublisher{topic: model.TopicControlAck}
	gen := NewDataGenerator(DefaultProfile().Walk, 1)
	dev := &model.Device{ID: "s1", Enabled: true}
	e := NewEmitter(conn, nil, readings, acks, gen, dev, 3*time.Second)
	return e, conn, readings, acks
}

func encodeCmd(t *testing.T, cmd model.ControlCommand) []byte {
	t.Helper()
	b, err := codec.EncodeControl(cmd)
	require.NoError(t, err)
	return b
}

func TestTickPublishesWhenConnectedAndEnabled(t *testing.T) {
	e, _, readings, _ := newTestEmitter(t, true)

	e.tick()

	require.Len(t, readings.payloads, 1)
	r, err := codec.DecodeReading(readings.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "s1", r.DeviceID)
	assert.Equal(t, model.StatusOnline, r.Status)
}

func TestTickNoopWhileDisconnectedThenResumes(t *testing.T) {
	e, conn, readings, _ := newTestEmitter(t, false)

	e.tick()
	assert.Empty(t, readings.payloads, "disconnected tick must not publish")

	// reconnect: adapter flips the flag and resubscribes, next tick resumes
	conn.connected = true
	e.tick()
	assert.Len(t, readings.payloads, 1)
}

func TestTickNoopWhileDisabled(t *testing.T) {
	e, _, readings, acks := newTestEmitter(t, true)

	e.handleControl(mqttbus.Event{
		Topic: model.TopicControl,
		Payload: encodeCmd(t, model.ControlCommand{
			Command:      model.CommandDisable,
			Target:       "s1",
			OriginatorID: "observer-1",
			IssuedAt:     time.Now().UTC(),
		}),
	})

	assert.False(t, e.Enabled())
	e.tick()
	assert.Empty(t, readings.payloads)
	assert.Len(t, acks.payloads, 1, "disable must still be acknowledged")
}

func TestControlAcknowledgementEnvelope(t *testing.T) {
	e, _, _, acks := newTestEmitter(t, true)

	e.handleControl(mqttbus.Event{
		Topic: model.TopicControl,
		Payload: encodeCmd(t, model.ControlCommand{
			Command:      model.CommandDisable,
			Target:       model.TargetAll,
			OriginatorID: "observer-7",
			IssuedAt:     time.Now().UTC(),
		}),
	})

	require.Len(t, acks.payloads, 1)
	ack, err := codec.DecodeControl(acks.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, model.CommandDisable, ack.Command)
	assert.Equal(t, "s1", ack.Target, `ack for "all" must name this device`)
	assert.Equal(t, "observer-7", ack.OriginatorID)
	assert.False(t, ack.IssuedAt.IsZero())
}

func TestControlForOtherDeviceIsNoop(t *testing.T) {
	e, _, _, acks := newTestEmitter(t, true)

	e.handleControl(mqttbus.Event{
		Topic: model.TopicControl,
		Payload: encodeCmd(t, model.ControlCommand{
			Command:      model.CommandDisable,
			Target:       "someone-else",
			OriginatorID: "observer-1",
			IssuedAt:     time.Now().UTC(),
		}),
	})

	assert.True(t, e.Enabled())
	assert.Empty(t, acks.payloads)
}

func TestDuplicateControlDeliveryAckedOnce(t *testing.T) {
	e, _, _, acks := newTestEmitter(t, true)

	payload := encodeCmd(t, model.ControlCommand{
		Command:      model.CommandDisable,
		Target:       "s1",
		OriginatorID: "observer-1",
		IssuedAt:     time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
	})
	ev := mqttbus.Event{Topic: model.TopicControl, Payload: payload}

	e.handleControl(ev)
	e.handleControl(ev) // QoS1 redelivery, same payload

	assert.False(t, e.Enabled())
	assert.Len(t, acks.payloads, 1)
}

func TestMalformedControlDropped(t *testing.T) {
	e, _, _, acks := newTestEmitter(t, true)

	e.handleControl(mqttbus.Event{Topic: model.TopicControl, Payload: []byte("{broken")})

	assert.True(t, e.Enabled())
	assert.Empty(t, acks.payloads)
}

func TestLocalStateTracksOwnDevice(t *testing.T) {
	e, _, _, _ := newTestEmitter(t, true)

	e.tick()
	st := e.LocalState()
	require.Contains(t, st, "s1")
	assert.True(t, st["s1"].Enabled)
	require.NotNil(t, st["s1"].LastReading)

	// sanity: published payload field names follow the wire contract
	var raw map[string]json.RawMessage
	b, _ := codec.EncodeReading(*st["s1"].LastReading)
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, k := range []string{"device_id", "temperature", "humidity", "timestamp", "status"} {
		assert.Contains(t, raw, k)
	}
}
