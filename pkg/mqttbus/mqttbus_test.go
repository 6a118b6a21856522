package mqttbus

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient records, for every Subscribe call, whether the Conn was already
// reporting connected at that moment.
type fakeClient struct {
	conn                 *Conn
	subscribed           []string
	published            []string
	connectedAtSubscribe []bool
}

func (f *fakeClient) IsConnected() bool      { return true }
func (f *fakeClient) IsConnectionOpen() bool { return true }
func (f *fakeClient) Connect() mqtt.Token    { return doneToken{} }
func (f *fakeClient) Disconnect(uint)        {}

func (f *fakeClient) Publish(topic string, _ byte, _ bool, _ interface{}) mqtt.Token {
	f.published = append(f.published, topic)
	return doneToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	f.subscribed = append(f.subscribed, topic)
	f.connectedAtSubscribe = append(f.connectedAtSubscribe, f.conn.IsConnected())
	return doneToken{}
}

func (f *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return doneToken{}
}

func (f *fakeClient) Unsubscribe(...string) mqtt.Token        { return doneToken{} }
func (f *fakeClient) AddRoute(string, mqtt.MessageHandler)    {}
func (f *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func newFakeConn() (*Conn, *fakeClient) {
	c := &Conn{}
	f := &fakeClient{conn: c}
	c.client = f
	return c, f
}

func TestOnConnectResubscribesBeforeReportingConnected(t *testing.T) {
	c, f := newFakeConn()
	noop := func(mqtt.Client, mqtt.Message) {}

	// registered while disconnected: deferred to onConnect
	require.NoError(t, c.subscribe("sensors/control", 1, noop))
	require.Empty(t, f.subscribed)

	c.onConnect(f)

	require.Equal(t, []string{"sensors/control"}, f.subscribed)
	for _, connected := range f.connectedAtSubscribe {
		assert.False(t, connected, "publish gate must stay closed until every subscription is re-issued")
	}
	assert.True(t, c.IsConnected())
}

func TestPublishGatedWhileDisconnected(t *testing.T) {
	c, f := newFakeConn()
	p := NewPublisher(c, "sensors/temp_humidity")

	err := p.Publish([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, f.published)

	c.onConnect(f)
	require.NoError(t, p.Publish([]byte(`{}`)))
	assert.Equal(t, []string{"sensors/temp_humidity"}, f.published)
}

func TestSubscribeWhileConnectedIsImmediate(t *testing.T) {
	c, f := newFakeConn()
	c.onConnect(f)

	require.NoError(t, c.subscribe("sensors/control", 1, func(mqtt.Client, mqtt.Message) {}))
	assert.Equal(t, []string{"sensors/control"}, f.subscribed)
}
