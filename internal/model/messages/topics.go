package messages

// Bus topics. All three are fan-out: any number of emitters and observers
// may publish or subscribe.
const (
	TopicReadings   = "sensors/temp_humidity" // Reading payloads, emitter → observers
	TopicControl    = "sensors/control"       // ControlCommand payloads, observer → emitters
	TopicControlAck = "sensors/control/ack"   // acknowledgement payloads, emitter → observers
)
