package messages

import "time"

// Command verbs accepted on the control topic.
const (
	CommandEnable  = "enable"
	CommandDisable = "disable"
)

// TargetAll addresses every device the *receiving* process knows at the time
// it applies the command. A command never applies to devices discovered later.
const TargetAll = "all"

// ControlCommand is the envelope used on both the control topic and the
// acknowledgement topic. An acknowledgement is the same shape rebroadcast by
// the emitter that applied the command: Target is the emitter's own device id,
// OriginatorID is echoed from the inbound command, and IssuedAt carries the
// emitter-observed apply time.
type ControlCommand struct {
	Command      string    `json:"command"` // "enable" | "disable"
	Target       string    `json:"target"`  // "all" | device id
	OriginatorID string    `json:"originator_id"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Enables reports whether the command switches its target on.
func (c ControlCommand) Enables() bool { return c.Command == CommandEnable }
