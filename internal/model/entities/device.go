package entities

// Device represents a single simulated sensor device, owned by the emitter
// process that minted its ID.
type Device struct {
	ID      string `json:"device_id" yaml:"device_id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}
