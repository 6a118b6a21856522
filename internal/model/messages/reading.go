package messages

import "time"

// Origin status values carried on a Reading.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Reading is one temperature/humidity sample published by an emitter.
// A newer Reading for the same device supersedes the previous one wholesale;
// fields are never merged across readings.
type Reading struct {
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %RH
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"` // "online" | "offline"
}
