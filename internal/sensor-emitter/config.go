package sensor_emitter

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes one simulated device: identity, sampling interval and
// the bounds of its random walk.
type Profile struct {
	DeviceID string        `yaml:"device_id"`
	Interval time.Duration `yaml:"interval"`
	Walk     WalkConfig    `yaml:"walk"`
}

// WalkConfig bounds the synthetic temperature/humidity walk.
type WalkConfig struct {
	TempMin     float64 `yaml:"temp_min"`
	TempMax     float64 `yaml:"temp_max"`
	HumidityMin float64 `yaml:"humidity_min"`
	HumidityMax float64 `yaml:"humidity_max"`
}

// DefaultProfile returns the stock profile: 3s interval, 20–35 °C, 40–80 %RH.
func DefaultProfile() *Profile {
	p := &Profile{}
	p.applyDefaults()
	return p
}

// LoadProfile reads a YAML device profile, fills defaults and validates it.
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyDefaults() {
	if p.Interval == 0 {
		p.Interval = 3 * time.Second
	}
	if p.Walk.TempMin == 0 && p.Walk.TempMax == 0 {
		p.Walk.TempMin, p.Walk.TempMax = 20.0, 35.0
	}
	if p.Walk.HumidityMin == 0 && p.Walk.HumidityMax == 0 {
		p.Walk.HumidityMin, p.Walk.HumidityMax = 40.0, 80.0
	}
}

func (p *Profile) validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", p.Interval)
	}
	if p.Walk.TempMin >= p.Walk.TempMax {
		return fmt.Errorf("walk temp bounds inverted: [%v,%v]", p.Walk.TempMin, p.Walk.TempMax)
	}
	if p.Walk.HumidityMin >= p.Walk.HumidityMax {
		return fmt.Errorf("walk humidity bounds inverted: [%v,%v]", p.Walk.HumidityMin, p.Walk.HumidityMax)
	}
	return nil
}
