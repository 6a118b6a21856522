package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmquang/sensorex/internal/model"
)

func TestEvaluateReading(t *testing.T) {
	cases := []struct {
		name       string
		temp, hum  float64
		status     string
		conditions []string
	}{
		{"comfortable", 23, 55, "ok", []string{"comfortable temperature", "comfortable humidity"}},
		{"cold", 15, 55, "warning", []string{"too cold", "comfortable humidity"}},
		{"hot", 35, 55, "danger", []string{"too hot", "comfortable humidity"}},
		{"dry", 23, 30, "warning", []string{"comfortable temperature", "too dry"}},
		{"humid", 23, 80, "warning", []string{"comfortable temperature", "too humid"}},
		{"hot and dry", 35, 30, "danger", []string{"too hot", "too dry"}},
		{"neutral band", 19, 45, "ok", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := EvaluateReading(model.Reading{Temperature: tc.temp, Humidity: tc.hum})
			assert.Equal(t, tc.status, ev.Status)
			assert.Equal(t, tc.conditions, ev.Conditions)
		})
	}
}
