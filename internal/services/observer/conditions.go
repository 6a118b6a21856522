package observer

import "github.com/dmquang/sensorex/internal/model"

// Evaluation summarizes how comfortable the environment around a device is.
type Evaluation struct {
	Conditions []string `json:"conditions"`
	Status     string   `json:"overall_status"` // ok | warning | danger
}

// EvaluateReading grades the latest reading against fixed comfort bands.
func EvaluateReading(r model.Reading) Evaluation {
	var conditions []string
	var alerts []string

	switch {
	case r.Temperature < 18:
		conditions = append(conditions, "too cold")
		alerts = append(alerts, "warning")
	case r.Temperature > 32:
		conditions = append(conditions, "too hot")
		alerts = append(alerts, "danger")
	case r.Temperature >= 20 && r.Temperature <= 26:
		conditions = append(conditions, "comfortable temperature")
	}

	switch {
	case r.Humidity < 40:
		conditions = append(conditions, "too dry")
		alerts = append(alerts, "warning")
	case r.Humidity > 70:
		conditions = append(conditions, "too humid")
		alerts = append(alerts, "warning")
	case r.Humidity >= 50 && r.Humidity <= 60:
		conditions = append(conditions, "comfortable humidity")
	}

	status := "ok"
	for _, a := range alerts {
		if a == "danger" {
			status = "danger"
			break
		}
		status = "warning"
	}

	return Evaluation{Conditions: conditions, Status: status}
}
