package nam

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bieniu/nettigo/airquality"
)

// sensorValue accepts both the quoted numbers older firmwares emit
// ("value": "22.70") and plain JSON numbers from newer ones.
type sensorValue float64

func (v *sensorValue) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(strings.Trim(string(data), `"`), 64)
	if err != nil {
		return errors.Wrap(err, "not a numeric sensor value")
	}
	*v = sensorValue(f)
	return nil
}

type sensorDataValue struct {
	ValueType string      `json:"value_type"`
	Value     sensorValue `json:"value"`
}

type dataResponse struct {
	SoftwareVersion  string            `json:"software_version"`
	Uptime           *sensorValue      `json:"uptime"`
	SensorDataValues []sensorDataValue `json:"sensordatavalues"`
}

func parseSensorData(values []sensorDataValue) airquality.Readings {
	readings := make(airquality.Readings, len(values))
	for _, item := range values {
		key := strings.ToLower(item.ValueType)
		readings[key] = normalize(key, float64(item.Value))
	}
	return readings
}

func normalize(key string, value float64) float64 {
	switch {
	case strings.Contains(key, "pressure"):
		// firmware reports Pa, everybody expects hPa
		return math.Round(value / 100)
	case key == "signal":
		return math.Round(value)
	default:
		return math.Round(value*10) / 10
	}
}
