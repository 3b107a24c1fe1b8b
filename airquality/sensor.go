package airquality

import "context"

type Sensor interface {
	// host name or IP address the sensor is reachable at
	Host() string

	// MACAddress returns the hardware address of the device
	MACAddress(ctx context.Context) (string, error)

	// Update fetches a fresh snapshot of readings from the device
	Update(ctx context.Context) (Readings, error)
}

// Readings maps a sensor channel name to its normalized value.
//
// Channel names follow the device firmware, lowercased. Common ones:
//
//	sds_p1, sds_p2               particulate matter PM10/PM2.5 (units: µg/m3)
//	sps30_p0 .. sps30_p4         particulate matter (units: µg/m3)
//	bme280_temperature et al.    (units: degrees Celsius)
//	bme280_humidity et al.       (units: % of relative humidity)
//	bme280_pressure et al.       (units: hPa)
//	conc_co2_ppm                 (units: ppm)
//	signal                       WiFi signal strength (units: dBm)
//	uptime                       (units: seconds)
type Readings map[string]float64
