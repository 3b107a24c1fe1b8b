package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bieniu/nettigo/airquality/nam"
)

// CLI args
var (
	listenAddr   = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	deviceHost   = flag.String("host", "", "host name or IP address of the device (falls back to NAM_HOST)")
	readInterval = flag.Duration("read-int", 30*time.Second, "time interval between device reads")
	readTimeout  = flag.Duration("read-timeout", 10*time.Second, "timeout for a single device read")
)

// metrics to expose to Prometheus, keyed by reading channel
var gauges = map[string]*prometheus.GaugeVec{
	"sds_p1":             newGauge("air_sds_pm10", "Particulate matter PM10 from the SDS011 sensor (units: µg/m3)"),
	"sds_p2":             newGauge("air_sds_pm25", "Particulate matter PM2.5 from the SDS011 sensor (units: µg/m3)"),
	"sps30_p0":           newGauge("air_sps30_pm1", "Particulate matter PM1 from the SPS30 sensor (units: µg/m3)"),
	"sps30_p1":           newGauge("air_sps30_pm10", "Particulate matter PM10 from the SPS30 sensor (units: µg/m3)"),
	"sps30_p2":           newGauge("air_sps30_pm25", "Particulate matter PM2.5 from the SPS30 sensor (units: µg/m3)"),
	"sps30_p4":           newGauge("air_sps30_pm4", "Particulate matter PM4 from the SPS30 sensor (units: µg/m3)"),
	"bme280_temperature": newGauge("air_bme280_temperature", "Air Temperature from the BME280 sensor (units: degrees Celsius)"),
	"bme280_humidity":    newGauge("air_bme280_humidity", "Humidity from the BME280 sensor (units: % of relative Humidity)"),
	"bme280_pressure":    newGauge("air_bme280_pressure", "Atmospheric Pressure from the BME280 sensor (units: hPa)"),
	"bmp280_temperature": newGauge("air_bmp280_temperature", "Air Temperature from the BMP280 sensor (units: degrees Celsius)"),
	"bmp280_pressure":    newGauge("air_bmp280_pressure", "Atmospheric Pressure from the BMP280 sensor (units: hPa)"),
	"dht22_temperature":  newGauge("air_dht22_temperature", "Air Temperature from the DHT22 sensor (units: degrees Celsius)"),
	"dht22_humidity":     newGauge("air_dht22_humidity", "Humidity from the DHT22 sensor (units: % of relative Humidity)"),
	"heca_temperature":   newGauge("air_heca_temperature", "Air Temperature from the HECA sensor (units: degrees Celsius)"),
	"heca_humidity":      newGauge("air_heca_humidity", "Humidity from the HECA sensor (units: % of relative Humidity)"),
	"sht3x_temperature":  newGauge("air_sht3x_temperature", "Air Temperature from the SHT3X sensor (units: degrees Celsius)"),
	"sht3x_humidity":     newGauge("air_sht3x_humidity", "Humidity from the SHT3X sensor (units: % of relative Humidity)"),
	"conc_co2_ppm":       newGauge("air_co2_level", "Air Carbon Dioxide level from the MH-Z14A sensor (units: ppm)"),
	"signal":             newGauge("air_wifi_signal", "WiFi signal strength of the device (units: dBm)"),
	"uptime":             newGauge("air_device_uptime", "Uptime of the device (units: seconds)"),
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"mac"},
	)
}

func init() {
	for _, gauge := range gauges {
		prometheus.MustRegister(gauge)
	}

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file found, relying on flags and environment")
	}

	host := *deviceHost
	if host == "" {
		host = os.Getenv("NAM_HOST")
	}
	if host == "" {
		log.Fatalf("no device host given, use -host or NAM_HOST")
	}

	sensor, err := nam.New(resty.New(), nam.ConnectionOptions{
		Host:     host,
		Username: os.Getenv("NAM_USERNAME"),
		Password: os.Getenv("NAM_PASSWORD"),
	})
	if err != nil {
		log.Fatalf("failed to create sensor: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *readTimeout)
	if err := sensor.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize device %s: %s", host, err)
	}

	mac, err := sensor.MACAddress(ctx)
	cancel()
	if err != nil {
		log.Fatalf("failed to get MAC address of device %s: %s", host, err)
	}
	log.Printf("Found: mac %s host %s", mac, host)

	recorder := newInfluxRecorderFromEnv()

	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()

	for {
		readAndExport(sensor, mac, recorder)
		time.Sleep(*readInterval)
	}
}

func readAndExport(sensor *nam.HTTPSensor, mac string, recorder *influxRecorder) {
	ctx, cancel := context.WithTimeout(context.Background(), *readTimeout)
	defer cancel()

	readings, err := sensor.Update(ctx)
	if err != nil {
		log.Errorf("failed to read from device %s: %s", sensor.Host(), err)
		return
	}

	readingsAsJson, err := json.Marshal(readings)
	if err == nil {
		log.Printf("Received: %s", readingsAsJson)
	} else {
		log.Printf("Received: <marshall error: %s>", err)
	}

	for channel, value := range readings {
		gauge, ok := gauges[channel]
		if !ok {
			log.Debugf("no gauge for channel %s", channel)
			continue
		}
		gauge.WithLabelValues(mac).Set(value)
	}

	if recorder != nil {
		if err := recorder.WriteReadings(ctx, mac, readings); err != nil {
			log.Errorf("failed to write readings to influxdb: %s", err)
		}
	}
}
