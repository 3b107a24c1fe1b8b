package main

import (
	"context"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	log "github.com/sirupsen/logrus"

	"github.com/bieniu/nettigo/airquality"
)

// influxRecorder mirrors readings into an InfluxDB bucket, one point per
// successful read, tagged with the device MAC address.
type influxRecorder struct {
	client influxdb2.Client
	org    string
	bucket string
}

// newInfluxRecorderFromEnv returns nil when INFLUXDB_URL is not set.
func newInfluxRecorderFromEnv() *influxRecorder {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		return nil
	}

	org := os.Getenv("INFLUXDB_ORG")
	bucket := os.Getenv("INFLUXDB_BUCKET")
	if org == "" || bucket == "" {
		log.Fatalf("INFLUXDB_ORG and INFLUXDB_BUCKET are required when INFLUXDB_URL is set")
	}

	log.Printf("mirroring readings to influxdb at %s, bucket %s", url, bucket)
	return &influxRecorder{
		client: influxdb2.NewClient(url, os.Getenv("INFLUXDB_TOKEN")),
		org:    org,
		bucket: bucket,
	}
}

func (r *influxRecorder) WriteReadings(ctx context.Context, mac string, readings airquality.Readings) error {
	fields := make(map[string]interface{}, len(readings))
	for channel, value := range readings {
		fields[channel] = value
	}

	point := influxdb2.NewPoint("air_quality", map[string]string{"mac": mac}, fields, time.Now())
	return r.client.WriteAPIBlocking(r.org, r.bucket).WritePoint(ctx, point)
}
