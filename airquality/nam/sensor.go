package nam

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bieniu/nettigo/airquality"
)

// device endpoints, relative to http://<host>/
const (
	pathConfig = "config.json"
	pathData   = "data.json"
	pathOTA    = "ota"
	pathReset  = "reset"
	pathValues = "values"
)

var macPattern = regexp.MustCompile(`([0-9a-fA-F]{2}[:-]){5}[0-9a-fA-F]{2}`)

// ConnectionOptions describe how to reach a single device. Username and
// password are only needed when the firmware has authorization enabled;
// supply both or neither.
type ConnectionOptions struct {
	Host     string
	Username string
	Password string
}

func (o ConnectionOptions) validate() error {
	if o.Host == "" {
		return errors.New("host is required")
	}
	if (o.Username == "") != (o.Password == "") {
		return errors.New("supply both username and password")
	}
	return nil
}

// HTTPSensor reads air quality data from a Nettigo Air Monitor device over
// its local HTTP API. The resty client is owned by the caller and may be
// shared between sensors; the sensor never mutates it. Retry and timeout
// policy belong to the caller: wrap each call in a context deadline.
type HTTPSensor struct {
	client  *resty.Client
	options ConnectionOptions

	softwareVersion string
	authEnabled     bool
	current         airquality.Readings
}

// New returns a sensor for the device at options.Host, talking through the
// supplied client.
func New(client *resty.Client, options ConnectionOptions) (*HTTPSensor, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &HTTPSensor{client: client, options: options}, nil
}

func (s *HTTPSensor) Host() string {
	return s.options.Host
}

// SoftwareVersion returns the firmware version reported by the last
// successful Update, empty before that.
func (s *HTTPSensor) SoftwareVersion() string {
	return s.softwareVersion
}

// AuthEnabled reports whether Initialize found the firmware demanding
// authorization.
func (s *HTTPSensor) AuthEnabled() bool {
	return s.authEnabled
}

// Current returns the reading stored by the last successful Update, nil
// before that. Concurrent Updates race on a last-write-wins basis.
func (s *HTTPSensor) Current() airquality.Readings {
	return s.current
}

func (s *HTTPSensor) url(path string) string {
	return fmt.Sprintf("http://%s/%s", s.options.Host, path)
}

func (s *HTTPSensor) request(ctx context.Context, method, path string) (*resty.Response, error) {
	req := s.client.R().SetContext(ctx)
	if s.options.Username != "" {
		req.SetBasicAuth(s.options.Username, s.options.Password)
	}

	url := s.url(path)
	log.Debugf("requesting %s, method: %s", url, method)
	resp, err := req.Execute(method, url)
	if err != nil {
		if ctx.Err() != nil {
			// the caller's deadline or cancellation, hand it back untouched
			return nil, err
		}
		return nil, &ApiError{Status: fmt.Sprintf("invalid response from device %s: %s", s.options.Host, err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &ApiError{
			Status:     fmt.Sprintf("invalid response from device %s: %d", s.options.Host, resp.StatusCode()),
			StatusCode: resp.StatusCode(),
		}
	}

	log.Debugf("data retrieved from %s, status: %d", s.options.Host, resp.StatusCode())
	return resp, nil
}

// Initialize probes the device configuration endpoint and records whether
// the firmware requires authorization. Optional: Update and MACAddress work
// without it, it only exists to fail fast on unreachable or locked devices.
func (s *HTTPSensor) Initialize(ctx context.Context) error {
	log.Debugf("initializing device %s", s.options.Host)

	resp, err := s.client.R().SetContext(ctx).Get(s.url(pathConfig))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &ApiError{Status: fmt.Sprintf("invalid response from device %s: %s", s.options.Host, err)}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		s.authEnabled = true
		if s.options.Username == "" {
			return &ApiError{
				Status:     fmt.Sprintf("invalid response from device %s: %d", s.options.Host, resp.StatusCode()),
				StatusCode: resp.StatusCode(),
			}
		}
		// verify the configured credentials actually open the device
		_, err = s.request(ctx, resty.MethodGet, pathConfig)
		return err
	}

	if resp.StatusCode() != http.StatusOK {
		return &ApiError{
			Status:     fmt.Sprintf("invalid response from device %s: %d", s.options.Host, resp.StatusCode()),
			StatusCode: resp.StatusCode(),
		}
	}
	return nil
}

// Update fetches a fresh snapshot of readings from the device, stores it as
// the current reading and returns it. On any failure the previously stored
// reading is left untouched.
func (s *HTTPSensor) Update(ctx context.Context) (airquality.Readings, error) {
	resp, err := s.request(ctx, resty.MethodGet, pathData)
	if err != nil {
		return nil, err
	}

	var data dataResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, &InvalidSensorDataError{Status: fmt.Sprintf("invalid sensor data: %s", err)}
	}
	if data.SensorDataValues == nil {
		return nil, &InvalidSensorDataError{Status: "invalid sensor data: no sensordatavalues"}
	}

	readings := parseSensorData(data.SensorDataValues)
	if data.Uptime != nil {
		readings["uptime"] = math.Round(float64(*data.Uptime))
	}

	s.softwareVersion = data.SoftwareVersion
	s.current = readings
	return readings, nil
}

// MACAddress returns the hardware address of the device, exactly as the
// firmware prints it. The cached reading is not touched.
func (s *HTTPSensor) MACAddress(ctx context.Context) (string, error) {
	resp, err := s.request(ctx, resty.MethodGet, pathValues)
	if err != nil {
		return "", err
	}

	mac := macPattern.FindString(resp.String())
	if mac == "" {
		return "", &InvalidSensorDataError{Status: fmt.Sprintf("no MAC address in response from device %s", s.options.Host)}
	}
	return mac, nil
}

// Restart reboots the device.
func (s *HTTPSensor) Restart(ctx context.Context) error {
	_, err := s.request(ctx, resty.MethodPost, pathReset)
	return err
}

// OTAUpdate triggers an over-the-air firmware update check on the device.
func (s *HTTPSensor) OTAUpdate(ctx context.Context) error {
	_, err := s.request(ctx, resty.MethodPost, pathOTA)
	return err
}
