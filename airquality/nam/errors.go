package nam

// ApiError is returned when the device answers with an unexpected HTTP
// status or the request fails on the wire. StatusCode is zero when no
// response was received at all.
type ApiError struct {
	Status     string
	StatusCode int
}

func (e *ApiError) Error() string {
	return e.Status
}

// InvalidSensorDataError is returned when the device response does not
// have the expected shape.
type InvalidSensorDataError struct {
	Status string
}

func (e *InvalidSensorDataError) Error() string {
	return e.Status
}
