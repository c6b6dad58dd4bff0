package station

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedShape is returned when a payload has neither a "data" nor a "predictions" key.
	ErrUnexpectedShape = errors.New("unexpected response structure")
	// ErrUpstream is returned when the upstream answers with an error document.
	ErrUpstream = errors.New("upstream reported an error")
	// ErrEmptySeries is returned when no record of a parameter produced a sample.
	ErrEmptySeries = errors.New("no usable samples")
	// ErrNoData is returned when every parameter failed.
	ErrNoData = errors.New("no data")
)

// ParameterError scopes an assembly failure to a single parameter.
type ParameterError struct {
	Parameter Parameter
	Err       error
}

func (e ParameterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Parameter, e.Err)
}

func (e ParameterError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the failure for API responses.
func (e ParameterError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Parameter Parameter `json:"parameter"`
		Message   string    `json:"message"`
	}{e.Parameter, msg})
}
