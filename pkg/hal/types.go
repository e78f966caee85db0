// Package hal defines the peripheral contract driving the analog outputs
// and sampling the analog inputs of the bridge.
package hal

import "errors"

var (
	// ErrChannel indicates a channel index out of the configured range.
	ErrChannel = errors.New("invalid channel")
	// ErrNotConfigured indicates the peripheral is used before configuration.
	ErrNotConfigured = errors.New("peripheral not configured")
)

// Outputs is the raw PWM output contract.
type Outputs interface {
	// ConfigureOutputs is called once before any SetOutputDuty.
	ConfigureOutputs(count, resolutionBits, frequencyHz int) error
	// SetOutputDuty sets the duty count in [0, 2^resolutionBits-1].
	SetOutputDuty(channel int, duty uint32) error
}

// Inputs is the raw ADC input contract.
type Inputs interface {
	// ConfigureInputs is called once before any ReadInputRaw.
	ConfigureInputs(count int, fullScale float64, resolutionBits int) error
	// ReadInputRaw returns a code in [0, 2^resolutionBits-1].
	ReadInputRaw(channel int) (uint32, error)
}

// Peripheral combines outputs and inputs.
type Peripheral interface {
	Outputs
	Inputs
}
