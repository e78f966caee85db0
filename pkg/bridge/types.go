// Package bridge runs the command loop and the telemetry loop which
// connect the datagram link with the analog outputs and inputs.
package bridge

// Actuator drives outputs in fractions of full scale.
// It returns the fraction actually applied.
type Actuator interface {
	SetOutput(channel int, fraction float32) (float32, error)
}

// Sensor samples inputs in volts.
type Sensor interface {
	ReadInput(channel int) (float32, error)
}
