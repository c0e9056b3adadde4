package driver

// ConfigError reports a receiver configuration the tool would reject.
type ConfigError struct {
	Device string
	err    error
}

func NewConfigError(device string, err error) *ConfigError {
	return &ConfigError{Device: device, err: err}
}

func (e *ConfigError) Error() string {
	return e.Device + ": invalid configuration: " + e.err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.err
}

// RuntimeError is returned when a receiver tool cannot be located or started
type RuntimeError struct {
	msg string
	err error
}

func NewRuntimeError(msg string, err error) *RuntimeError {
	return &RuntimeError{msg, err}
}

func (e *RuntimeError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.err
}
