package drivers

import (
	"fmt"
)

type DriverFunc func(config Config) (Driver, error)

var registered = make(map[string]DriverFunc)

// Register adds an agent driver by name to this process
func Register(name string, driverFunc DriverFunc) {
	registered[name] = driverFunc
}

// New instantiates a driver by name
func New(driverName string, config Config) (Driver, error) {
	driverFunc, ok := registered[driverName]
	if !ok {
		return nil, fmt.Errorf("agent driver %q is not registered", driverName)
	}
	return driverFunc(config)
}
