package quarry

import "fmt"

type LockedWorldError struct{}

func (e LockedWorldError) Error() string {
	return fmt.Sprintf("world is currently locked")
}

type RegistryFullError struct {
	Limit int
}

func (e RegistryFullError) Error() string {
	return fmt.Sprintf("component registry at maximum capacity (%d kinds)", e.Limit)
}

type ComponentSizeMismatchError struct {
	Component Component
	Want      uintptr
	Got       uintptr
}

func (e ComponentSizeMismatchError) Error() string {
	return fmt.Sprintf("component size mismatch for %s: column holds %d byte elements, write was %d bytes",
		componentName(e.Component), e.Want, e.Got)
}

type PoolSizeError struct {
	Size int
}

func (e PoolSizeError) Error() string {
	return fmt.Sprintf("worker pool requires at least one worker, got %d", e.Size)
}

type SchedulerInitError struct {
	Err error
}

func (e SchedulerInitError) Error() string {
	return fmt.Sprintf("scheduler initialization failed: %v", e.Err)
}

func (e SchedulerInitError) Unwrap() error {
	return e.Err
}

func componentName(c Component) string {
	if c == nil {
		return "<nil>"
	}
	if t := c.kindType(); t != nil {
		return t.String()
	}
	return c.kindName()
}
