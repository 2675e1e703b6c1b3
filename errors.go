// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity matches every failure to reach the device.
	ErrConnectivity = errors.New("termodat: device not reachable")
	// ErrProtocol matches malformed, truncated or unexpected replies.
	ErrProtocol = errors.New("termodat: protocol error")
	// ErrRange matches values outside the accepted range.
	ErrRange = errors.New("termodat: value out of range")
	// ErrTimeout is returned by transporters when no reply line arrived in time.
	ErrTimeout = errors.New("termodat: timeout waiting for response")
)

// ConnectivityError reports a failed open, write or read on the link.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("termodat: %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool {
	return target == ErrConnectivity
}

// Timeout reports whether the failure was a read timeout.
func (e *ConnectivityError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// ProtocolError reports a reply that could not be accepted.
type ProtocolError struct {
	Reason string
	Frame  []byte
}

func (e *ProtocolError) Error() string {
	if len(e.Frame) == 0 {
		return "termodat: " + e.Reason
	}
	return fmt.Sprintf("termodat: %s (frame %q)", e.Reason, e.Frame)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protocolErrorf(frame []byte, format string, v ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, v...), Frame: frame}
}

// RangeError reports a channel or field value outside [Min, Max].
type RangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("termodat: %s '%v' must be between '%v' and '%v'", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

func checkRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &RangeError{Field: field, Value: value, Min: min, Max: max}
	}
	return nil
}

// PartialConfigurationError reports a step configuration aborted after
// Completed of its register writes were acknowledged. The device keeps the
// fields already written.
type PartialConfigurationError struct {
	Step      StepDefinition
	Completed int
	Field     string
	Err       error
}

func (e *PartialConfigurationError) Error() string {
	return fmt.Sprintf("termodat: step %d.%d configured partially (%d of %d fields), writing %s: %v",
		e.Step.Program, e.Step.Step, e.Completed, stepFieldCount, e.Field, e.Err)
}

func (e *PartialConfigurationError) Unwrap() error { return e.Err }
