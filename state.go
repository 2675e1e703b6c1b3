// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"fmt"
	"strconv"
)

// Degrees is a temperature in tenths of a degree Celsius, the unit the
// device uses on the wire: 235 is 23.5 °C.
type Degrees int

// Celsius returns d in degrees Celsius.
func (d Degrees) Celsius() float64 {
	return float64(d) / 10
}

// String renders d with one decimal digit. Values below ten tenths are
// zero-padded, so 5 renders as "0.5".
func (d Degrees) String() string {
	sign := ""
	v := int(d)
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.Itoa(v)
	if len(s) < 2 {
		s = "0" + s
	}
	return sign + s[:len(s)-1] + "." + s[len(s)-1:]
}

// ProcessState is the run state of the regulation process.
type ProcessState int

const (
	Stop ProcessState = iota
	Run
	Pause
	Undefined
)

func (s ProcessState) String() string {
	switch s {
	case Stop:
		return "Stop"
	case Run:
		return "Run"
	case Pause:
		return "Pause"
	default:
		return "unknown"
	}
}

// controlCode is the ProcessControl register value commanding s.
func (s ProcessState) controlCode() uint16 {
	return uint16(s)
}

type statusKind int

const (
	notYetQueried statusKind = iota
	known
	unrecognized
)

// ProcessStatus is the cached process state of a session. It separates a
// session that never read the device from one that got a code it does not
// understand.
type ProcessStatus struct {
	kind  statusKind
	state ProcessState
	raw   uint16
}

// StatusFromCode maps a ProcessControl register value. Codes other than
// 0, 1 and 2 give an unrecognized status.
func StatusFromCode(code uint16) ProcessStatus {
	switch code {
	case 0, 1, 2:
		return ProcessStatus{kind: known, state: ProcessState(code), raw: code}
	default:
		return ProcessStatus{kind: unrecognized, state: Undefined, raw: code}
	}
}

func knownStatus(s ProcessState) ProcessStatus {
	return ProcessStatus{kind: known, state: s, raw: s.controlCode()}
}

// Queried reports whether the state was ever read from or written to the device.
func (p ProcessStatus) Queried() bool {
	return p.kind != notYetQueried
}

// Known reports whether the state is one of Stop, Run and Pause.
func (p ProcessStatus) Known() bool {
	return p.kind == known
}

// State returns the process state, Undefined unless Known.
func (p ProcessStatus) State() ProcessState {
	if p.kind != known {
		return Undefined
	}
	return p.state
}

// Raw returns the unrecognized device code.
func (p ProcessStatus) Raw() (uint16, bool) {
	return p.raw, p.kind == unrecognized
}

// Is reports whether the state is known to be s.
func (p ProcessStatus) Is(s ProcessState) bool {
	return p.kind == known && p.state == s
}

func (p ProcessStatus) String() string {
	switch p.kind {
	case known:
		return p.state.String()
	case unrecognized:
		return fmt.Sprintf("unknown (code %d)", p.raw)
	default:
		return "not queried"
	}
}
