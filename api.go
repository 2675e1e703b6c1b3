// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import "time"

// Controller declares the operations on one channel of a Termodat unit
// regardless of the underlying transport.
type Controller interface {
	// Cached state

	// Channel returns the regulation channel the controller is bound to.
	Channel() int
	// Channels returns the number of channels the device reported.
	Channels() int
	// Program and Step return the startup position last written.
	Program() int
	Step() int
	// Process returns the process state as last read or commanded.
	Process() ProcessStatus
	// LastStep returns the last fully written step definition.
	LastStep() (StepDefinition, bool)

	// Process control

	// Start runs the process unless it is already running.
	Start() error
	// StartAt sets the startup program and step, then runs the process
	// unless it is already running.
	StartAt(program, step int) error
	// Pause holds the process unless it is already paused.
	Pause() error
	// Stop ends the process unless it is already stopped.
	Stop() error

	// Reads

	// Temperature reads the measured temperature.
	Temperature() (Degrees, error)
	// SetPoint reads the active set-point.
	SetPoint() (Degrees, error)
	// TimeLeftStanding reads the remaining hold time of an exposure step.
	TimeLeftStanding() (time.Duration, error)
	// ReadProgramPosition reads the startup program and step back.
	ReadProgramPosition() (program, step int, err error)
	// RefreshProcess re-reads the process state.
	RefreshProcess() (ProcessStatus, error)
	// Connected probes whether the device answers.
	Connected() bool

	// Program editing

	// ConfigureStep writes one program step definition.
	ConfigureStep(d StepDefinition) error
	// ResumeStep completes a partially written step definition.
	ResumeStep(p *PartialConfigurationError) error
}
