// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"fmt"
	"math"
	"strings"
)

// StepKind is what a program step does.
type StepKind int

const (
	HeatingOrCooling StepKind = iota
	Exposure
	Goto
	StopStep
)

var stepKindNames = []string{"HeatingOrCooling", "Exposure", "Goto", "Stop"}

func (k StepKind) String() string {
	if k < 0 || int(k) >= len(stepKindNames) {
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
	return stepKindNames[k]
}

// ParseStepKind accepts the step kind names, case-insensitively.
func ParseStepKind(s string) (StepKind, error) {
	for i, name := range stepKindNames {
		if strings.EqualFold(s, name) {
			return StepKind(i), nil
		}
	}
	return 0, fmt.Errorf("termodat: unknown step kind %q, want one of %s", s, strings.Join(stepKindNames, ", "))
}

// TransitionCondition decides when a step hands over to the next one.
type TransitionCondition int

const (
	// CalculatedTemperature: the calculated temperature reached the set-point.
	CalculatedTemperature TransitionCondition = iota
	// ManualAcceptance: the operator confirms on the device.
	ManualAcceptance
	// MeasuredTemperature: the measured temperature reached the set-point.
	MeasuredTemperature
)

var conditionNames = [][]string{
	{"CalculatedTemperature", "Tcalc"},
	{"ManualAcceptance", "ManualAccept"},
	{"MeasuredTemperature", "Tmeasure"},
}

func (c TransitionCondition) String() string {
	if c < 0 || int(c) >= len(conditionNames) {
		return fmt.Sprintf("TransitionCondition(%d)", int(c))
	}
	return conditionNames[c][0]
}

// ParseTransitionCondition accepts the full names and the short device
// manual names (Tcalc, ManualAccept, Tmeasure), case-insensitively.
func ParseTransitionCondition(s string) (TransitionCondition, error) {
	for i, names := range conditionNames {
		for _, name := range names {
			if strings.EqualFold(s, name) {
				return TransitionCondition(i), nil
			}
		}
	}
	return 0, fmt.Errorf("termodat: unknown transition condition %q, want one of Tcalc, ManualAccept, Tmeasure", s)
}

// StepDefinition configures one step of a regulation program. Program and
// Step are 1-based; the device stores them 0-based.
type StepDefinition struct {
	Program int
	Step    int
	Kind    StepKind
	// Param1 is the ramp rate in 0.1 °C/h, the hold duration or, for Goto,
	// the target program number.
	Param1 int
	// Param2 is the target set-point in 0.1 °C.
	Param2    int
	Condition TransitionCondition
}

const stepFieldCount = 6

type fieldWrite struct {
	reg   Register
	value uint16
}

// Validate checks every field against the width of its register.
func (d StepDefinition) Validate() error {
	if err := checkRange("program number", d.Program, 1, math.MaxUint16+1); err != nil {
		return err
	}
	if err := checkRange("step number", d.Step, 1, math.MaxUint16+1); err != nil {
		return err
	}
	if err := checkRange("step kind", int(d.Kind), int(HeatingOrCooling), int(StopStep)); err != nil {
		return err
	}
	if err := checkRange("step parameter 1", d.Param1, math.MinInt16, math.MaxUint16); err != nil {
		return err
	}
	if err := checkRange("step parameter 2", d.Param2, math.MinInt16, math.MaxUint16); err != nil {
		return err
	}
	return checkRange("transition condition", int(d.Condition), int(CalculatedTemperature), int(MeasuredTemperature))
}

// fields lists the register writes of d in device order. d must be valid.
func (d StepDefinition) fields() [stepFieldCount]fieldWrite {
	return [stepFieldCount]fieldWrite{
		{RegProgramEditNumber, uint16(d.Program - 1)},
		{RegStepEditNumber, uint16(d.Step - 1)},
		{RegStepKind, uint16(d.Kind)},
		{RegStepParam1, wordOf(d.Param1)},
		{RegStepParam2, wordOf(d.Param2)},
		{RegStepTransitionCondition, uint16(d.Condition)},
	}
}

func (d StepDefinition) String() string {
	return fmt.Sprintf("program %d step %d: %v param1=%d param2=%d until %v",
		d.Program, d.Step, d.Kind, d.Param1, d.Param2, d.Condition)
}

// wordOf stores v in a 16-bit register; negative values use two's complement.
func wordOf(v int) uint16 {
	if v < 0 {
		return uint16(int16(v))
	}
	return uint16(v)
}
