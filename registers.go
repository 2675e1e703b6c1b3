// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import "fmt"

const (
	// MaxChannels is the largest channel count a Termodat unit exposes.
	MaxChannels = 4
	// NoChannel disables the channel offset when encoding a frame.
	NoChannel = 0

	channelStride = 0x0400
)

// Register describes one device quantity.
type Register struct {
	Name    string
	Address uint16
	// Length is the register count requested when reading.
	Length uint16
	// Channeled registers are repeated per channel at ChannelOffset.
	Channeled bool
}

var (
	RegChannelCount         = Register{Name: "channel count", Address: 0x0130, Length: 1}
	RegTemperature          = Register{Name: "temperature", Address: 0x0170, Length: 4, Channeled: true}
	RegSetPoint             = Register{Name: "set-point", Address: 0x0171, Length: 1, Channeled: true}
	RegSetPointAlt          = Register{Name: "set-point", Address: 0x0173, Length: 1, Channeled: true}
	RegTimeLeftStanding     = Register{Name: "time left standing", Address: 0x0178, Length: 1, Channeled: true}
	RegStartupProgramNumber = Register{Name: "startup program number", Address: 0x017B, Length: 1, Channeled: true}
	RegStartupStepNumber    = Register{Name: "startup step number", Address: 0x017C, Length: 1, Channeled: true}
	RegProcessControl       = Register{Name: "process control", Address: 0x0180, Length: 1, Channeled: true}

	RegProgramEditNumber       = Register{Name: "edited program number", Address: 0x0160, Length: 1, Channeled: true}
	RegStepEditNumber          = Register{Name: "edited step number", Address: 0x0161, Length: 1, Channeled: true}
	RegStepKind                = Register{Name: "step kind", Address: 0x0162, Length: 1, Channeled: true}
	RegStepParam1              = Register{Name: "step parameter 1", Address: 0x0163, Length: 1, Channeled: true}
	RegStepParam2              = Register{Name: "step parameter 2", Address: 0x0164, Length: 1, Channeled: true}
	RegStepTransitionCondition = Register{Name: "step transition condition", Address: 0x0165, Length: 1, Channeled: true}
)

// ChannelOffset returns the address shift of a channel-scoped register.
// Channel 1 and NoChannel use the base address.
func ChannelOffset(channel int) uint16 {
	if channel <= 1 {
		return 0
	}
	return uint16(channel-1) * channelStride
}

// Resolve returns the absolute address of r on the given channel.
// The channel is fixed when a session is opened, so an invalid channel is a
// programming error and Resolve panics.
func (r Register) Resolve(channel int) uint16 {
	if !r.Channeled {
		return r.Address
	}
	if channel < 1 || channel > MaxChannels {
		panic(fmt.Sprintf("termodat: resolve %s on invalid channel %d", r.Name, channel))
	}
	return r.Address + ChannelOffset(channel)
}

func (r Register) String() string {
	return fmt.Sprintf("%s (0x%04X)", r.Name, r.Address)
}
