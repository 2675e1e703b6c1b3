// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	// Line settings of a Termodat unit
	serialBaudRate = 57600
	serialDataBits = 8
	serialParity   = "N"
	serialStopBits = 1
	serialTimeout  = 5 * time.Second
)

var _ Transporter = (*SerialTransporter)(nil)

// SerialTransporter implements Transporter on a serial port. The port is
// opened for every exchange and closed before Send returns.
type SerialTransporter struct {
	// Serial port configuration.
	serial.Config

	Logger Logger

	mu sync.Mutex
	// openPort opens the platform port, serial.Open unless replaced in tests.
	openPort func(*serial.Config) (io.ReadWriteCloser, error)
}

// NewSerialTransporter creates a transporter with the Termodat line
// settings: 57600 baud, 8 data bits, no parity, 1 stop bit, 5 s timeout.
func NewSerialTransporter(address string) *SerialTransporter {
	return &SerialTransporter{
		Config: serial.Config{
			Address:  address,
			BaudRate: serialBaudRate,
			DataBits: serialDataBits,
			Parity:   serialParity,
			StopBits: serialStopBits,
			Timeout:  serialTimeout,
		},
	}
}

// Send opens the port, writes the request and waits for one reply line.
func (mb *SerialTransporter) Send(aduRequest []byte) (aduResponse []byte, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	port, err := mb.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := port.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close %s: %w", mb.Config.Address, cerr)
			aduResponse = nil
		}
	}()

	var deadline time.Time
	if mb.Timeout > 0 {
		deadline = time.Now().Add(mb.Timeout)
	}
	mb.logf("termodat: send %q\n", aduRequest)
	if _, err = port.Write(aduRequest); err != nil {
		return nil, err
	}
	if aduResponse, err = readLine(port, deadline); err != nil {
		return nil, err
	}
	mb.logf("termodat: recv %q\n", aduResponse)
	return aduResponse, nil
}

func (mb *SerialTransporter) open() (io.ReadWriteCloser, error) {
	open := mb.openPort
	if open == nil {
		open = openSerial
	}
	port, err := open(&mb.Config)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", mb.Config.Address, err)
	}
	return port, nil
}

func openSerial(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.Open(c)
}

func (mb *SerialTransporter) logf(format string, v ...interface{}) {
	if mb.Logger != nil {
		mb.Logger.Printf(format, v...)
	}
}
