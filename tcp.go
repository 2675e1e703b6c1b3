// Copyright 2018 xft. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const tcpTimeout = serialTimeout

var _ Transporter = (*TCPTransporter)(nil)

// DialFunc opens a connection to a serial-to-Ethernet gateway.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPTransporter carries the ASCII frames through a transparent
// serial-to-TCP gateway. Like the serial transporter it holds no
// connection between exchanges.
type TCPTransporter struct {
	// Connect string
	Address string
	// Connect & Read timeout
	Timeout time.Duration
	// Transmission logger
	Logger Logger
	// Dial defaults to net.Dialer.DialContext
	Dial DialFunc

	mu sync.Mutex
}

// NewTCPTransporter creates TCPTransporter with default values
func NewTCPTransporter(address string) *TCPTransporter {
	return &TCPTransporter{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send dials the gateway, writes the request and waits for one reply line.
func (mb *TCPTransporter) Send(aduRequest []byte) (aduResponse []byte, err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	// Set write and read timeout
	var deadline time.Time
	if mb.Timeout > 0 {
		deadline = time.Now().Add(mb.Timeout)
	}
	conn, err := mb.dial(deadline)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", mb.Address, err)
	}
	defer conn.Close()

	if err = conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	mb.logf("termodat: send %q\n", aduRequest)
	if _, err = conn.Write(aduRequest); err != nil {
		return nil, err
	}
	if aduResponse, err = readLine(conn, deadline); err != nil {
		return nil, err
	}
	mb.logf("termodat: recv %q\n", aduResponse)
	return aduResponse, nil
}

func (mb *TCPTransporter) dial(deadline time.Time) (net.Conn, error) {
	ctx := context.Background()
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	dial := mb.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	return dial(ctx, "tcp", mb.Address)
}

func (mb *TCPTransporter) logf(format string, v ...interface{}) {
	if mb.Logger != nil {
		mb.Logger.Printf(format, v...)
	}
}
