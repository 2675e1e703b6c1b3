// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

// Transporter performs one request/response exchange on the link.
// Implementations acquire the underlying port for the duration of a single
// Send and release it on every return path.
type Transporter interface {
	Send(request []byte) (response []byte, err error)
}

// readLine reads from r until a line feed arrives or the deadline passes.
// The returned line includes its terminator.
func readLine(r io.Reader, deadline time.Time) ([]byte, error) {
	var length int
	var data [asciiMaxSize]byte
	for {
		n, err := r.Read(data[length:])
		if n > 0 {
			if i := bytes.IndexByte(data[length:length+n], '\n'); i >= 0 {
				return data[:length+i+1], nil
			}
			length += n
		}
		expired := !deadline.IsZero() && !time.Now().Before(deadline)
		if err != nil {
			if isTimeout(err) || expired {
				return nil, fmt.Errorf("%w after %d bytes: %v", ErrTimeout, length, err)
			}
			return nil, err
		}
		if length >= asciiMaxSize {
			return nil, protocolErrorf(data[:length], "response exceeds '%v' bytes without line end", asciiMaxSize)
		}
		if n == 0 && expired {
			return nil, fmt.Errorf("%w after %d bytes", ErrTimeout, length)
		}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
