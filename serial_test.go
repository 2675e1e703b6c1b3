package termodat

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grid-x/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	sync.Mutex
	io.ReadWriter

	closed bool
}

func (n *nopCloser) Close() error {
	n.Lock()
	defer n.Unlock()
	n.closed = true
	return nil
}

// idlePort never delivers data, like a serial line with nobody attached.
type idlePort struct {
	bytes.Buffer
}

func (p *idlePort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

// wirePort replays reply and captures what is written.
func wirePort(reply string) (*nopCloser, *bytes.Buffer) {
	var written bytes.Buffer
	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader(reply), &written}
	return &nopCloser{ReadWriter: rw}, &written
}

func newTestSerialTransporter(port io.ReadWriteCloser) (*SerialTransporter, *int) {
	opened := 0
	t := NewSerialTransporter("/dev/ttyTEST")
	t.openPort = func(c *serial.Config) (io.ReadWriteCloser, error) {
		opened++
		return port, nil
	}
	return t, &opened
}

func TestSerialDefaults(t *testing.T) {
	tr := NewSerialTransporter("/dev/ttyUSB0")
	assert.Equal(t, "/dev/ttyUSB0", tr.Address)
	assert.Equal(t, 57600, tr.BaudRate)
	assert.Equal(t, 8, tr.DataBits)
	assert.Equal(t, "N", tr.Parity)
	assert.Equal(t, 1, tr.StopBits)
	assert.Equal(t, 5*time.Second, tr.Timeout)
}

func TestSerialSendClosesPort(t *testing.T) {
	reply := ":02060180000176\r\n"
	port, wire := wirePort(reply)
	tr, opened := newTestSerialTransporter(port)

	request := EncodeWrite(2, NoChannel, 0x0180, 1)
	rsp, err := tr.Send(request)
	require.NoError(t, err)
	assert.Equal(t, reply, string(rsp))
	assert.Equal(t, string(request), wire.String(), "request must be written to the port")
	assert.Equal(t, 1, *opened)
	assert.True(t, port.closed, "port must be closed after the exchange")
}

func TestSerialReadsUpToLineFeed(t *testing.T) {
	port, _ := wirePort(":02030200EE0B\r\n:trailing")
	tr, _ := newTestSerialTransporter(port)

	rsp, err := tr.Send(EncodeRead(2, NoChannel, 0x0170, 1))
	require.NoError(t, err)
	assert.Equal(t, ":02030200EE0B\r\n", string(rsp))
}

func TestSerialTimeout(t *testing.T) {
	port := &nopCloser{ReadWriter: &idlePort{}}
	tr, _ := newTestSerialTransporter(port)
	tr.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := tr.Send(EncodeRead(2, NoChannel, 0x0130, 1))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, port.closed, "port must be closed after a timeout")
}

func TestSerialReadError(t *testing.T) {
	port, _ := wirePort(":0203")
	tr, _ := newTestSerialTransporter(port)

	_, err := tr.Send(EncodeRead(2, NoChannel, 0x0130, 1))
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, port.closed)
}

func TestSerialOpenError(t *testing.T) {
	tr := NewSerialTransporter("/dev/ttyTEST")
	tr.openPort = func(*serial.Config) (io.ReadWriteCloser, error) {
		return nil, errors.New("permission denied")
	}
	_, err := tr.Send(EncodeRead(2, NoChannel, 0x0130, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open /dev/ttyTEST")
}

func TestSerialLogsFrames(t *testing.T) {
	port, _ := wirePort(":02060180000176\r\n")
	tr, _ := newTestSerialTransporter(port)
	logger := &bufferLogger{}
	tr.Logger = logger

	_, err := tr.Send(EncodeWrite(2, NoChannel, 0x0180, 1))
	require.NoError(t, err)
	assert.Contains(t, logger.String(), `termodat: send ":02060180000176\r\n"`)
	assert.Contains(t, logger.String(), `termodat: recv ":02060180000176\r\n"`)
}
