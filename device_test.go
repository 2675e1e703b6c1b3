package termodat

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
)

// fakeDevice answers requests the way a Termodat unit does: reads return
// register contents, writes store the value and echo the request.
type fakeDevice struct {
	mu        sync.Mutex
	slaveID   byte
	registers map[uint16]uint16
	requests  []Frame
	// errs injects a transport error for the n-th request.
	errs map[int]error
	// reply replaces the device reply for the n-th request.
	reply map[int][]byte
	// silent makes every request time out.
	silent bool
}

func newFakeDevice(slaveID byte, channels uint16) *fakeDevice {
	return &fakeDevice{
		slaveID: slaveID,
		registers: map[uint16]uint16{
			RegChannelCount.Address: channels,
		},
		errs:  map[int]error{},
		reply: map[int][]byte{},
	}
}

func (d *fakeDevice) Send(request []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.requests)
	d.requests = append(d.requests, append(Frame(nil), request...))
	if d.silent {
		return nil, fmt.Errorf("%w after 0 bytes", ErrTimeout)
	}
	if err, ok := d.errs[n]; ok {
		return nil, err
	}
	if rsp, ok := d.reply[n]; ok {
		return rsp, nil
	}
	data, err := hex.DecodeString(string(bytes.TrimRight(request[1:], asciiEnd)))
	if err != nil || len(data) != 7 {
		return nil, fmt.Errorf("fake device: malformed request %q", request)
	}
	if data[0] != d.slaveID {
		return nil, fmt.Errorf("%w after 0 bytes", ErrTimeout)
	}
	address := binary.BigEndian.Uint16(data[2:])
	word := binary.BigEndian.Uint16(data[4:])
	switch data[1] {
	case FuncCodeReadHoldingRegisters:
		pdu := []byte{data[0], data[1], byte(2 * word)}
		for i := uint16(0); i < word; i++ {
			pdu = binary.BigEndian.AppendUint16(pdu, d.registers[address+i])
		}
		return asciiLine(pdu...), nil
	case FuncCodeWriteSingleRegister:
		d.registers[address] = word
		return append([]byte(nil), request...), nil
	}
	return asciiLine(data[0], data[1]|exceptionFlag, ExceptionCodeIllegalFunction), nil
}

// sent returns the requests received since the last call.
func (d *fakeDevice) sent() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.requests
	d.requests = nil
	d.errs = map[int]error{}
	d.reply = map[int][]byte{}
	return r
}

// asciiLine frames raw bytes with start character, LRC and CR LF.
func asciiLine(data ...byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(asciiStart[0])
	writeHex(&buf, data)
	writeHex(&buf, []byte{Checksum(data)})
	buf.WriteString(asciiEnd)
	return buf.Bytes()
}

// writes decodes write requests into register/value pairs.
func writes(t *testing.T, frames []Frame) [][2]uint16 {
	t.Helper()
	var out [][2]uint16
	for _, f := range frames {
		rsp, err := Decode(f)
		if err != nil {
			t.Fatalf("request %q does not decode: %v", f, err)
		}
		if rsp.FunctionCode != FuncCodeWriteSingleRegister {
			t.Fatalf("request %q is not a write", f)
		}
		out = append(out, [2]uint16{rsp.Address, rsp.Value})
	}
	return out
}

type recordingSink struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingSink) Record(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}
