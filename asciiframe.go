// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

const (
	asciiEnd = "\r\n"
	// slave id, function code and LRC
	asciiMinSize = 3
	// ':' plus slave id, function code, address, value and LRC in hex
	asciiRequestSize = 1 + 2*7
	asciiMaxSize     = 513

	// payloadOffset is where a read reply carries its first register.
	payloadOffset = 7
	payloadLength = 4

	hexTable = "0123456789ABCDEF"
)

// Modbus ASCII defines ':' but in the field often '>' is seen.
var asciiStart = []string{":", ">"}

// Frame is one encoded request line including the trailing CR LF.
type Frame []byte

func (f Frame) String() string {
	return string(bytes.TrimRight(f, asciiEnd))
}

// Response is a decoded reply line.
type Response struct {
	SlaveID      byte
	FunctionCode byte
	// Address is the register echoed by a write reply.
	Address uint16
	// Value is the payload: the first register of a read reply or the
	// value echoed by a write reply.
	Value uint16
	// Values holds every register of a read reply.
	Values []uint16
}

// EncodeRead encodes a read holding registers request:
//
//	Start           : 1 char
//	Address         : 2 chars
//	Function        : 2 chars ("03")
//	Register        : 4 chars
//	Count           : 4 chars
//	LRC             : 2 chars
//	End             : 2 chars
//
// A channel other than NoChannel shifts the register by ChannelOffset.
func EncodeRead(slaveID byte, channel int, address, count uint16) Frame {
	return encode(slaveID, FuncCodeReadHoldingRegisters, channel, address, count)
}

// EncodeWrite encodes a write single register request. The layout matches
// EncodeRead with function "06" and the register value in place of the count.
func EncodeWrite(slaveID byte, channel int, address, value uint16) Frame {
	return encode(slaveID, FuncCodeWriteSingleRegister, channel, address, value)
}

func encode(slaveID, functionCode byte, channel int, address, word uint16) Frame {
	var data [6]byte
	data[0] = slaveID
	data[1] = functionCode
	binary.BigEndian.PutUint16(data[2:], address+ChannelOffset(channel))
	binary.BigEndian.PutUint16(data[4:], word)

	var buf bytes.Buffer
	buf.Grow(asciiRequestSize + len(asciiEnd))
	buf.WriteString(asciiStart[0])
	writeHex(&buf, data[:])

	// Exclude the beginning colon and terminating CRLF pair characters
	var lrc lrc
	lrc.reset().pushByte(slaveID).pushByte(functionCode).pushBytes(data[2:])
	writeHex(&buf, []byte{lrc.value()})
	buf.WriteString(asciiEnd)
	return buf.Bytes()
}

// Decode parses and validates one reply line. The line may or may not carry
// its CR LF terminator. Exception replies are returned as *Error, any other
// malformed input as *ProtocolError.
func Decode(line []byte) (*Response, error) {
	adu := trimLine(line)
	if len(adu) == 0 {
		return nil, protocolErrorf(nil, "empty response")
	}
	if !isStartCharacter(string(adu[:1])) {
		return nil, protocolErrorf(line, "response frame is not started with '%v'", asciiStart)
	}
	body := adu[1:]
	// Minimum size (including address, function and LRC)
	if len(body) < 2*asciiMinSize {
		return nil, protocolErrorf(line, "response length '%v' does not meet minimum '%v'", len(body), 2*asciiMinSize)
	}
	// Length excluding colon must be an even number
	if len(body)%2 != 0 {
		return nil, protocolErrorf(line, "response length '%v' is not an even number", len(body))
	}
	data := make([]byte, hex.DecodedLen(len(body)))
	if _, err := hex.Decode(data, body); err != nil {
		return nil, protocolErrorf(line, "response is not hexadecimal: %v", err)
	}
	lrcVal := data[len(data)-1]
	data = data[:len(data)-1]
	if expected := Checksum(data); lrcVal != expected {
		return nil, protocolErrorf(line, "response lrc '%v' does not match expected '%v'", lrcVal, expected)
	}

	rsp := &Response{
		SlaveID:      data[0],
		FunctionCode: data[1],
	}
	pdu := data[2:]
	if rsp.FunctionCode&exceptionFlag != 0 {
		mbError := &Error{FunctionCode: rsp.FunctionCode}
		if len(pdu) > 0 {
			mbError.ExceptionCode = pdu[0]
		}
		return nil, mbError
	}

	switch rsp.FunctionCode {
	case FuncCodeReadHoldingRegisters:
		// Byte count followed by N registers
		if len(pdu) < 3 {
			return nil, protocolErrorf(line, "response data size '%v' is less than expected '%v'", len(pdu), 3)
		}
		count := int(pdu[0])
		if count != len(pdu)-1 || count%2 != 0 {
			return nil, protocolErrorf(line, "response data size '%v' does not match count '%v'", len(pdu)-1, count)
		}
		rsp.Values = make([]uint16, count/2)
		for i := range rsp.Values {
			rsp.Values[i] = binary.BigEndian.Uint16(pdu[1+2*i:])
		}
		rsp.Value = rsp.Values[0]
	case FuncCodeWriteSingleRegister:
		// Register followed by the written value
		if len(pdu) != 4 {
			return nil, protocolErrorf(line, "response data size '%v' does not match expected '%v'", len(pdu), 4)
		}
		rsp.Address = binary.BigEndian.Uint16(pdu)
		rsp.Value = binary.BigEndian.Uint16(pdu[2:])
	default:
		return nil, protocolErrorf(line, "unexpected function code '%v'", rsp.FunctionCode)
	}
	return rsp, nil
}

// Payload extracts the four hex digits at the fixed payload offset of a
// read reply without validating the rest of the frame.
func Payload(line []byte) (uint16, error) {
	adu := trimLine(line)
	if len(adu) == 0 {
		return 0, protocolErrorf(nil, "empty response")
	}
	if len(adu) < payloadOffset+payloadLength {
		return 0, protocolErrorf(line, "response length '%v' does not meet minimum '%v'", len(adu), payloadOffset+payloadLength)
	}
	v, err := strconv.ParseUint(string(adu[payloadOffset:payloadOffset+payloadLength]), 16, 16)
	if err != nil {
		return 0, protocolErrorf(line, "payload is not hexadecimal")
	}
	return uint16(v), nil
}

// DecodeScaledTemperature decodes a read reply whose payload is a
// temperature in tenths of a degree.
func DecodeScaledTemperature(line []byte) (Degrees, error) {
	rsp, err := Decode(line)
	if err != nil {
		return 0, err
	}
	if rsp.FunctionCode != FuncCodeReadHoldingRegisters {
		return 0, protocolErrorf(line, "response function '%v' carries no temperature", rsp.FunctionCode)
	}
	return Degrees(rsp.Value), nil
}

func trimLine(line []byte) []byte {
	return bytes.TrimRight(line, asciiEnd)
}

// writeHex encodes byte to string in hexadecimal, e.g. 0xA5 => "A5"
// (encoding/hex only supports lowercase string).
func writeHex(buf *bytes.Buffer, value []byte) {
	var str [2]byte
	for _, v := range value {
		str[0] = hexTable[v>>4]
		str[1] = hexTable[v&0x0F]
		buf.Write(str[:])
	}
}

// isStartCharacter confirms that the given character is a Modbus ASCII start character.
func isStartCharacter(str string) bool {
	for i := range asciiStart {
		if str == asciiStart[i] {
			return true
		}
	}
	return false
}
