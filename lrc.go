// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

// lrc implements the longitudinal redundancy check of Modbus ASCII:
// the two's complement of the byte sum.
type lrc struct {
	sum uint8
}

func (lrc *lrc) reset() *lrc {
	lrc.sum = 0
	return lrc
}

func (lrc *lrc) push(data ...byte) *lrc {
	for _, b := range data {
		lrc.sum += b
	}
	return lrc
}

func (lrc *lrc) pushByte(b byte) *lrc {
	lrc.sum += b
	return lrc
}

func (lrc *lrc) pushBytes(data []byte) *lrc {
	return lrc.push(data...)
}

func (lrc *lrc) value() byte {
	return ^lrc.sum + 1
}

// Checksum returns the LRC of data. Appending it to data makes the
// byte sum zero modulo 256.
func Checksum(data []byte) byte {
	var l lrc
	return l.pushBytes(data).value()
}
