// Package protocol implements the framed binary wire protocol spoken by
// the base: little-endian byte codecs, the stream-resynchronising packet
// finder, and the sub-record frame dispatcher.
package protocol

// PutUint16LE writes v into buf[0:2] in little-endian order.
func PutUint16LE(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

// Uint16LE reads a little-endian uint16 from buf[0:2].
func Uint16LE(buf []byte) uint16 {
	return uint16(buf[0]) | uint16(buf[1])<<8
}

// Int16LE reads a little-endian, signed 16-bit integer from buf[0:2].
func Int16LE(buf []byte) int16 {
	return int16(Uint16LE(buf))
}

// PutInt16LE writes v into buf[0:2] in little-endian order.
func PutInt16LE(buf []byte, v int16) {
	PutUint16LE(buf, uint16(v))
}

// PutUint32LE writes v into buf[0:4] in little-endian order.
func PutUint32LE(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

// Uint32LE reads a little-endian uint32 from buf[0:4].
func Uint32LE(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

// WrapDiff16 computes the wrap-safe signed difference between two 16-bit
// counter samples: the modulo-2^16 difference reinterpreted as a signed
// 16-bit quantity. This gives the correct sign across the wrap boundary
// in either direction.
func WrapDiff16(curr, prev uint16) int16 {
	return int16(curr - prev)
}

// Checksum is the XOR of every byte in data.
func Checksum(data []byte) byte {
	var cs byte
	for _, b := range data {
		cs ^= b
	}
	return cs
}
