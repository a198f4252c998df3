package kobuki

import (
	"math"
	"sync"

	"github.com/kobuki-driver/kobuki/driver/kobukierrors"
	"github.com/kobuki-driver/kobuki/driver/protocol"
)

const (
	// motionHeaderID is the sub-record id the base uses for its base
	// control command (speed, radius).
	motionHeaderID byte = 0x01

	// radiusStraight is the sentinel the base firmware reads as "drive in
	// a straight line" (no curvature). radiusSpinCW/CCW are the sentinels
	// for spinning in place around the base's own centre.
	radiusStraight int16 = 0
	radiusSpinCCW  int16 = 1
	radiusSpinCW   int16 = -1
)

// Motion is the base's most recently commanded (speed, radius) pair, in
// the units the wire protocol itself uses: millimetres per second and
// millimetres.
type Motion struct {
	Speed  int16
	Radius int16
}

// CommandState holds the base control command the driver last computed
// and the mutex guarding it; the Driver Loop worker reads it once per
// tick to build the outbound motion frame.
type CommandState struct {
	mu     sync.Mutex
	motion Motion
}

// SetMotion converts a linear/angular velocity command (m/s, rad/s) into
// the base's (speed, radius) representation and stores it for the next
// outbound frame.
//
// wz == 0 commands a straight line (radiusStraight). vx == 0 with wz != 0
// commands an in-place spin, using the sign of wz alone to pick a
// direction sentinel rather than a computed radius. Any other (vx, wz)
// pair computes radius = vx*1000/wz, and speed is always the faster of
// the two wheels' linear speeds for the commanded twist.
func (c *CommandState) SetMotion(vx, wz float64) {
	var m Motion

	switch {
	case wz == 0:
		m.Radius = radiusStraight
	case vx == 0 && wz > 0:
		m.Radius = radiusSpinCCW
	case vx == 0 && wz < 0:
		m.Radius = radiusSpinCW
	default:
		m.Radius = int16(math.Round(vx * 1000.0 / wz))
	}

	m.Speed = int16(math.Round(1000.0 * math.Max(vx+wheelbase*wz/2.0, vx-wheelbase*wz/2.0)))

	c.mu.Lock()
	c.motion = m
	c.mu.Unlock()
}

// Current returns the most recently set motion command.
func (c *CommandState) Current() Motion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motion
}

// Set overwrites the current motion command directly with an
// already-computed (speed, radius) pair, as used when a caller sends a
// raw Motion record rather than going through SetMotion's vx/wz
// conversion.
func (c *CommandState) Set(m Motion) {
	c.mu.Lock()
	c.motion = m
	c.mu.Unlock()
}

// HeaderID satisfies Encodable so a Motion can be sent through
// SendCommand like any other outbound sub-record.
func (m Motion) HeaderID() byte { return motionHeaderID }

// Payload satisfies Encodable, laying out speed then radius as
// little-endian i16s, matching EncodeMotion's fixed frame.
func (m Motion) Payload() []byte {
	p := make([]byte, 4)
	protocol.PutInt16LE(p[0:2], m.Speed)
	protocol.PutInt16LE(p[2:4], m.Radius)
	return p
}

// EncodeMotion builds the fixed 9-byte base control frame: STX, STX, LEN,
// header id, speed (i16 LE), radius (i16 LE), checksum. The checksum
// covers every byte from LEN through the last payload byte inclusive.
func EncodeMotion(m Motion) []byte {
	frame := make([]byte, 9)
	frame[0] = 0xAA
	frame[1] = 0x55
	frame[2] = 5 // LEN: header id + 2-byte speed + 2-byte radius
	frame[3] = motionHeaderID
	protocol.PutInt16LE(frame[4:6], m.Speed)
	protocol.PutInt16LE(frame[6:8], m.Radius)
	frame[8] = protocol.Checksum(frame[2:8])
	return frame
}

// Encodable is satisfied by any outbound sub-record the driver can send
// alongside, or instead of, a motion command: it knows its own header id
// and how to serialise its payload bytes.
type Encodable interface {
	HeaderID() byte
	Payload() []byte
}

// EncodeCommand builds a variable-length outbound frame for an arbitrary
// Encodable sub-record: STX, STX, LEN, header id, payload bytes,
// checksum over LEN through the last payload byte.
func EncodeCommand(rec Encodable) ([]byte, error) {
	payload := rec.Payload()
	if len(payload) > 252 {
		return nil, kobukierrors.SerialisationError{Reason: "payload exceeds maximum sub-record size"}
	}

	frame := make([]byte, 0, 5+len(payload))
	frame = append(frame, 0xAA, 0x55, 0)
	frame = append(frame, rec.HeaderID())
	frame = append(frame, payload...)
	frame = append(frame, 0) // checksum placeholder

	frame[2] = byte(len(frame) - 4) // LEN: header id + payload, excluding STX/STX/LEN/CKS
	frame[len(frame)-1] = protocol.Checksum(frame[2 : len(frame)-1])
	return frame, nil
}
