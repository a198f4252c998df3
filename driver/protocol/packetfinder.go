package protocol

const (
	stx1 = 0xAA
	stx2 = 0x55

	maxPayloadLen = 64
)

type finderState int

const (
	waitSTX1 finderState = iota
	waitSTX2
	waitLength
	readPayload
	verifyChecksum
)

// PacketFinder is a stream resynchroniser: fed an arbitrary run of bytes,
// it produces whole, checksum-valid payload blocks (STX, LEN and CKS
// stripped). A corrupted or truncated frame never blocks subsequent
// frames: on any mismatch it discards what it has and resyncs from
// waitSTX1.
type PacketFinder struct {
	state      finderState
	declared   byte
	payload    []byte
	ready      []byte // last assembled payload, consumed by Take
	mismatches int    // checksum failures since the last call to ChecksumMismatches
}

// NewPacketFinder returns a PacketFinder ready to sync from the start of a
// stream.
func NewPacketFinder() *PacketFinder {
	return &PacketFinder{state: waitSTX1}
}

// Feed advances the state machine over buf, byte by byte, for as long as
// it can make progress. It returns true if at least one new payload was
// assembled and is available via Take.
func (f *PacketFinder) Feed(buf []byte) bool {
	found := false
	for _, b := range buf {
		if f.step(b) {
			found = true
		}
	}
	return found
}

// step processes a single incoming byte, returning true exactly when it
// completes a valid payload.
func (f *PacketFinder) step(b byte) bool {
	switch f.state {
	case waitSTX1:
		if b == stx1 {
			f.state = waitSTX2
		}
		return false

	case waitSTX2:
		if b == stx2 {
			f.state = waitLength
		} else if b != stx1 {
			f.state = waitSTX1
		}
		// b == stx1: stay in waitSTX2, this byte might be the real STX1.
		return false

	case waitLength:
		if b == 0 || b > maxPayloadLen {
			f.state = waitSTX1
			return false
		}
		f.declared = b
		f.payload = make([]byte, 0, b)
		f.state = readPayload
		return false

	case readPayload:
		f.payload = append(f.payload, b)
		if len(f.payload) == int(f.declared) {
			f.state = verifyChecksum
		}
		return false

	case verifyChecksum:
		cs := f.declared
		for _, p := range f.payload {
			cs ^= p
		}
		f.state = waitSTX1
		if cs == b {
			f.ready = f.payload
			f.payload = nil
			return true
		}
		f.payload = nil
		f.mismatches++
		return false
	}
	return false
}

// Take moves out the last-assembled payload. It returns nil if none is
// available.
func (f *PacketFinder) Take() []byte {
	out := f.ready
	f.ready = nil
	return out
}

// ChecksumMismatches reports how many frames have failed their checksum
// check since the last call, resetting the count. The caller (the Driver
// Loop) uses this to surface a ChecksumMismatch onto the log channels;
// the finder itself only resyncs and never blocks on a bad frame.
func (f *PacketFinder) ChecksumMismatches() int {
	n := f.mismatches
	f.mismatches = 0
	return n
}

// BytesNeededHint reports how many bytes the caller may productively read
// next: 1 while syncing, and while reading a payload the number of payload
// bytes still missing plus 1 (declared_length+1 right after LEN), so the
// caller can size a single read to finish the frame plus its checksum
// byte.
func (f *PacketFinder) BytesNeededHint() int {
	switch f.state {
	case readPayload:
		return int(f.declared) - len(f.payload) + 1
	case verifyChecksum:
		return 1
	default:
		return 1
	}
}
