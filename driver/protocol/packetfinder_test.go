package protocol

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// frameBytes assembles a complete wire frame around payload, computing
// the trailing checksum the same way the firmware does: XOR of LEN and
// every payload byte.
func frameBytes(payload []byte) []byte {
	cs := byte(len(payload))
	for _, b := range payload {
		cs ^= b
	}
	out := make([]byte, 0, len(payload)+4)
	out = append(out, stx1, stx2, byte(len(payload)))
	out = append(out, payload...)
	out = append(out, cs)
	return out
}

func TestPacketFinderValidFrame(t *testing.T) {
	Convey("Given a single well-formed frame", t, func() {
		payload := []byte{0x01, 0x02, 0xAB, 0xCD}
		f := NewPacketFinder()

		Convey("Feed reports a completed payload and Take returns it intact", func() {
			found := f.Feed(frameBytes(payload))
			So(found, ShouldBeTrue)
			So(f.Take(), ShouldResemble, payload)
		})
	})
}

func TestPacketFinderNoiseBeforeFrame(t *testing.T) {
	Convey("Given noise bytes ahead of a well-formed frame", t, func() {
		payload := []byte{0x01, 0x02, 0x42}
		noisy := append([]byte{0x00, 0xFF, 0xAA, 0x12}, frameBytes(payload)...)
		f := NewPacketFinder()

		Convey("the finder resyncs and still recovers the frame", func() {
			So(f.Feed(noisy), ShouldBeTrue)
			So(f.Take(), ShouldResemble, payload)
		})
	})
}

func TestPacketFinderStrayStx1InsideStx2Wait(t *testing.T) {
	Convey("Given a stray 0xAA immediately before the real STX1/STX2 pair", t, func() {
		payload := []byte{0x01, 0x02}
		rest := frameBytes(payload)[1:] // everything after the first STX1
		buf := append([]byte{stx1, stx1}, rest...)
		f := NewPacketFinder()

		Convey("the finder still finds the frame without dropping an extra STX1", func() {
			So(f.Feed(buf), ShouldBeTrue)
			So(f.Take(), ShouldResemble, payload)
		})
	})
}

func TestPacketFinderCorruptChecksumThenValidFrame(t *testing.T) {
	Convey("Given a frame with a corrupted checksum followed by a valid one", t, func() {
		payload := []byte{0x01, 0x02, 0x99}
		bad := frameBytes(payload)
		bad[len(bad)-1] ^= 0xFF // flip the checksum byte

		good := frameBytes([]byte{0x01, 0x02, 0x55})

		f := NewPacketFinder()

		Convey("the corrupt frame yields nothing and the next valid frame still parses", func() {
			So(f.Feed(bad), ShouldBeFalse)
			So(f.Feed(good), ShouldBeTrue)
			So(f.Take(), ShouldResemble, []byte{0x01, 0x02, 0x55})
		})

		Convey("the checksum failure is counted until read and then resets", func() {
			f.Feed(bad)
			So(f.ChecksumMismatches(), ShouldEqual, 1)
			So(f.ChecksumMismatches(), ShouldEqual, 0)
		})
	})
}

func TestPacketFinderZeroAndOversizeLength(t *testing.T) {
	Convey("Given a declared length of zero", t, func() {
		f := NewPacketFinder()
		buf := []byte{stx1, stx2, 0x00}
		So(f.Feed(buf), ShouldBeFalse)

		Convey("the finder has resynced to wait for a fresh STX1", func() {
			So(f.state, ShouldEqual, waitSTX1)
		})
	})

	Convey("Given a declared length over the maximum payload size", t, func() {
		f := NewPacketFinder()
		buf := []byte{stx1, stx2, 0xFF}
		So(f.Feed(buf), ShouldBeFalse)
		So(f.state, ShouldEqual, waitSTX1)
	})
}

func TestPacketFinderBytesNeededHint(t *testing.T) {
	Convey("Given a finder mid-payload", t, func() {
		f := NewPacketFinder()
		f.Feed([]byte{stx1, stx2, 0x04})
		So(f.BytesNeededHint(), ShouldEqual, 5)

		f.Feed([]byte{0x01, 0x02})
		So(f.BytesNeededHint(), ShouldEqual, 3)
	})
}
