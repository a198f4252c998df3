package kobuki

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSetMotionStraightLine(t *testing.T) {
	Convey("Given a forward-only command", t, func() {
		var c CommandState
		c.SetMotion(0.5, 0)

		Convey("the radius sentinel is zero and speed matches vx", func() {
			m := c.Current()
			So(m.Radius, ShouldEqual, radiusStraight)
			So(m.Speed, ShouldEqual, int16(500))
		})
	})
}

func TestSetMotionInPlaceSpin(t *testing.T) {
	Convey("Given a pure rotation command", t, func() {
		var c CommandState

		Convey("positive wz selects the CCW sentinel", func() {
			c.SetMotion(0, 0.5)
			So(c.Current().Radius, ShouldEqual, radiusSpinCCW)
		})

		Convey("negative wz selects the CW sentinel", func() {
			c.SetMotion(0, -0.5)
			So(c.Current().Radius, ShouldEqual, radiusSpinCW)
		})
	})
}

func TestSetMotionCurvedPath(t *testing.T) {
	Convey("Given a combined forward and rotational command", t, func() {
		var c CommandState
		c.SetMotion(0.3, 0.6)

		Convey("radius is derived from vx and wz", func() {
			m := c.Current()
			So(m.Radius, ShouldEqual, int16(0.3*1000.0/0.6))
		})
	})
}

func TestInPlaceSpinEncodingMatchesReferenceFrame(t *testing.T) {
	Convey("Given the reference in-place-spin command vx=0, wz=+0.5", t, func() {
		var c CommandState
		c.SetMotion(0.0, 0.5)
		m := c.Current()

		Convey("radius is the CCW sentinel and speed is 75 mm/s", func() {
			So(m.Radius, ShouldEqual, int16(1))
			So(m.Speed, ShouldEqual, int16(75))
		})

		Convey("the encoded frame carries those exact bytes", func() {
			frame := EncodeMotion(m)
			So(frame[4], ShouldEqual, byte(0x4B))
			So(frame[5], ShouldEqual, byte(0x00))
			So(frame[6], ShouldEqual, byte(0x01))
			So(frame[7], ShouldEqual, byte(0x00))

			var cs byte
			for _, b := range frame[2:8] {
				cs ^= b
			}
			So(frame[8], ShouldEqual, cs)
		})
	})
}

func TestEncodeMotionFrameShape(t *testing.T) {
	Convey("Given an encoded motion command", t, func() {
		frame := EncodeMotion(Motion{Speed: 300, Radius: -1})

		Convey("it is a fixed 9-byte frame with the right header layout", func() {
			So(len(frame), ShouldEqual, 9)
			So(frame[0], ShouldEqual, byte(0xAA))
			So(frame[1], ShouldEqual, byte(0x55))
			So(frame[2], ShouldEqual, byte(5))
			So(frame[3], ShouldEqual, motionHeaderID)
		})

		Convey("the checksum covers LEN through the last payload byte", func() {
			var cs byte
			for _, b := range frame[2:8] {
				cs ^= b
			}
			So(frame[8], ShouldEqual, cs)
		})
	})
}

type stubRecord struct {
	id      byte
	payload []byte
}

func (s stubRecord) HeaderID() byte  { return s.id }
func (s stubRecord) Payload() []byte { return s.payload }

func TestEncodeCommandVariableLength(t *testing.T) {
	Convey("Given an arbitrary sub-record", t, func() {
		rec := stubRecord{id: 0x0A, payload: []byte{1, 2, 3}}
		frame, err := EncodeCommand(rec)

		Convey("it builds a well-formed frame with a correct LEN and checksum", func() {
			So(err, ShouldBeNil)
			So(frame[0], ShouldEqual, byte(0xAA))
			So(frame[1], ShouldEqual, byte(0x55))
			So(frame[2], ShouldEqual, byte(4)) // header id + 3 payload bytes
			So(frame[3], ShouldEqual, byte(0x0A))

			var cs byte
			for _, b := range frame[2 : len(frame)-1] {
				cs ^= b
			}
			So(frame[len(frame)-1], ShouldEqual, cs)
		})
	})
}
