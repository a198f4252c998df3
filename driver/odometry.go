package kobuki

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/kobuki-driver/kobuki/driver/protocol"
)

const (
	// wheelbase is the wheel-to-wheel separation, bias in the source, in metres.
	wheelbase = 0.298
	// wheelRadius is the wheel radius in metres.
	wheelRadius = 0.042

	// tickToRad converts one encoder tick to wheel rotation in radians.
	// Derived from the base's 52-tooth encoder wheel geometry.
	tickToRad = (2.0 * 3.14159265358979323846) / 2578.33
)

// tickToMM converts one encoder tick to wheel arc-length in millimetres.
var tickToMM = tickToRad * wheelRadius * 1000.0

// WheelState is the accumulated position and instantaneous velocity of a
// single wheel, as reported to joint-state observers.
type WheelState struct {
	PositionRad float64
	VelocityRPS float64
}

// Odometry performs wrap-safe tick differencing on the base's 16-bit
// encoders plus a forward-kinematics update for a two-wheel differential
// base, including velocity estimation from the wrap-safe 16-bit
// millisecond device timestamp.
//
// It owns no concurrency primitive of its own; the Driver is the single
// writer, and guards access the same way it guards the record pool.
type Odometry struct {
	initL, initR bool

	lastTickLeft, lastTickRight uint16
	lastRadLeft, lastRadRight   float64
	lastMMLeft, lastMMRight     float64

	lastTimestamp     uint16
	haveTimestamp     bool
	lastDiffTime      float64
	lastVelocityLeft  float64
	lastVelocityRight float64
}

// Update ingests one default sub-record sample and returns the updated
// per-wheel state plus the pose delta and its time-rate from forward
// kinematics. Pose is represented as a (x, y, heading) triple packed into
// a Vec3, matching the convention the rest of the driver's kinematics
// uses for planar quantities. The pose rate is zero on the first sample
// and whenever the device timestamp repeats.
func (o *Odometry) Update(rec protocol.DefaultData) (left, right WheelState, poseDelta, poseRate mgl64.Vec3) {
	leftDiff := o.tickDelta(&o.initL, &o.lastTickLeft, rec.LeftEncoder)
	rightDiff := o.tickDelta(&o.initR, &o.lastTickRight, rec.RightEncoder)

	leftRadDelta := tickToRad * float64(leftDiff)
	rightRadDelta := tickToRad * float64(rightDiff)

	o.lastRadLeft += leftRadDelta
	o.lastRadRight += rightRadDelta
	o.lastMMLeft += tickToMM / 1000.0 * float64(leftDiff)
	o.lastMMRight += tickToMM / 1000.0 * float64(rightDiff)

	poseDelta = forwardKinematics(leftRadDelta, rightRadDelta)

	if !o.haveTimestamp {
		o.lastTimestamp = rec.Timestamp
		o.haveTimestamp = true
	} else if rec.Timestamp != o.lastTimestamp {
		o.lastDiffTime = float64(protocol.WrapDiff16(rec.Timestamp, o.lastTimestamp)) / 1000.0
		o.lastTimestamp = rec.Timestamp
		o.lastVelocityLeft = leftRadDelta / o.lastDiffTime
		o.lastVelocityRight = rightRadDelta / o.lastDiffTime
		poseRate = poseDelta.Mul(1.0 / o.lastDiffTime)
	} else {
		o.lastVelocityLeft = 0
		o.lastVelocityRight = 0
	}

	left = WheelState{PositionRad: o.lastRadLeft, VelocityRPS: o.lastVelocityLeft}
	right = WheelState{PositionRad: o.lastRadRight, VelocityRPS: o.lastVelocityRight}
	return left, right, poseDelta, poseRate
}

// tickDelta reports the wrap-safe signed delta between curr and the
// tracked last sample, initialising the tracked sample (delta zero) on
// the first call.
func (o *Odometry) tickDelta(init *bool, last *uint16, curr uint16) int16 {
	if !*init {
		*last = curr
		*init = true
		return 0
	}
	d := protocol.WrapDiff16(curr, *last)
	*last = curr
	return d
}

// forwardKinematics transforms per-wheel angular increments into a
// planar pose increment using the base's wheelbase and wheel radius.
// The result is expressed in the robot's local frame at the moment of
// the sample: X is the forward arc-length travelled, Y is always zero
// for a two-wheel differential base, and Z holds the heading change.
func forwardKinematics(leftRadDelta, rightRadDelta float64) mgl64.Vec3 {
	leftArc := wheelRadius * leftRadDelta
	rightArc := wheelRadius * rightRadDelta

	forward := (leftArc + rightArc) / 2.0
	heading := (rightArc - leftArc) / wheelbase

	return mgl64.Vec3{forward, 0, heading}
}
