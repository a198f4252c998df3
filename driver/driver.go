// Package kobuki implements a driver for a Kobuki-protocol differential
// drive base: a resynchronising frame reader running on its own
// goroutine, a record pool other goroutines can safely poll, an
// observer bus for push-style notification, wrap-safe odometry, and a
// command encoder for outbound motion frames.
package kobuki

import (
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"github.com/kobuki-driver/kobuki/driver/kobukierrors"
	"github.com/kobuki-driver/kobuki/driver/observer"
	"github.com/kobuki-driver/kobuki/driver/protocol"
)

// State is the Driver's lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// readTimeout is how long the worker loop blocks on a single serial read
// before treating it as a NoDataWarning and looping again.
const readTimeout = 4 * time.Second

// Port is the minimal serial transport the worker loop needs. serial.Port
// satisfies it directly; tests inject a fake to drive the loop's read/
// dispatch/write-back cycle deterministically without a real device.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Driver owns the serial port, the frame reader, the record pool, and
// the observer bus for one base. All of its exported accessors are safe
// to call concurrently with the worker loop; the loop is the pool's and
// odometry's only writer.
type Driver struct {
	cfg  Config
	bus  *observer.Bus
	log  *Logger
	pool *protocol.RecordPool

	portMu sync.Mutex
	port   Port

	finder *protocol.PacketFinder
	cmd    CommandState

	stateMu   sync.Mutex
	state     State
	connected bool
	enabled   bool

	odomMu     sync.Mutex
	odom       Odometry
	leftWheel  WheelState
	rightWheel WheelState
	poseDelta  [3]float64
	poseRate   [3]float64

	stopCh chan struct{}
	doneCh chan struct{}

	versionOK bool
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithPort injects a Port in place of opening a real serial connection in
// Start. Intended for tests that need to exercise the non-simulated read/
// dispatch/write-back path against a fake stream.
func WithPort(p Port) Option {
	return func(d *Driver) { d.port = p }
}

// New constructs a Driver from cfg. It does not open the serial port or
// start the worker loop; call Start for that.
func New(cfg Config, opts ...Option) *Driver {
	bus := observer.New(cfg.SigslotNamespace)
	d := &Driver{
		cfg:       cfg,
		bus:       bus,
		log:       newLogger(cfg.LogLevel, bus),
		pool:      &protocol.RecordPool{},
		finder:    protocol.NewPacketFinder(),
		enabled:   true,
		versionOK: protocolCompatible(cfg.ProtocolVersion),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.port != nil {
		d.connected = true
	}
	return d
}

// Bus returns the observer bus events are published on.
func (d *Driver) Bus() *observer.Bus { return d.bus }

// State reports the driver's current lifecycle state.
func (d *Driver) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

// Start opens the serial port (skipped in simulation mode) and launches
// the worker loop. Calling Start on an already-running Driver is a
// no-op.
func (d *Driver) Start() error {
	d.stateMu.Lock()
	if d.state != Stopped {
		d.stateMu.Unlock()
		return nil
	}
	d.state = Running
	d.stateMu.Unlock()

	if !d.cfg.Simulation && d.port == nil {
		port, err := serial.Open(&serial.Config{
			Address:  d.cfg.DevicePort,
			BaudRate: 115200,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  readTimeout,
		})
		if err != nil {
			d.stateMu.Lock()
			d.state = Stopped
			d.stateMu.Unlock()
			return kobukierrors.SerialUnavailable{Op: "open", Err: err}
		}
		d.portMu.Lock()
		d.port = port
		d.portMu.Unlock()
	}

	if d.port != nil {
		d.stateMu.Lock()
		d.connected = true
		d.stateMu.Unlock()
	}

	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.log.Infof("driver started (simulation=%v)", d.cfg.Simulation)
	go d.loop()
	return nil
}

// Stop signals the worker loop to exit, sends a final zero-motion
// command, and closes the serial port. It blocks until the loop has
// exited. Calling Stop when already stopped is a no-op.
func (d *Driver) Stop() error {
	d.stateMu.Lock()
	if d.state != Running {
		d.stateMu.Unlock()
		return nil
	}
	d.state = Stopping
	d.stateMu.Unlock()

	close(d.stopCh)
	<-d.doneCh

	d.stateMu.Lock()
	d.state = Stopped
	d.connected = false
	d.stateMu.Unlock()
	d.log.Infof("driver stopped")
	return nil
}

// loop is the driver's single worker goroutine: it owns the packet
// finder, the record pool's writes, and the periodic outbound motion
// writes. The only other writer to the serial port is SendCommand, which
// takes the same portMu.
func (d *Driver) loop() {
	defer close(d.doneCh)
	defer d.shutdownPort()

	buf := make([]byte, 128)
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		if d.cfg.Simulation {
			d.tickSimulated()
			time.Sleep(50 * time.Millisecond)
			continue
		}

		n := d.finder.BytesNeededHint()
		if n > len(buf) {
			n = len(buf)
		}
		read, err := d.port.Read(buf[:n])
		if err != nil {
			d.log.Warn(kobukierrors.SerialUnavailable{Op: "read", Err: err})
			continue
		}
		if read == 0 {
			d.log.Warn(kobukierrors.NoDataWarning{})
			continue
		}

		found := d.finder.Feed(buf[:read])
		for i := d.finder.ChecksumMismatches(); i > 0; i-- {
			d.log.Warn(kobukierrors.ChecksumMismatch{})
		}
		if !found {
			continue
		}

		if !d.versionOK {
			// Configured protocol version is incompatible: the frame is
			// drained above to keep the stream in sync, but it is never
			// handed to Dispatch, so nothing is decoded into the pool or
			// emitted.
			d.finder.Take()
			d.writeMotion()
			continue
		}

		payload := d.finder.Take()
		seen, err := protocol.Dispatch(d.pool, payload)
		if err != nil {
			d.log.Error(err)
			continue
		}

		d.dispatchObservers(seen)
		d.writeMotion()
	}
}

// dispatchObservers emits one event per header id seen this frame, in
// ascending id order, and additionally emits a joint_state event after
// the default sub-record since it is derived rather than wire-native.
func (d *Driver) dispatchObservers(seen *protocol.SeenSet) {
	for _, id := range seen.Ordered() {
		switch id {
		case protocol.HeaderDefault:
			rec := d.pool.Default()
			d.updateOdometry(rec)
			d.bus.Emit(observer.ChannelSensorData, rec)
			d.bus.Emit(observer.ChannelJointState, d.JointStates())
		case protocol.HeaderIR:
			d.bus.Emit(observer.ChannelIR, d.pool.IR())
		case protocol.HeaderDockIR:
			d.bus.Emit(observer.ChannelDockIR, d.pool.DockIR())
		case protocol.HeaderInertia:
			d.bus.Emit(observer.ChannelInertia, d.pool.Inertia())
		case protocol.HeaderCliff:
			d.bus.Emit(observer.ChannelCliff, d.pool.Cliff())
		case protocol.HeaderCurrent:
			d.bus.Emit(observer.ChannelCurrent, d.pool.Current())
		case protocol.HeaderMagnet:
			d.bus.Emit(observer.ChannelMagnet, d.pool.Magnet())
		case protocol.HeaderTime:
			d.bus.Emit(observer.ChannelTime, d.pool.Time())
		case protocol.HeaderHW:
			d.bus.Emit(observer.ChannelHW, d.pool.HW())
		case protocol.HeaderFW:
			d.bus.Emit(observer.ChannelFW, d.pool.FW())
		case protocol.HeaderStGyro:
			d.bus.Emit(observer.ChannelStGyro, d.pool.StGyro())
		case protocol.HeaderEEPROM:
			d.bus.Emit(observer.ChannelEEPROM, d.pool.EEPROM())
		case protocol.HeaderGPInput:
			d.bus.Emit(observer.ChannelGPInput, d.pool.GPInput())
		}
	}
}

func (d *Driver) updateOdometry(rec protocol.DefaultData) {
	d.odomMu.Lock()
	defer d.odomMu.Unlock()
	left, right, delta, rate := d.odom.Update(rec)
	d.leftWheel = left
	d.rightWheel = right
	d.poseDelta = [3]float64{delta.X(), delta.Y(), delta.Z()}
	d.poseRate = [3]float64{rate.X(), rate.Y(), rate.Z()}
}

// tickSimulated advances no state: the base is idle, no observer events
// fire, and any pending motion command is silently discarded rather than
// written to a port that does not exist.
func (d *Driver) tickSimulated() {}

func (d *Driver) writeMotion() {
	if d.cfg.Simulation {
		return
	}
	d.portMu.Lock()
	defer d.portMu.Unlock()
	if d.port == nil {
		return
	}
	frame := EncodeMotion(d.cmd.Current())
	if _, err := d.port.Write(frame); err != nil {
		d.log.Warn(kobukierrors.SerialUnavailable{Op: "write", Err: err})
	}
}

func (d *Driver) shutdownPort() {
	d.cmd.SetMotion(0, 0)

	d.portMu.Lock()
	defer d.portMu.Unlock()
	if d.port != nil {
		frame := EncodeMotion(d.cmd.Current())
		d.port.Write(frame)
		d.port.Close()
	}
}

// SetMotion queues a linear/angular velocity command for the next
// outbound frame, superseding SendCommand's effect on the periodic
// (speed, radius) write-back.
func (d *Driver) SetMotion(vx, wz float64) {
	d.cmd.SetMotion(vx, wz)
}

// SendCommand implements the driver's send_command(record) operation: it
// encodes rec as a variable-length outbound frame and writes it to the
// serial port, taking the same portMu the worker loop's own periodic
// writes use so callers outside the loop never race an in-flight write.
// If rec is a Motion, CommandState is also updated so the next periodic
// emission carries the same (speed, radius) forward. In simulation the
// frame is encoded (to surface encoding errors) but never written.
func (d *Driver) SendCommand(rec Encodable) error {
	frame, err := EncodeCommand(rec)
	if err != nil {
		return err
	}

	if m, ok := rec.(Motion); ok {
		d.cmd.Set(m)
	}

	if d.cfg.Simulation {
		return nil
	}

	d.portMu.Lock()
	defer d.portMu.Unlock()
	if d.port == nil {
		return kobukierrors.SerialUnavailable{Op: "write", Err: fmt.Errorf("port not open")}
	}
	if _, err := d.port.Write(frame); err != nil {
		return kobukierrors.SerialUnavailable{Op: "write", Err: err}
	}
	return nil
}

// JointState is the position/velocity/enabled triple reported for one
// named wheel joint.
type JointState struct {
	Name     string
	Position float64
	Velocity float64
	Enabled  bool
}

// isConnected reports whether the serial port is currently open. It is
// always false in simulation, since no port is ever opened.
func (d *Driver) isConnected() bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.connected
}

// isEnabled reports whether outbound commands are armed. There is no
// separate arm/disarm operation yet, so this is true from construction
// onward; it exists so JointStates gates on all three of is_connected,
// is_running and is_enabled independently, as specified.
func (d *Driver) isEnabled() bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.enabled
}

// JointStates returns the current state of both wheel joints.
func (d *Driver) JointStates() []JointState {
	enabled := d.State() == Running && d.isConnected() && d.isEnabled()

	d.odomMu.Lock()
	defer d.odomMu.Unlock()
	return []JointState{
		{Name: "wheel_left", Position: d.leftWheel.PositionRad, Velocity: d.leftWheel.VelocityRPS, Enabled: enabled},
		{Name: "wheel_right", Position: d.rightWheel.PositionRad, Velocity: d.rightWheel.VelocityRPS, Enabled: enabled},
	}
}

// GetJointState returns the state of a single named wheel joint.
func (d *Driver) GetJointState(name string) (JointState, error) {
	for _, js := range d.JointStates() {
		if js.Name == name {
			return js, nil
		}
	}
	return JointState{}, fmt.Errorf("unknown joint %q", name)
}

// GetSensorData, GetIRData, ... expose the record pool's latest samples
// directly; each is a plain snapshot copy, safe to call from any
// goroutine.
func (d *Driver) GetSensorData() protocol.DefaultData  { return d.pool.Default() }
func (d *Driver) GetIRData() protocol.IRData           { return d.pool.IR() }
func (d *Driver) GetDockIRData() protocol.DockIRData   { return d.pool.DockIR() }
func (d *Driver) GetInertiaData() protocol.InertiaData { return d.pool.Inertia() }
func (d *Driver) GetCliffData() protocol.CliffData     { return d.pool.Cliff() }
func (d *Driver) GetCurrentData() protocol.CurrentData { return d.pool.Current() }
func (d *Driver) GetMagnetData() protocol.MagnetData   { return d.pool.Magnet() }
func (d *Driver) GetTimeData() protocol.TimeData       { return d.pool.Time() }
func (d *Driver) GetHWData() protocol.HWData           { return d.pool.HW() }
func (d *Driver) GetFWData() protocol.FWData           { return d.pool.FW() }
func (d *Driver) GetStGyroData() protocol.StGyroData   { return d.pool.StGyro() }
func (d *Driver) GetEEPROMData() protocol.EEPROMData   { return d.pool.EEPROM() }
func (d *Driver) GetGPInputData() protocol.GPInputData { return d.pool.GPInput() }
