package kobuki

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/kobuki-driver/kobuki/driver/observer"
	"github.com/kobuki-driver/kobuki/driver/protocol"
)

// fakePort is a Port fake driving the worker loop's non-simulated path
// deterministically: pushed bytes sit in an internal queue and are handed
// back at most len(buf) at a time, the same way a real serial port would
// satisfy a short read, and every write is recorded for inspection,
// mirroring the teacher's own style of faking a hardware bus for its node
// tests.
type fakePort struct {
	mu     sync.Mutex
	queue  []byte
	writes [][]byte
	closed bool
}

func newFakePort() *fakePort {
	return &fakePort{}
}

func (p *fakePort) pushFrame(b []byte) {
	p.mu.Lock()
	p.queue = append(p.queue, b...)
	p.mu.Unlock()
}

func (p *fakePort) Read(buf []byte) (int, error) {
	deadline := time.Now().Add(20 * time.Millisecond)
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			n := copy(buf, p.queue)
			p.queue = p.queue[n:]
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()
		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	p.mu.Lock()
	p.writes = append(p.writes, cp)
	p.mu.Unlock()
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func frameBytes(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, 0xAA, 0x55, byte(len(payload)))
	out = append(out, payload...)
	out = append(out, protocol.Checksum(out[2:]))
	return out
}

func defaultSubRecord() []byte {
	data := make([]byte, 15)
	protocol.PutUint16LE(data[0:2], 1000)
	protocol.PutUint16LE(data[5:7], 500)
	protocol.PutUint16LE(data[7:9], 510)
	data[13] = 160
	return append([]byte{byte(protocol.HeaderDefault), 15}, data...)
}

func waitUntil(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func simConfig() Config {
	return Config{
		Simulation:       true,
		ProtocolVersion:  SupportedProtocolVersion,
		SigslotNamespace: "/kobuki",
	}
}

func TestDriverLifecycleInSimulation(t *testing.T) {
	Convey("Given a driver configured for simulation", t, func() {
		d := New(simConfig())
		So(d.State(), ShouldEqual, Stopped)

		Convey("Start moves it to Running without touching a serial port", func() {
			err := d.Start()
			So(err, ShouldBeNil)
			So(d.State(), ShouldEqual, Running)

			Convey("Stop returns it to Stopped", func() {
				err := d.Stop()
				So(err, ShouldBeNil)
				So(d.State(), ShouldEqual, Stopped)
			})
		})
	})
}

func TestDriverStartIsIdempotent(t *testing.T) {
	Convey("Given a driver already running", t, func() {
		d := New(simConfig())
		So(d.Start(), ShouldBeNil)
		defer d.Stop()

		Convey("a second Start is a no-op", func() {
			So(d.Start(), ShouldBeNil)
			So(d.State(), ShouldEqual, Running)
		})
	})
}

func TestDriverUnknownJointState(t *testing.T) {
	Convey("Given a fresh driver", t, func() {
		d := New(simConfig())

		Convey("GetJointState reports an error for an unrecognised name", func() {
			_, err := d.GetJointState("wheel_middle")
			So(err, ShouldNotBeNil)
		})

		Convey("known joints are always present", func() {
			states := d.JointStates()
			names := []string{states[0].Name, states[1].Name}
			So(names, ShouldContain, "wheel_left")
			So(names, ShouldContain, "wheel_right")
		})
	})
}

func TestDriverProtocolVersionGate(t *testing.T) {
	Convey("Given a driver configured with an incompatible protocol version", t, func() {
		cfg := simConfig()
		cfg.ProtocolVersion = "1.0.0"
		d := New(cfg)

		Convey("versionOK is false", func() {
			So(d.versionOK, ShouldBeFalse)
		})
	})
}

func TestDriverSimulationEmitsNoSensorData(t *testing.T) {
	Convey("Given a running driver with a sensor_data subscriber", t, func() {
		d := New(simConfig())
		received := make(chan struct{}, 1)
		d.Bus().Subscribe(observer.ChannelSensorData, func(observer.Event) {
			select {
			case received <- struct{}{}:
			default:
			}
		})

		So(d.Start(), ShouldBeNil)
		defer d.Stop()

		Convey("simulation mode never emits, since there is no wire traffic to decode", func() {
			select {
			case <-received:
				t.Fatal("unexpected emission in simulation mode")
			case <-time.After(150 * time.Millisecond):
			}
		})
	})
}

func TestDriverJointsDisabledWithoutConnection(t *testing.T) {
	Convey("Given a running driver in simulation, which never opens a port", t, func() {
		d := New(simConfig())
		So(d.Start(), ShouldBeNil)
		defer d.Stop()

		Convey("joints report disabled despite is_running, since is_connected is false", func() {
			for _, js := range d.JointStates() {
				So(js.Enabled, ShouldBeFalse)
			}
		})
	})
}

func TestDriverIntegrationOverFakePort(t *testing.T) {
	Convey("Given a driver wired to a fake port carrying an IR record then a default record", t, func() {
		fp := newFakePort()
		cfg := simConfig()
		cfg.Simulation = false
		cfg.DevicePort = "/dev/fake"
		d := New(cfg, WithPort(fp))

		var mu sync.Mutex
		var order []string
		record := func(name string) { mu.Lock(); order = append(order, name); mu.Unlock() }

		d.Bus().Subscribe(observer.ChannelIR, func(observer.Event) { record("ir") })
		d.Bus().Subscribe(observer.ChannelSensorData, func(observer.Event) { record("default") })
		d.Bus().Subscribe(observer.ChannelJointState, func(observer.Event) { record("joint_state") })

		So(d.Start(), ShouldBeNil)
		So(d.isConnected(), ShouldBeTrue)

		payload := append([]byte{byte(protocol.HeaderIR), 2, 0x11, 0x22}, defaultSubRecord()...)
		fp.pushFrame(frameBytes(payload))

		Convey("default and its derived joint_state fire before ir, matching ascending header-id order, and a write-back frame follows", func() {
			ok := waitUntil(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(order) >= 3
			}, time.Second)
			So(ok, ShouldBeTrue)

			mu.Lock()
			got := append([]string(nil), order...)
			mu.Unlock()
			So(got, ShouldResemble, []string{"default", "joint_state", "ir"})

			So(waitUntil(func() bool { return fp.writeCount() > 0 }, time.Second), ShouldBeTrue)
			So(d.GetIRData().LeftSignal, ShouldEqual, byte(0x11))
		})

		d.Stop()
	})
}

func TestDriverSendCommandUpdatesMotionAndWritesFrame(t *testing.T) {
	Convey("Given a driver wired to a fake port", t, func() {
		fp := newFakePort()
		cfg := simConfig()
		cfg.Simulation = false
		cfg.DevicePort = "/dev/fake"
		d := New(cfg, WithPort(fp))
		So(d.Start(), ShouldBeNil)
		defer d.Stop()

		Convey("SendCommand with a Motion writes a frame and updates the periodic write-back state", func() {
			err := d.SendCommand(Motion{Speed: 200, Radius: 50})
			So(err, ShouldBeNil)
			So(d.cmd.Current(), ShouldResemble, Motion{Speed: 200, Radius: 50})
			So(waitUntil(func() bool { return fp.writeCount() > 0 }, time.Second), ShouldBeTrue)
		})
	})
}

func TestDriverSendCommandInSimulationSkipsThePort(t *testing.T) {
	Convey("Given a driver running in simulation", t, func() {
		d := New(simConfig())
		So(d.Start(), ShouldBeNil)
		defer d.Stop()

		Convey("SendCommand still updates state but performs no I/O", func() {
			err := d.SendCommand(Motion{Speed: 10, Radius: 0})
			So(err, ShouldBeNil)
			So(d.cmd.Current(), ShouldResemble, Motion{Speed: 10, Radius: 0})
		})
	})
}

func TestDriverVersionMismatchDrainsWithoutDecoding(t *testing.T) {
	Convey("Given a driver configured with an incompatible protocol version, wired to a fake port", t, func() {
		fp := newFakePort()
		cfg := simConfig()
		cfg.Simulation = false
		cfg.DevicePort = "/dev/fake"
		cfg.ProtocolVersion = "1.0.0"
		d := New(cfg, WithPort(fp))

		received := make(chan struct{}, 1)
		d.Bus().Subscribe(observer.ChannelSensorData, func(observer.Event) {
			select {
			case received <- struct{}{}:
			default:
			}
		})

		So(d.Start(), ShouldBeNil)
		fp.pushFrame(frameBytes(defaultSubRecord()))

		Convey("the frame is drained but never decoded or emitted", func() {
			select {
			case <-received:
				t.Fatal("unexpected emission with an incompatible protocol version")
			case <-time.After(150 * time.Millisecond):
			}
			So(d.GetSensorData(), ShouldResemble, protocol.DefaultData{})
		})

		d.Stop()
	})
}
