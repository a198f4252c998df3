package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// HeaderID identifies a sub-record type within a payload block.
type HeaderID byte

const (
	HeaderDefault HeaderID = 0x01
	HeaderIR      HeaderID = 0x02
	HeaderDockIR  HeaderID = 0x03
	HeaderInertia HeaderID = 0x04
	HeaderCliff   HeaderID = 0x05
	HeaderCurrent HeaderID = 0x06
	HeaderMagnet  HeaderID = 0x07
	HeaderTime    HeaderID = 0x08
	HeaderHW      HeaderID = 0x0A
	HeaderFW      HeaderID = 0x0B
	HeaderStGyro  HeaderID = 0x0C
	HeaderEEPROM  HeaderID = 0x0D
	HeaderGPInput HeaderID = 0x0E
)

// subLen is the fixed DATA length every decoder for a given header id requires.
var subLen = map[HeaderID]byte{
	HeaderDefault: 15,
	HeaderIR:      2,
	HeaderDockIR:  3,
	HeaderInertia: 7,
	HeaderCliff:   6,
	HeaderCurrent: 2,
	HeaderMagnet:  1,
	HeaderTime:    2,
	HeaderHW:      4,
	HeaderFW:      4,
	HeaderStGyro:  6,
	HeaderEEPROM:  8,
	HeaderGPInput: 8,
}

// DefaultData is the core sensor sub-record carried at header 0x01.
type DefaultData struct {
	Timestamp    uint16
	Bumper       byte
	WheelDrop    byte
	Cliff        byte
	LeftEncoder  uint16
	RightEncoder uint16
	LeftPWM      int8
	RightPWM     int8
	Buttons      byte
	Charger      byte
	Battery      byte
	OverCurrent  byte
}

type IRData struct {
	LeftSignal, RightSignal byte
}

type DockIRData struct {
	Right, Central, Left byte
}

type InertiaData struct {
	Angle, AngleRate int16
	AccX, AccY, AccZ int8
}

type CliffData struct {
	BottomLeft, BottomFront, BottomRight uint16
}

type CurrentData struct {
	Left, Right byte
}

type MagnetData struct {
	Bitfield byte
}

type TimeData struct {
	Stamp uint16
}

type HWData struct {
	Version uint32
}

type FWData struct {
	Version uint32
}

type StGyroData struct {
	X, Y, Z int16
}

type EEPROMData struct {
	Raw [8]byte
}

type GPInputData struct {
	Digital uint16
	Analog  [3]uint16
}

// The decode* functions assume the caller (frame dispatch) has already
// validated data against subLen[id]; a length mismatch is rejected before
// any decoder runs, so these never need to report an error of their own.

func decodeDefault(d []byte) DefaultData {
	return DefaultData{
		Timestamp:    Uint16LE(d[0:2]),
		Bumper:       d[2],
		WheelDrop:    d[3],
		Cliff:        d[4],
		LeftEncoder:  Uint16LE(d[5:7]),
		RightEncoder: Uint16LE(d[7:9]),
		LeftPWM:      int8(d[9]),
		RightPWM:     int8(d[10]),
		Buttons:      d[11],
		Charger:      d[12],
		Battery:      d[13],
		OverCurrent:  d[14],
	}
}

func decodeIR(d []byte) IRData {
	return IRData{LeftSignal: d[0], RightSignal: d[1]}
}

func decodeDockIR(d []byte) DockIRData {
	return DockIRData{Right: d[0], Central: d[1], Left: d[2]}
}

func decodeInertia(d []byte) InertiaData {
	return InertiaData{
		Angle:     Int16LE(d[0:2]),
		AngleRate: Int16LE(d[2:4]),
		AccX:      int8(d[4]),
		AccY:      int8(d[5]),
		AccZ:      int8(d[6]),
	}
}

func decodeCliff(d []byte) CliffData {
	return CliffData{
		BottomLeft:  Uint16LE(d[0:2]),
		BottomFront: Uint16LE(d[2:4]),
		BottomRight: Uint16LE(d[4:6]),
	}
}

func decodeCurrent(d []byte) CurrentData {
	return CurrentData{Left: d[0], Right: d[1]}
}

func decodeMagnet(d []byte) MagnetData {
	return MagnetData{Bitfield: d[0]}
}

func decodeTime(d []byte) TimeData {
	return TimeData{Stamp: Uint16LE(d[0:2])}
}

func decodeHW(d []byte) HWData {
	return HWData{Version: Uint32LE(d[0:4])}
}

func decodeFW(d []byte) FWData {
	return FWData{Version: Uint32LE(d[0:4])}
}

func decodeStGyro(d []byte) StGyroData {
	return StGyroData{X: Int16LE(d[0:2]), Y: Int16LE(d[2:4]), Z: Int16LE(d[4:6])}
}

func decodeEEPROM(d []byte) EEPROMData {
	var e EEPROMData
	copy(e.Raw[:], d)
	return e
}

func decodeGPInput(d []byte) GPInputData {
	g := GPInputData{Digital: Uint16LE(d[0:2])}
	for i := 0; i < 3; i++ {
		g.Analog[i] = Uint16LE(d[2+i*2 : 4+i*2])
	}
	return g
}

// RecordPool is the single-writer, multi-reader map from header id to the
// most recently decoded sub-record of that id. All slots start empty;
// readers observe whatever was last written. Every accessor copies out,
// guarded by a mutex, so callers never hold a lock across their own use.
type RecordPool struct {
	mu sync.RWMutex

	def     DefaultData
	ir      IRData
	dockIR  DockIRData
	inertia InertiaData
	cliff   CliffData
	current CurrentData
	magnet  MagnetData
	time    TimeData
	hw      HWData
	fw      FWData
	stGyro  StGyroData
	eeprom  EEPROMData
	gpInput GPInputData
}

func (p *RecordPool) setDefault(v DefaultData) { p.mu.Lock(); p.def = v; p.mu.Unlock() }
func (p *RecordPool) setIR(v IRData)           { p.mu.Lock(); p.ir = v; p.mu.Unlock() }
func (p *RecordPool) setDockIR(v DockIRData)   { p.mu.Lock(); p.dockIR = v; p.mu.Unlock() }
func (p *RecordPool) setInertia(v InertiaData) { p.mu.Lock(); p.inertia = v; p.mu.Unlock() }
func (p *RecordPool) setCliff(v CliffData)     { p.mu.Lock(); p.cliff = v; p.mu.Unlock() }
func (p *RecordPool) setCurrent(v CurrentData) { p.mu.Lock(); p.current = v; p.mu.Unlock() }
func (p *RecordPool) setMagnet(v MagnetData)   { p.mu.Lock(); p.magnet = v; p.mu.Unlock() }
func (p *RecordPool) setTime(v TimeData)       { p.mu.Lock(); p.time = v; p.mu.Unlock() }
func (p *RecordPool) setHW(v HWData)           { p.mu.Lock(); p.hw = v; p.mu.Unlock() }
func (p *RecordPool) setFW(v FWData)           { p.mu.Lock(); p.fw = v; p.mu.Unlock() }
func (p *RecordPool) setStGyro(v StGyroData)   { p.mu.Lock(); p.stGyro = v; p.mu.Unlock() }
func (p *RecordPool) setEEPROM(v EEPROMData)   { p.mu.Lock(); p.eeprom = v; p.mu.Unlock() }
func (p *RecordPool) setGPInput(v GPInputData) { p.mu.Lock(); p.gpInput = v; p.mu.Unlock() }

func (p *RecordPool) Default() DefaultData { p.mu.RLock(); defer p.mu.RUnlock(); return p.def }
func (p *RecordPool) IR() IRData           { p.mu.RLock(); defer p.mu.RUnlock(); return p.ir }
func (p *RecordPool) DockIR() DockIRData   { p.mu.RLock(); defer p.mu.RUnlock(); return p.dockIR }
func (p *RecordPool) Inertia() InertiaData { p.mu.RLock(); defer p.mu.RUnlock(); return p.inertia }
func (p *RecordPool) Cliff() CliffData     { p.mu.RLock(); defer p.mu.RUnlock(); return p.cliff }
func (p *RecordPool) Current() CurrentData { p.mu.RLock(); defer p.mu.RUnlock(); return p.current }
func (p *RecordPool) Magnet() MagnetData   { p.mu.RLock(); defer p.mu.RUnlock(); return p.magnet }
func (p *RecordPool) Time() TimeData       { p.mu.RLock(); defer p.mu.RUnlock(); return p.time }
func (p *RecordPool) HW() HWData           { p.mu.RLock(); defer p.mu.RUnlock(); return p.hw }
func (p *RecordPool) FW() FWData           { p.mu.RLock(); defer p.mu.RUnlock(); return p.fw }
func (p *RecordPool) StGyro() StGyroData   { p.mu.RLock(); defer p.mu.RUnlock(); return p.stGyro }
func (p *RecordPool) EEPROM() EEPROMData   { p.mu.RLock(); defer p.mu.RUnlock(); return p.eeprom }
func (p *RecordPool) GPInput() GPInputData { p.mu.RLock(); defer p.mu.RUnlock(); return p.gpInput }

// store decodes data for id and writes it into the pool. id is assumed to
// already be a recognised header with data of the correct declared length.
func (p *RecordPool) store(id HeaderID, data []byte) error {
	switch id {
	case HeaderDefault:
		p.setDefault(decodeDefault(data))
	case HeaderIR:
		p.setIR(decodeIR(data))
	case HeaderDockIR:
		p.setDockIR(decodeDockIR(data))
	case HeaderInertia:
		p.setInertia(decodeInertia(data))
	case HeaderCliff:
		p.setCliff(decodeCliff(data))
	case HeaderCurrent:
		p.setCurrent(decodeCurrent(data))
	case HeaderMagnet:
		p.setMagnet(decodeMagnet(data))
	case HeaderTime:
		p.setTime(decodeTime(data))
	case HeaderHW:
		p.setHW(decodeHW(data))
	case HeaderFW:
		p.setFW(decodeFW(data))
	case HeaderStGyro:
		p.setStGyro(decodeStGyro(data))
	case HeaderEEPROM:
		p.setEEPROM(decodeEEPROM(data))
	case HeaderGPInput:
		p.setGPInput(decodeGPInput(data))
	default:
		return fmt.Errorf("unrecognised header id 0x%02x", byte(id))
	}
	return nil
}

// SeenSet is the ordered set of header ids present in the most recently
// decoded frame. Iteration order is ascending by header id, which is also
// the order observers are notified in.
type SeenSet struct {
	ids map[HeaderID]struct{}
}

func newSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[HeaderID]struct{})}
}

func (s *SeenSet) insert(id HeaderID) { s.ids[id] = struct{}{} }

// Ordered returns the seen ids sorted ascending.
func (s *SeenSet) Ordered() []HeaderID {
	out := make([]HeaderID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *SeenSet) Len() int { return len(s.ids) }
