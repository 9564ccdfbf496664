package transport

import (
	"sync"

	"github.com/ehrlich-b/ipmifru/internal/ipmi"
)

// SimulatedConfig describes one simulated FRU device's behavior. It is
// deliberately knob-heavy so every Testable Property scenario (spec.md §8)
// can be driven from a single harness, the same role backend/mem.go plays
// for the teacher's Backend interface.
type SimulatedConfig struct {
	// Size is the area size the device advertises.
	Size uint16
	// WordAccess makes the area-info response advertise 16-bit word
	// addressing. Read and write offsets and counts are still served as
	// byte values; the device does not scale them by two.
	WordAccess bool

	// MaxChunk caps how many bytes the device will actually return from a
	// single Read FRU Data, regardless of what was requested — models
	// "some devices lie about supported sizes".
	MaxChunk int

	// BackOffOnFirstReadAbove, if > 0, makes the first read whose
	// requested count exceeds this value fail with BackOffCompletionCode
	// instead of being served; subsequent reads at a smaller count
	// succeed. Models Scenario R2.
	BackOffOnFirstReadAbove int
	BackOffCompletionCode   byte

	// TruncateAtOffset, if > 0, makes any read at or after this offset
	// fail with TruncateCompletionCode instead of being served. Models
	// Scenario R3 (tolerant truncation), valid only once curr_pos >= 8.
	TruncateAtOffset       int
	TruncateCompletionCode byte

	// BusyRetries is how many times a Write FRU Data at BusyOffset
	// returns device-busy (0x81) before succeeding. Models Scenario W1.
	BusyRetries int
	BusyOffset  uint16

	// ShortWriteBytes, if > 0, makes every successful write ack this many
	// fewer bytes than were sent (clamped to 0). Models the short-write
	// warning path; the engine must not replay.
	ShortWriteBytes int
}

// Simulated is an in-memory fake IPMI FRU device. It implements Device
// directly (no real I/O), mirroring the teacher's MockBackend / in-process
// backend.Memory duality: a concrete, bundled stand-in for an interface the
// real system would satisfy over hardware.
type Simulated struct {
	mu     sync.Mutex
	cfg    SimulatedConfig
	data   []byte
	closed bool

	readCalls    int
	writeCalls   int
	busySeen     int
	backOffSeen  bool
	truncateSeen bool
}

// NewSimulated creates a fake device with size bytes of zeroed storage and
// the given behavior knobs.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	return &Simulated{
		cfg:  cfg,
		data: make([]byte, cfg.Size),
	}
}

// Data returns a copy of the device's current backing storage, for test
// assertions.
func (s *Simulated) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// Seed overwrites the device's backing storage (test setup helper).
func (s *Simulated) Seed(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.data, data)
}

// ReadCalls and WriteCalls report how many Read/Write FRU Data commands
// were actually issued, for asserting chunking behavior (Scenario R1/R2).
func (s *Simulated) ReadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCalls
}

func (s *Simulated) WriteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCalls
}

// SubmitReadAreaInfo implements Device.
func (s *Simulated) SubmitReadAreaInfo(_ uint8, cb func(AreaInfoResult)) {
	s.mu.Lock()
	closed := s.closed
	size, word := s.cfg.Size, s.cfg.WordAccess
	s.mu.Unlock()
	if closed {
		go cb(AreaInfoResult{Err: ErrClosed})
		return
	}
	go cb(AreaInfoResult{CompletionCode: ipmi.CCOk, Size: size, WordAccess: word})
}

// SubmitReadData implements Device.
func (s *Simulated) SubmitReadData(_ uint8, offset, count uint16, cb func(ReadResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readCalls++

	if s.closed {
		go cb(ReadResult{Err: ErrClosed})
		return
	}

	if s.cfg.TruncateAtOffset > 0 && int(offset) >= s.cfg.TruncateAtOffset && !s.truncateSeen {
		s.truncateSeen = true
		go cb(ReadResult{CompletionCode: s.cfg.TruncateCompletionCode})
		return
	}

	if s.cfg.BackOffOnFirstReadAbove > 0 && int(count) > s.cfg.BackOffOnFirstReadAbove && !s.backOffSeen {
		s.backOffSeen = true
		go cb(ReadResult{CompletionCode: s.cfg.BackOffCompletionCode})
		return
	}

	n := int(count)
	if s.cfg.MaxChunk > 0 && n > s.cfg.MaxChunk {
		n = s.cfg.MaxChunk
	}
	start := int(offset)
	if start > len(s.data) {
		start = len(s.data)
	}
	end := start + n
	if end > len(s.data) {
		end = len(s.data)
	}
	payload := append([]byte(nil), s.data[start:end]...)
	go cb(ReadResult{CompletionCode: ipmi.CCOk, Count: byte(len(payload)), Data: payload})
}

// SubmitWriteData implements Device.
func (s *Simulated) SubmitWriteData(_ uint8, offset uint16, payload []byte, cb func(WriteResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++

	if s.closed {
		go cb(WriteResult{Err: ErrClosed})
		return
	}

	if offset == s.cfg.BusyOffset && s.busySeen < s.cfg.BusyRetries {
		s.busySeen++
		go cb(WriteResult{CompletionCode: ipmi.CCDeviceBusy})
		return
	}

	start := int(offset)
	end := start + len(payload)
	if end > len(s.data) {
		end = len(s.data)
	}
	if start < end {
		copy(s.data[start:end], payload[:end-start])
	}

	acked := len(payload) - s.cfg.ShortWriteBytes
	if acked < 0 {
		acked = 0
	}
	go cb(WriteResult{CompletionCode: ipmi.CCOk, CountWritten: byte(acked)})
}

// Close implements Device.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Device = (*Simulated)(nil)
