package ipmifru

import (
	"testing"
	"time"

	"github.com/ehrlich-b/ipmifru/internal/config"
)

// scriptedDecoder lets each test supply its own Write hook while always
// accepting the buffer, so write-path tests can control exactly which
// update records get pushed without depending on a real format decoder.
type scriptedDecoder struct {
	writeFn func(fru *FRU) error
}

func (d *scriptedDecoder) Decode(fru *FRU) (any, DecoderOps, bool) {
	return nil, d, true
}
func (d *scriptedDecoder) Write(fru *FRU) error {
	if d.writeFn != nil {
		return d.writeFn(fru)
	}
	return nil
}
func (d *scriptedDecoder) WriteComplete(fru *FRU) {}
func (d *scriptedDecoder) CleanupRecs(fru *FRU)   {}

func withScriptedDecoder(t *testing.T, writeFn func(fru *FRU) error) *scriptedDecoder {
	t.Helper()
	d := &scriptedDecoder{writeFn: writeFn}
	RegisterDecoder(d)
	t.Cleanup(func() { DeregisterDecoder(d) })
	return d
}

func writeSync(t *testing.T, engine *Engine, fru *FRU) error {
	t.Helper()
	done := make(chan error, 1)
	if err := engine.Write(fru, func(f *FRU, err error) { done <- err }); err != nil {
		t.Fatalf("Write rejected: %v", err)
	}
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("write did not complete")
		return nil
	}
}

// Scenario W1 — device-busy retry: the device rejects the write at the
// dirtied offset twice with 0x81 before accepting it; the engine must retry
// with the exact same saved command rather than failing.
func TestWriteScenarioW1BusyRetry(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(4, 4)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40, BusyRetries: 2, BusyOffset: 4})
	domain := NewDomain("w1")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}

	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.WriteCalls(); got != 3 {
		t.Fatalf("WriteCalls = %d, want 3 (2 busy + 1 success)", got)
	}
	if fru.retryCount != 2 {
		t.Fatalf("retryCount = %d, want 2", fru.retryCount)
	}
}

// Scenario W1b — retries are bounded: a device that never stops returning
// busy must fail once the retry ceiling is exceeded, rather than spin
// forever.
func TestWriteScenarioW1RetryCeiling(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(0, 4)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40, BusyRetries: 1000, BusyOffset: 0})
	domain := NewDomain("w1b")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}

	err = writeSync(t, engine, fru)
	if !IsCode(err, ErrCodeIPMI) {
		t.Fatalf("err = %v, want ErrCodeIPMI after exceeding retry ceiling", err)
	}
}

// A configured MaxWriteRetries lower than the protocol ceiling must
// actually bound retries: WithTuning is not decorative.
func TestWriteHonorsConfiguredRetryCeiling(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(0, 4)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40, BusyRetries: 1000, BusyOffset: 0})
	domain := NewDomain("w1c")
	tuning := config.Default()
	tuning.MaxWriteRetries = 2
	engine := NewEngine(dev, domain, WithTuning(tuning))

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}

	err = writeSync(t, engine, fru)
	if !IsCode(err, ErrCodeIPMI) {
		t.Fatalf("err = %v, want ErrCodeIPMI after exceeding configured retry ceiling", err)
	}
	// 1 initial attempt + 2 retries = 3 write calls, then fail.
	if got := dev.WriteCalls(); got != 3 {
		t.Fatalf("WriteCalls = %d, want 3 (bounded by the configured ceiling of 2 retries)", got)
	}
}

// Scenario W2 — coalescing: adjacent update records merge into a single
// write command; non-adjacent records stay separate.
func TestWriteScenarioW2CoalescesAdjacentRecords(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(0, 8)
		fru.MarkDirty(8, 4)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40})
	domain := NewDomain("w2a")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}
	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.WriteCalls(); got != 1 {
		t.Fatalf("WriteCalls = %d, want 1 (records should coalesce)", got)
	}
}

func TestWriteScenarioW2KeepsNonAdjacentRecordsSeparate(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(0, 4)
		fru.MarkDirty(16, 4)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40})
	domain := NewDomain("w2b")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}
	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.WriteCalls(); got != 2 {
		t.Fatalf("WriteCalls = %d, want 2 (non-adjacent records)", got)
	}
}

// Scenario W2c — a run longer than the 16-byte payload cap splits into
// multiple write commands.
func TestWriteScenarioW2SplitsOversizedRun(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(0, 20)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40})
	domain := NewDomain("w2c")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}
	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.WriteCalls(); got != 2 {
		t.Fatalf("WriteCalls = %d, want 2 (20 bytes split at the 16-byte cap)", got)
	}
}

// Round-trip law: a write that leaves the update-record queue empty issues
// no device traffic at all.
func TestWriteRoundTripLawNoChangeNoTraffic(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error { return nil })

	dev := NewSimulated(SimulatedConfig{Size: 40})
	domain := NewDomain("rtl1")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}
	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.WriteCalls(); got != 0 {
		t.Fatalf("WriteCalls = %d, want 0 for an unchanged buffer", got)
	}
}

// Round-trip law: a single changed byte produces exactly one length-1
// command that lands at the right offset.
func TestWriteRoundTripLawSingleByteDiff(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		buf := fru.Data()
		buf[7] = 0x42
		fru.MarkDirty(7, 1)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40})
	domain := NewDomain("rtl2")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}
	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.WriteCalls(); got != 1 {
		t.Fatalf("WriteCalls = %d, want 1", got)
	}
	if got := dev.Data()[7]; got != 0x42 {
		t.Fatalf("device byte 7 = %#x, want 0x42", got)
	}
}

// A write is never cancelled by deletion: completeWrite must run to
// completion and invoke the callback even if the FRU was marked deleted
// mid-write.
func TestWriteNotCancelledByDeletion(t *testing.T) {
	withScriptedDecoder(t, func(fru *FRU) error {
		fru.MarkDirty(0, 4)
		return nil
	})

	dev := NewSimulated(SimulatedConfig{Size: 40})
	domain := NewDomain("wnocancel")
	engine := NewEngine(dev, domain)

	fru, err := allocSync(t, engine, Address{DeviceID: 1, IsLogical: true})
	if err != nil {
		t.Fatalf("setup read failed: %v", err)
	}

	fru.mu.Lock()
	fru.deleted = true
	fru.mu.Unlock()

	if err := writeSync(t, engine, fru); err != nil {
		t.Fatalf("write should not fail due to deletion: %v", err)
	}
	if got := dev.WriteCalls(); got != 1 {
		t.Fatalf("WriteCalls = %d, want 1", got)
	}
}
