package raw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/ipmifru"
)

func writeSync(t *testing.T, engine *ipmifru.Engine, fru *ipmifru.FRU) error {
	t.Helper()
	done := make(chan error, 1)
	require.NoError(t, engine.Write(fru, func(_ *ipmifru.FRU, err error) { done <- err }))
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("write did not complete")
		return nil
	}
}

func allocSync(t *testing.T, engine *ipmifru.Engine, addr ipmifru.Address) *ipmifru.FRU {
	t.Helper()
	done := make(chan error, 1)
	fru := engine.Alloc(addr, func(_ *ipmifru.FRU, err error) { done <- err })
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not complete")
	}
	return fru
}

// Round-trip law: an unmutated decode produces no dirty regions and no
// device traffic.
func TestRawDecoderRoundTripLawNoMutationNoTraffic(t *testing.T) {
	ipmifru.InitDecoderRegistry()
	defer ipmifru.ShutdownDecoderRegistry()

	decoder := New()
	ipmifru.RegisterDecoder(decoder)
	defer ipmifru.DeregisterDecoder(decoder)

	dev := ipmifru.NewSimulated(ipmifru.SimulatedConfig{Size: 32})
	domain := ipmifru.NewDomain("raw-rtl1")
	engine := ipmifru.NewEngine(dev, domain)

	fru := allocSync(t, engine, ipmifru.Address{DeviceID: 1, IsLogical: true})
	require.NoError(t, writeSync(t, engine, fru))
	require.Zero(t, dev.WriteCalls())
}

// A single mutated byte flushes as exactly one write command landing at the
// mutated offset, and a subsequent unmutated write is a no-op (the
// committed snapshot caught up via WriteComplete).
func TestRawDecoderMutateThenWriteFlushesSingleByte(t *testing.T) {
	ipmifru.InitDecoderRegistry()
	defer ipmifru.ShutdownDecoderRegistry()

	decoder := New()
	ipmifru.RegisterDecoder(decoder)
	defer ipmifru.DeregisterDecoder(decoder)

	dev := ipmifru.NewSimulated(ipmifru.SimulatedConfig{Size: 32})
	domain := ipmifru.NewDomain("raw-rtl2")
	engine := ipmifru.NewEngine(dev, domain)

	fru := allocSync(t, engine, ipmifru.Address{DeviceID: 1, IsLogical: true})

	decoder.Mutate(fru, 5, []byte{0x99})
	require.NoError(t, writeSync(t, engine, fru))
	require.Equal(t, 1, dev.WriteCalls())
	require.Equal(t, byte(0x99), dev.Data()[5])

	// Nothing changed since the last flush: a second write issues no
	// device traffic.
	require.NoError(t, writeSync(t, engine, fru))
	require.Equal(t, 1, dev.WriteCalls())
}

// Two mutations in the same offset range before a single write coalesce
// into one command.
func TestRawDecoderCoalescesAdjacentMutations(t *testing.T) {
	ipmifru.InitDecoderRegistry()
	defer ipmifru.ShutdownDecoderRegistry()

	decoder := New()
	ipmifru.RegisterDecoder(decoder)
	defer ipmifru.DeregisterDecoder(decoder)

	dev := ipmifru.NewSimulated(ipmifru.SimulatedConfig{Size: 32})
	domain := ipmifru.NewDomain("raw-rtl3")
	engine := ipmifru.NewEngine(dev, domain)

	fru := allocSync(t, engine, ipmifru.Address{DeviceID: 1, IsLogical: true})

	decoder.Mutate(fru, 0, []byte{1, 2})
	decoder.Mutate(fru, 2, []byte{3, 4})
	require.NoError(t, writeSync(t, engine, fru))
	require.Equal(t, 1, dev.WriteCalls())
	require.Equal(t, []byte{1, 2, 3, 4}, dev.Data()[0:4])
}
