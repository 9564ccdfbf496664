package ipmifru

import "github.com/ehrlich-b/ipmifru/internal/transport"

// SimulatedConfig and Simulated re-export the internal simulated transport
// so external test code (and this package's own tests) can drive every
// Testable Property scenario from spec.md §8 without reaching into
// internal/transport directly — the same role the teacher's testing.go
// plays for MockBackend.
type SimulatedConfig = transport.SimulatedConfig
type Simulated = transport.Simulated

// NewSimulated creates a fake IPMI FRU device with the given behavior
// knobs.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	return transport.NewSimulated(cfg)
}
