// Package raw is a bundled reference Decoder: it treats a FRU's inventory
// buffer as an opaque byte blob and diffs a pending mutation against the
// last content it knows the device to hold, the same role backend/mem.go
// plays in the teacher as a concrete, bundled implementation of an
// otherwise externally-supplied interface.
package raw

import "github.com/ehrlich-b/ipmifru"

// Decoder accepts every buffer unconditionally — it is the fallback a
// host would register last, after any format-specific decoders.
type Decoder struct{}

// New returns a raw passthrough decoder.
func New() *Decoder { return &Decoder{} }

// state is the decoder-scratch value installed on an accepting FRU.
// committed is what the decoder believes the device currently holds (set by
// Decode, refreshed by WriteComplete); desired is mutated by Mutate ahead
// of the next Write and is never touched by anything else, so the two stay
// independently comparable for diffing.
type state struct {
	committed []byte
	desired   []byte
}

// Decode always accepts, copying the FRU's current buffer as both the
// committed and desired logical state.
func (d *Decoder) Decode(fru *ipmifru.FRU) (any, ipmifru.DecoderOps, bool) {
	data := fru.Data()
	committed := append([]byte(nil), data...)
	desired := append([]byte(nil), data...)
	return &state{committed: committed, desired: desired}, &ops{}, true
}

// ops implements ipmifru.DecoderOps for the raw passthrough decoder.
type ops struct{}

// Write serializes the decoder's desired state into the FRU's fresh
// buffer, then marks every byte range that differs from the committed
// (last-known-device) state. An untouched desired state leaves the
// update-record queue empty, per the round-trip law.
func (o *ops) Write(fru *ipmifru.FRU) error {
	st, ok := fru.RecData().(*state)
	if !ok || st == nil {
		return ipmifru.NewFRUError("write", fru.Name(), ipmifru.ErrCodeInvalidArgument, "raw decoder has no prior snapshot")
	}

	buf := fru.Data()
	copy(buf, st.desired)

	start := -1
	for i := 0; i <= len(st.committed); i++ {
		differs := i < len(st.committed) && i < len(st.desired) && st.desired[i] != st.committed[i]
		if differs && start < 0 {
			start = i
		}
		if !differs && start >= 0 {
			fru.MarkDirty(start, i-start)
			start = -1
		}
	}
	return nil
}

// WriteComplete folds the just-flushed desired state into committed, so the
// next Write diffs against the now-current device state.
func (o *ops) WriteComplete(fru *ipmifru.FRU) {
	st, ok := fru.RecData().(*state)
	if !ok || st == nil {
		return
	}
	st.committed = append(st.committed[:0], st.desired...)
}

// CleanupRecs releases the decoder's scratch state. Nothing to free beyond
// the snapshot slices themselves, which the garbage collector reclaims.
func (o *ops) CleanupRecs(fru *ipmifru.FRU) {}

// Mutate overwrites desired[offset:offset+len(content)] ahead of the next
// Write — the closest thing this bundled decoder offers to the "in-memory
// modification API" spec.md names as out of scope for the engine itself.
func (d *Decoder) Mutate(fru *ipmifru.FRU, offset int, content []byte) {
	st, ok := fru.RecData().(*state)
	if !ok || st == nil {
		return
	}
	if offset+len(content) > len(st.desired) {
		return
	}
	copy(st.desired[offset:], content)
}

var _ ipmifru.Decoder = (*Decoder)(nil)
var _ ipmifru.DecoderOps = (*ops)(nil)
