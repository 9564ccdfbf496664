package ipmifru

import "sync"

// DecoderOps is the vtable a Decoder installs on a FRU it has accepted:
// hooks the write engine and final teardown invoke, per spec.md §3/§4.E.
type DecoderOps interface {
	// Write serializes the decoder's current logical state into fru's
	// (freshly allocated) raw buffer and populates the update-record
	// queue with every span that differs from what the device currently
	// holds. Called on the domain thread with fru's lock NOT held; reach
	// the FRU through its self-locking methods (Data, MarkDirty).
	Write(fru *FRU) error

	// WriteComplete runs after a write finishes successfully, so the
	// decoder can clear whatever dirty-tracking state it keeps.
	WriteComplete(fru *FRU)

	// CleanupRecs runs once, during final teardown, to release any
	// decoder-owned resources referenced from the scratch slot.
	CleanupRecs(fru *FRU)
}

// Decoder is a pluggable format recognizer, the capability-interface shape
// the teacher uses for its Backend/Observer pairs (internal/interfaces,
// metrics.go), applied here to format-specific FRU payload interpretation.
type Decoder interface {
	// Decode attempts to interpret fru's raw buffer. ok is false to
	// decline (dispatch tries the next registered decoder); true means
	// this decoder accepts the buffer, and recData/ops are installed on
	// the FRU.
	Decode(fru *FRU) (recData any, ops DecoderOps, ok bool)
}

var (
	decoderMu sync.Mutex
	decoders  []Decoder
)

// RegisterDecoder appends a decoder to the process-wide registry. Decoders
// are tried in registration order.
func RegisterDecoder(d Decoder) {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	decoders = append(decoders, d)
}

// DeregisterDecoder removes a decoder previously registered, matched by
// identity.
func DeregisterDecoder(d Decoder) {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	for i, existing := range decoders {
		if existing == d {
			decoders = append(decoders[:i], decoders[i+1:]...)
			return
		}
	}
}

// resetDecoders clears the registry. Used by process shutdown and by tests
// that need isolation from the process-wide registry.
func resetDecoders() {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	decoders = nil
}

// dispatch tries each registered decoder in order against fru's buffer.
// The first to accept wins; its result is installed on the FRU. Runs with
// fru's lock NOT held — decoders are externally supplied and reach the FRU
// only through its exported, self-locking accessors/mutators — which is
// safe because in_use excludes any concurrent writer for the duration of a
// read.
func dispatch(fru *FRU) error {
	decoderMu.Lock()
	snapshot := make([]Decoder, len(decoders))
	copy(snapshot, decoders)
	decoderMu.Unlock()

	for _, d := range snapshot {
		recData, ops, ok := d.Decode(fru)
		if !ok {
			continue
		}
		fru.setDecoderResult(recData, ops)
		return nil
	}
	return NewFRUError("decode", fru.Name(), ErrCodeUnsupportedFormat, "no decoder accepted buffer")
}
