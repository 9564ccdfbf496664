// Package ipmifru implements the FRU (Field Replaceable Unit) inventory
// access engine of an IPMI management stack: chunked reads with capability
// back-off, decoder dispatch, and coalesced chunked writes with bounded
// device-busy retry, over a pluggable transport.
package ipmifru

import (
	"fmt"
	"sync/atomic"

	"github.com/ehrlich-b/ipmifru/internal/config"
	"github.com/ehrlich-b/ipmifru/internal/logging"
	"github.com/ehrlich-b/ipmifru/internal/transport"
)

// Engine is the host-facing entry point: allocators, write, destroy,
// iterate, matching the teacher's construct-then-hand-back-a-handle shape
// (backend.go's CreateAndServe/Device pairing).
type Engine struct {
	transportDevice transport.Device
	domain          *Domain
	log             *logging.Logger
	observer        Observer
	tuning          config.Tuning

	nameSeq atomic.Uint64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's logger (default logging.Default()).
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver overrides the engine's metrics observer (default NoOpObserver).
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithTuning overrides the engine's tuning parameters (default config.Default()).
func WithTuning(t config.Tuning) Option {
	return func(e *Engine) { e.tuning = t }
}

// NewEngine creates an Engine bound to one transport device and one
// per-domain FRU registry.
func NewEngine(device transport.Device, domain *Domain, opts ...Option) *Engine {
	e := &Engine{
		transportDevice: device,
		domain:          domain,
		log:             logging.Default(),
		observer:        NoOpObserver{},
		tuning:          config.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) device() transport.Device { return e.transportDevice }
func (e *Engine) logger() *logging.Logger  { return e.log }
func (e *Engine) metrics() Observer        { return e.observer }

// Domain returns the Engine's bound per-domain registry.
func (e *Engine) Domain() *Domain { return e.domain }

func (e *Engine) nextName() string {
	n := e.nameSeq.Add(1)
	return fmt.Sprintf("%s.%d", e.domain.id, n)
}

func (e *Engine) newFRU(addr Address, cb readCallback) *FRU {
	return &FRU{
		name:      e.nextName(),
		diagName:  fmt.Sprintf("fru[dev=%d]", addr.DeviceID),
		addr:      addr,
		domain:    e.domain,
		refcount:  2, // one for the caller, one for the outstanding read
		inUse:     true,
		fetchSize: e.tuning.InitialFetchSize,
		readCB:    cb,
		engine:    e,
	}
}

// Alloc allocates a tracked FRU with a plain single callback, inserts it
// into the registry, and begins the read immediately.
func (e *Engine) Alloc(addr Address, cb ReadCompletion) *FRU {
	fru := e.newFRU(addr, readCallback{plain: cb})
	e.domain.insert(fru)
	e.startRead(fru)
	return fru
}

// DomainAlloc allocates a tracked FRU with the domain-aware callback
// flavor.
func (e *Engine) DomainAlloc(addr Address, cb DomainReadCompletion) *FRU {
	fru := e.newFRU(addr, readCallback{domain: cb})
	e.domain.insert(fru)
	e.startRead(fru)
	return fru
}

// AllocNoTrack allocates an untracked FRU (not inserted into the
// registry), with the domain-aware callback flavor and a caller-supplied
// initial fetch size. Pass 0 for initialFetchSize to use the engine's
// configured default.
func (e *Engine) AllocNoTrack(addr Address, initialFetchSize int, cb DomainReadCompletion) *FRU {
	fru := e.newFRU(addr, readCallback{domain: cb})
	if initialFetchSize != 0 {
		fru.fetchSize = initialFetchSize
	}
	e.startRead(fru)
	return fru
}

// AllocPhysical always fails: physical (non-logical) FRU access is not
// implemented (spec.md §1 Non-goals).
func (e *Engine) AllocPhysical(addr Address, cb ReadCompletion) (*FRU, error) {
	return nil, NewError("alloc_physical", ErrCodeNotImplemented, "physical FRU access is not implemented")
}

// Destroy removes a tracked FRU from the registry and marks it deleted.
// handler is invoked exactly once, after the FRU's last reference is
// dropped. Destroying an untracked FRU via this API fails with
// ErrCodePermissionDenied.
func (e *Engine) Destroy(fru *FRU, handler DestroyHandler) error {
	return e.destroyCommon(fru, handler, true)
}

// DestroyInternal marks an untracked FRU deleted without touching the
// registry. Destroying a tracked FRU via this API fails with
// ErrCodePermissionDenied.
func (e *Engine) DestroyInternal(fru *FRU, handler DestroyHandler) error {
	return e.destroyCommon(fru, handler, false)
}

// destroyCommon implements both Destroy and DestroyInternal. Per spec.md
// §5's final-destroy protocol, the per-FRU lock is dropped before the
// registry is touched (lock ordering) and re-taken afterward; each
// critical section has exactly one deferred unlock, resolving the
// untracked-destroy double-unlock hazard noted in §9.
func (e *Engine) destroyCommon(fru *FRU, handler DestroyHandler, tracked bool) error {
	var wasTracked bool
	err := func() error {
		fru.mu.Lock()
		defer fru.mu.Unlock()
		if tracked && !fru.inFRUList {
			return NewFRUError("destroy", fru.name, ErrCodePermissionDenied, "fru is not tracked by the registry")
		}
		if !tracked && fru.inFRUList {
			return NewFRUError("destroy_internal", fru.name, ErrCodePermissionDenied, "fru is tracked; use Destroy")
		}
		fru.destroyHandler = handler
		fru.deleted = true
		wasTracked = fru.inFRUList
		return nil
	}()
	if err != nil {
		return err
	}

	if wasTracked {
		e.domain.remove(fru)
	}

	zero := func() bool {
		fru.mu.Lock()
		defer fru.mu.Unlock()
		if wasTracked {
			fru.inFRUList = false
		}
		return fru.unref()
	}()
	if zero {
		fru.finalize()
	}
	return nil
}

// Iterate visits every FRU present in the engine's registry at call time,
// using the prefunc snapshot pattern (spec.md §4.A).
func (e *Engine) Iterate(handler func(*FRU)) {
	e.domain.iterate(handler)
}

// InitDecoderRegistry and ShutdownDecoderRegistry bracket the process-wide
// decoder registry's lifetime, per spec.md §6 "Process init/shutdown hooks
// manage the decoder registry lifetime."
func InitDecoderRegistry() {
	resetDecoders()
}

func ShutdownDecoderRegistry() {
	resetDecoders()
}
