package ipmifru

import "sync"

// Address is a FRU's immutable IPMB addressing, drawn from the teacher's
// flat field-group layout in backend.go's Device struct.
type Address struct {
	DeviceID   uint8
	IsLogical  bool
	SlaveAddr  uint8
	LUN        uint8
	PrivateBus uint8
	Channel    uint8
}

// ReadCompletion is the plain single-callback flavor, chosen at Alloc time.
type ReadCompletion func(fru *FRU, err error)

// DomainReadCompletion is the domain-aware callback flavor, chosen at
// DomainAlloc/AllocNoTrack time.
type DomainReadCompletion func(domain *Domain, fru *FRU, err error)

// WriteCallback runs once a write completes or fails fatally.
type WriteCallback func(fru *FRU, err error)

// DestroyHandler runs exactly once, after a destroyed FRU's last reference
// is dropped.
type DestroyHandler func(fru *FRU)

// readCallback is the tagged variant described in spec.md §9 "Callback vs
// iterator": exactly one of the two fields is set, chosen at allocation and
// consumed once at read completion.
type readCallback struct {
	plain  ReadCompletion
	domain DomainReadCompletion
}

func (c readCallback) invoke(domain *Domain, fru *FRU, err error) {
	switch {
	case c.plain != nil:
		c.plain(fru, err)
	case c.domain != nil:
		c.domain(domain, fru, err)
	}
}

// FRU is a reference-counted, lockable handle on one device's inventory
// storage image. Every mutable field below is guarded by mu; callers
// outside this package never see the struct directly, only through Engine
// methods and the accessors in accessors.go.
type FRU struct {
	mu sync.Mutex

	name     string // printable: domain name + numeric suffix
	diagName string // internal diagnostic name

	addr   Address
	domain *Domain // the allocating engine's domain, also for untracked AllocNoTrack objects

	refcount  int
	inUse     bool
	deleted   bool
	inFRUList bool

	fetchSize     int
	accessByWords bool

	data    []byte
	dataLen int
	currPos int

	recData any
	ops     DecoderOps

	updateHead *updateRecord
	updateTail *updateRecord

	lastWriteOffset  int
	lastWritePayload []byte
	retryCount       int

	readCB         readCallback
	writeCB        WriteCallback
	destroyHandler DestroyHandler

	engine *Engine
}

// ref increments the refcount. Caller must hold mu.
func (f *FRU) ref() {
	f.refcount++
}

// unref decrements the refcount and reports whether it reached zero. Caller
// must hold mu; if it returns true, caller is responsible for invoking
// finalize after releasing mu.
func (f *FRU) unref() bool {
	f.refcount--
	if f.refcount < 0 {
		panic("ipmifru: refcount underflow")
	}
	return f.refcount == 0
}

// setDecoderResult installs a decoder's accepted result. Called by
// dispatch with fru's lock not held.
func (f *FRU) setDecoderResult(recData any, ops DecoderOps) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recData = recData
	f.ops = ops
}

// MarkDirty appends a dirty `(offset, length)` span to the update-record
// queue, normalizing it for word-access devices. It is the only way an
// external decoder's Write hook may register bytes for flush; safe to call
// without already holding fru's lock.
func (f *FRU) MarkDirty(offset, length int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushUpdateRecord(offset, length)
}

// finalize releases decoder state, any remaining update records, and the
// raw buffer. Called exactly once, with mu not held (nothing else can
// reach the object by the time refcount hits zero).
func (f *FRU) finalize() {
	if f.ops != nil {
		f.ops.CleanupRecs(f)
	}
	f.updateHead = nil
	f.updateTail = nil
	f.data = nil
	f.recData = nil
	f.ops = nil
	if f.destroyHandler != nil {
		f.destroyHandler(f)
	}
}
