package ipmifru

import (
	"time"

	"github.com/ehrlich-b/ipmifru/internal/bufpool"
	"github.com/ehrlich-b/ipmifru/internal/ipmi"
	"github.com/ehrlich-b/ipmifru/internal/transport"
)

// startRead begins the two-phase chunked fetch (spec.md §4.D) for a freshly
// allocated FRU. fru.inUse and fru.refcount are already set by the
// allocator; this issues the first transport call and returns immediately
// — the rest of the fetch runs from response callbacks.
func (e *Engine) startRead(fru *FRU) {
	e.device().SubmitReadAreaInfo(fru.addr.DeviceID, func(res transport.AreaInfoResult) {
		e.handleAreaInfo(fru, res)
	})
}

func (e *Engine) handleAreaInfo(fru *FRU, res transport.AreaInfoResult) {
	start := time.Now()
	fru.mu.Lock()

	if fru.deleted {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeCancelled, "fru deleted before area info response"))
		return
	}

	if res.Err != nil {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeInvalidArgument, res.Err.Error()))
		return
	}
	if res.CompletionCode != 0 {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewIPMIError("read", fru.name, res.CompletionCode))
		return
	}
	if res.Size < ipmi.MinFRUHeaderSize {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeMessageSize, "declared size below minimum FRU header"))
		return
	}

	buf, allocErr := e.allocateBuffer(int(res.Size))
	if allocErr != nil {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeOutOfMemory, allocErr.Error()))
		return
	}

	fru.dataLen = int(res.Size)
	fru.data = buf
	fru.currPos = 0
	fru.accessByWords = res.WordAccess
	if override, ok := e.tuning.WordAccessOverrides[fru.addr.DeviceID]; ok {
		fru.accessByWords = override
	}

	fru.mu.Unlock()
	e.issueRead(fru, start)
}

// allocateBuffer wraps bufpool.Get with a recover, honoring the (otherwise
// unreachable in Go) "allocation failure -> out of memory" path from §4.D.
func (e *Engine) allocateBuffer(size int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError("alloc_buffer", ErrCodeOutOfMemory, "buffer allocation failed")
		}
	}()
	return bufpool.Get(size), nil
}

// issueRead sends the next Read FRU Data command at the FRU's current
// cursor. Per §5, the lock is released before the transport call.
func (e *Engine) issueRead(fru *FRU, start time.Time) {
	fru.mu.Lock()
	if fru.deleted {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeCancelled, "fru deleted before data read"))
		return
	}
	shift := uint(0)
	if fru.accessByWords {
		shift = 1
	}
	remaining := fru.dataLen - fru.currPos
	count := fru.fetchSize
	if count > remaining {
		count = remaining
	}
	offset := uint16(fru.currPos >> shift)
	devCount := uint16(count >> shift)
	fru.mu.Unlock()

	e.device().SubmitReadData(fru.addr.DeviceID, offset, devCount, func(res transport.ReadResult) {
		e.handleReadData(fru, start, res)
	})
}

func (e *Engine) handleReadData(fru *FRU, start time.Time, res transport.ReadResult) {
	fru.mu.Lock()

	if fru.deleted {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeCancelled, "fru deleted during data read"))
		return
	}

	if res.Err != nil {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeInvalidArgument, res.Err.Error()))
		return
	}

	if res.CompletionCode != 0 {
		if ipmi.BackOffCodes[res.CompletionCode] && fru.fetchSize > ipmi.MinReadChunk {
			fru.fetchSize -= ipmi.BackOffStep
			fru.mu.Unlock()
			e.metrics().ObserveBackOff()
			e.issueRead(fru, start)
			return
		}
		if fru.currPos >= ipmi.MinFRUHeaderSize {
			fru.dataLen = fru.currPos
			fru.mu.Unlock()
			e.completeRead(fru, start, nil)
			return
		}
		fru.mu.Unlock()
		e.completeRead(fru, start, NewIPMIError("read", fru.name, res.CompletionCode))
		return
	}

	shift := uint(0)
	if fru.accessByWords {
		shift = 1
	}
	count := int(res.Count) << shift
	if res.Count == 0 {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeInvalidArgument, "device declared zero-length read"))
		return
	}
	if int(res.Count) > len(res.Data) {
		fru.mu.Unlock()
		e.completeRead(fru, start, NewFRUError("read", fru.name, ErrCodeInvalidArgument, "declared count exceeds payload received"))
		return
	}

	end := fru.currPos + count
	if end > fru.dataLen {
		end = fru.dataLen
		count = end - fru.currPos
	}
	copy(fru.data[fru.currPos:end], res.Data[:res.Count])
	fru.currPos = end

	done := fru.currPos >= fru.dataLen
	fru.mu.Unlock()

	if done {
		e.completeRead(fru, start, nil)
		return
	}
	e.issueRead(fru, start)
}

// completeRead runs the single completion routine shared by every
// read-ending path: dispatch the decoder on success, free the buffer on
// any fatal condition, release the lock, invoke the user callback, and
// drop the read's reference.
func (e *Engine) completeRead(fru *FRU, start time.Time, err error) {
	if err == nil {
		if derr := dispatch(fru); derr != nil {
			err = derr
			e.metrics().ObserveDecodeFailure()
		}
	}

	fru.mu.Lock()
	if IsCode(err, ErrCodeCancelled) {
		e.metrics().ObserveCancellation()
	}
	if err != nil && fru.data != nil {
		bufpool.Put(fru.data)
		fru.data = nil
	}
	fru.inUse = false
	domain := fru.domain
	cb := fru.readCB
	byteCount := uint64(fru.currPos)
	fru.mu.Unlock()

	e.metrics().ObserveRead(byteCount, uint64(time.Since(start)), err == nil)
	cb.invoke(domain, fru, err)

	fru.mu.Lock()
	zero := fru.unref()
	fru.mu.Unlock()
	if zero {
		fru.finalize()
	}
}
