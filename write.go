package ipmifru

import (
	"time"

	"github.com/ehrlich-b/ipmifru/internal/bufpool"
	"github.com/ehrlich-b/ipmifru/internal/ipmi"
	"github.com/ehrlich-b/ipmifru/internal/transport"
)

// Write requests a flush of the FRU's decoder-supplied dirty regions to
// the device (spec.md §4.E). It gates on in_use, then hands off to the
// "domain thread" — here, a dedicated goroutine — and returns immediately.
func (e *Engine) Write(fru *FRU, cb WriteCallback) error {
	fru.mu.Lock()
	if fru.inUse {
		fru.mu.Unlock()
		return NewFRUError("write", fru.name, ErrCodeBusy, "fru has an operation in flight")
	}
	fru.inUse = true
	fru.writeCB = cb
	fru.ref() // protect the FRU for the duration of the write; writes are never cancelled
	fru.mu.Unlock()

	go e.runWrite(fru)
	return nil
}

// runWrite executes on the simulated domain thread: build the fresh write
// buffer, invoke the decoder, and begin streaming if it left any dirty
// regions behind.
func (e *Engine) runWrite(fru *FRU) {
	start := time.Now()

	fru.mu.Lock()
	oldBuf := fru.data
	fru.data = bufpool.Get(fru.dataLen)
	fru.currPos = 0
	ops := fru.ops
	fru.mu.Unlock()
	if oldBuf != nil {
		bufpool.Put(oldBuf)
	}

	var decodeErr error
	if ops != nil {
		// Runs without fru's lock held: the decoder reaches the FRU only
		// through exported, self-locking accessors/mutators (Data,
		// MarkDirty). Safe because in_use excludes any concurrent reader
		// or second writer for the duration of this write.
		decodeErr = ops.Write(fru)
	} else {
		decodeErr = NewFRUError("write", fru.Name(), ErrCodeUnsupportedFormat, "no decoder installed")
	}

	if decodeErr != nil {
		e.completeWrite(fru, start, decodeErr)
		return
	}

	fru.mu.Lock()
	empty := !fru.hasUpdateRecords()
	fru.mu.Unlock()
	if empty {
		e.completeWrite(fru, start, nil)
		return
	}

	e.streamNextBatch(fru, start)
}

// buildWriteBatch greedily coalesces adjacent update records into one
// command of at most ipmi.MaxWritePayload bytes, per spec.md §4.E. Caller
// must hold fru.mu.
func buildWriteBatch(fru *FRU) (offset int, payload []byte) {
	head := fru.updateHead
	if head == nil {
		return 0, nil
	}
	offset = head.offset
	cursor := head.offset

	for len(payload) < ipmi.MaxWritePayload {
		head = fru.updateHead
		if head == nil || head.offset != cursor {
			break
		}
		remaining := ipmi.MaxWritePayload - len(payload)
		take := head.length
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			break
		}
		payload = append(payload, fru.data[head.offset:head.offset+take]...)
		head.offset += take
		head.length -= take
		cursor += take
		if head.length <= 0 {
			fru.popUpdateRecord()
		}
	}
	return offset, payload
}

// streamNextBatch pops the next coalesced batch off the update-record
// queue and issues it, or completes the write if none remain.
func (e *Engine) streamNextBatch(fru *FRU, start time.Time) {
	fru.mu.Lock()
	offset, payload := buildWriteBatch(fru)
	if payload == nil {
		fru.mu.Unlock()
		e.completeWrite(fru, start, nil)
		return
	}
	fru.lastWriteOffset = offset
	fru.lastWritePayload = payload
	fru.retryCount = 0
	fru.mu.Unlock()

	e.sendBatch(fru, start)
}

// sendBatch issues the FRU's currently saved (offset, payload) command.
// Device-busy retries resend the exact same saved buffer, so this is also
// the retry entry point.
func (e *Engine) sendBatch(fru *FRU, start time.Time) {
	fru.mu.Lock()
	shift := uint(0)
	if fru.accessByWords {
		shift = 1
	}
	offset := uint16(fru.lastWriteOffset >> shift)
	payload := fru.lastWritePayload
	fru.mu.Unlock()

	e.device().SubmitWriteData(fru.addr.DeviceID, offset, payload, func(res transport.WriteResult) {
		e.handleWriteData(fru, start, res)
	})
}

func (e *Engine) handleWriteData(fru *FRU, start time.Time, res transport.WriteResult) {
	if res.Err != nil {
		e.completeWrite(fru, start, NewFRUError("write", fru.name, ErrCodeInvalidArgument, res.Err.Error()))
		return
	}

	if res.CompletionCode == ipmi.CCDeviceBusy {
		fru.mu.Lock()
		if fru.retryCount >= e.tuning.MaxWriteRetries {
			fru.mu.Unlock()
			e.completeWrite(fru, start, NewIPMIError("write", fru.name, res.CompletionCode))
			return
		}
		fru.retryCount++
		fru.mu.Unlock()
		e.metrics().ObserveBusyRetry()
		e.sendBatch(fru, start)
		return
	}

	if res.CompletionCode != 0 {
		e.completeWrite(fru, start, NewIPMIError("write", fru.name, res.CompletionCode))
		return
	}

	fru.mu.Lock()
	shift := uint(0)
	if fru.accessByWords {
		shift = 1
	}
	acked := int(res.CountWritten) << shift
	sent := len(fru.lastWritePayload)
	fru.currPos += sent
	if acked < sent {
		fru.mu.Unlock()
		e.logger().Warnf("short write fru=%s sent=%d acked=%d", fru.Name(), sent, acked)
	} else {
		fru.mu.Unlock()
	}

	e.streamNextBatch(fru, start)
}

// completeWrite is the single completion routine for every write-ending
// path: invoke write_complete on success, free the working buffer on
// failure, clear in_use, invoke the user callback, and drop the write's
// protective reference. Writes are never cancelled by deletion — this runs
// unconditionally regardless of fru.deleted.
func (e *Engine) completeWrite(fru *FRU, start time.Time, err error) {
	fru.mu.Lock()
	ops := fru.ops
	fru.mu.Unlock()
	if err == nil && ops != nil {
		// Runs without fru's lock held, same rationale as runWrite's call
		// to Write above.
		ops.WriteComplete(fru)
	}

	fru.mu.Lock()
	if err != nil {
		if fru.data != nil {
			bufpool.Put(fru.data)
			fru.data = nil
		}
		fru.clearUpdateRecords()
	}
	fru.inUse = false
	cb := fru.writeCB
	fru.writeCB = nil
	byteCount := uint64(fru.currPos)
	fru.mu.Unlock()

	e.metrics().ObserveWrite(byteCount, uint64(time.Since(start)), err == nil)
	if cb != nil {
		cb(fru, err)
	}

	fru.mu.Lock()
	zero := fru.unref()
	fru.mu.Unlock()
	if zero {
		fru.finalize()
	}
}
