// Package transport provides the IPMI request/response layer the FRU
// engine consumes (§4.H). The engine never blocks on I/O: it submits a
// command and returns, and the transport invokes the supplied callback
// from a worker goroutine when the response arrives — modeling the IPMI
// domain's asynchronous dispatch threads that spec.md treats as external.
package transport

import "errors"

// ErrClosed is delivered in the result's Err field to the callback of a
// Submit* call made after Close.
var ErrClosed = errors.New("transport: closed")

// Device is the transport surface the read/write engines depend on. Two
// implementations exist: LinuxIPMI (a real /dev/ipmi0 ioctl transport) and
// Simulated (an in-memory fake device used by tests and the demo command).
type Device interface {
	// SubmitReadAreaInfo issues Get FRU Inventory Area Info.
	SubmitReadAreaInfo(deviceID uint8, cb func(AreaInfoResult))

	// SubmitReadData issues Read FRU Data at the given offset/count, both
	// already expressed in the device's addressing unit (§6).
	SubmitReadData(deviceID uint8, offset, count uint16, cb func(ReadResult))

	// SubmitWriteData issues Write FRU Data with the given payload at the
	// given offset (already expressed in the device's addressing unit).
	SubmitWriteData(deviceID uint8, offset uint16, payload []byte, cb func(WriteResult))

	// Close releases transport resources.
	Close() error
}

// AreaInfoResult carries the decoded Get FRU Inventory Area Info response,
// or a transport-level error (distinct from a non-zero completion code).
type AreaInfoResult struct {
	CompletionCode byte
	Size           uint16
	WordAccess     bool
	Err            error
}

// ReadResult carries the decoded Read FRU Data response.
type ReadResult struct {
	CompletionCode byte
	Count          byte
	Data           []byte
	Err            error
}

// WriteResult carries the decoded Write FRU Data response.
type WriteResult struct {
	CompletionCode byte
	CountWritten   byte
	Err            error
}
