// Package ipmi provides wire-level definitions for the Storage NetFn
// commands used by the FRU inventory engine.
package ipmi

// Storage NetFn command numbers (§6).
const (
	CmdGetFRUInventoryAreaInfo = 0x10
	CmdReadFRUData            = 0x11
	CmdWriteFRUData           = 0x12
)

const StorageNetFn = 0x0a

// Completion codes consumed explicitly by the engine (§6/§7).
const (
	CCOk                          = 0x00
	CCDeviceBusy                  = 0x81
	CCCannotReturnReqLength       = 0xca
	CCRequestedDataLengthExceeded = 0xc8
	CCRequestDataLengthInvalid    = 0xc7
	CCTimeout                     = 0xc3
	CCUnknownError                = 0xff
)

// BackOffCodes back the read engine's capability back-off path (§4.D):
// "cannot-return-req-length, requested-data-length-exceeded,
// request-data-length-invalid, timeout, or unknown-error".
var BackOffCodes = map[byte]bool{
	CCCannotReturnReqLength:       true,
	CCRequestedDataLengthExceeded: true,
	CCRequestDataLengthInvalid:    true,
	CCTimeout:                     true,
	CCUnknownError:                true,
}

// Access mode bit in the Get FRU Inventory Area Info response.
const AccessModeWordBit = 0x01

// MinFRUHeaderSize is the minimum plausible FRU area size (§3, §4.D).
const MinFRUHeaderSize = 8

// MaxReadChunk / MinReadChunk bound the adaptive fetch size (§3): "adaptive
// 16-32 byte chunking". Back-off decrements by 8 and gives up below 16.
const (
	MaxReadChunk = 32
	MinReadChunk = 16
	BackOffStep  = 8
)

// MaxWritePayload is the maximum payload bytes per Write FRU Data command
// (§4.E): "Each IPMI Write FRU Data command carries up to 16 payload bytes".
const MaxWritePayload = 16

// MaxWriteRetries is the device-busy retry ceiling (§4.E/§8): "retry_count < 30".
const MaxWriteRetries = 30
