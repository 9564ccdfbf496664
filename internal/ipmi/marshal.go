package ipmi

import "errors"

// ErrInsufficientData is returned when a response is shorter than its
// wire format requires.
var ErrInsufficientData = errors.New("ipmi: insufficient data")

// EncodeAreaInfoRequest builds the request payload for Get FRU Inventory
// Area Info (§6): a single device_id byte.
func EncodeAreaInfoRequest(deviceID uint8) []byte {
	return []byte{deviceID}
}

// AreaInfoResponse is the decoded Get FRU Inventory Area Info response.
type AreaInfoResponse struct {
	CompletionCode byte
	Size           uint16
	WordAccess     bool
}

// DecodeAreaInfoResponse decodes cc, size-lo, size-hi, access-flags.
// A response shorter than 4 bytes is "invalid" per §4.D.
func DecodeAreaInfoResponse(data []byte) (AreaInfoResponse, error) {
	if len(data) < 4 {
		return AreaInfoResponse{}, ErrInsufficientData
	}
	size := uint16(data[1]) | uint16(data[2])<<8
	return AreaInfoResponse{
		CompletionCode: data[0],
		Size:           size,
		WordAccess:     data[3]&AccessModeWordBit != 0,
	}, nil
}

// EncodeReadDataRequest builds the request payload for Read FRU Data:
// device_id, offset-lo, offset-hi, count.
func EncodeReadDataRequest(deviceID uint8, offset, count uint16) []byte {
	return []byte{
		deviceID,
		byte(offset & 0xff),
		byte(offset >> 8),
		byte(count & 0xff),
	}
}

// ReadDataResponse is the decoded Read FRU Data response.
type ReadDataResponse struct {
	CompletionCode byte
	Count          byte
	Data           []byte
}

// DecodeReadDataResponse decodes cc, count-returned, data...
// A payload under 2 bytes is structurally invalid per §4.D.
func DecodeReadDataResponse(data []byte) (ReadDataResponse, error) {
	if len(data) < 2 {
		return ReadDataResponse{}, ErrInsufficientData
	}
	return ReadDataResponse{
		CompletionCode: data[0],
		Count:          data[1],
		Data:           data[2:],
	}, nil
}

// EncodeWriteDataRequest builds the request payload for Write FRU Data:
// device_id, offset-lo, offset-hi, data...
func EncodeWriteDataRequest(deviceID uint8, offset uint16, payload []byte) []byte {
	buf := make([]byte, 3+len(payload))
	buf[0] = deviceID
	buf[1] = byte(offset & 0xff)
	buf[2] = byte(offset >> 8)
	copy(buf[3:], payload)
	return buf
}

// WriteDataResponse is the decoded Write FRU Data response.
type WriteDataResponse struct {
	CompletionCode byte
	CountWritten   byte
}

// DecodeWriteDataResponse decodes cc, count-written.
func DecodeWriteDataResponse(data []byte) (WriteDataResponse, error) {
	if len(data) < 2 {
		return WriteDataResponse{}, ErrInsufficientData
	}
	return WriteDataResponse{
		CompletionCode: data[0],
		CountWritten:   data[1],
	}, nil
}
