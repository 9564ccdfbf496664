//go:build linux

package transport

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/ipmifru/internal/ipmi"
	"github.com/ehrlich-b/ipmifru/internal/logging"
)

// ioctl numbers and wire structures mirror linux/ipmi.h. Only the fields
// this engine actually needs are modeled.
const (
	ipmiIoctlMagic        = 'i'
	ipmictlSendCommand    = 0x80000000 | (ipmiIoctlMagic << 8) | 13 | (unsafe.Sizeof(ipmiReq{}) << 16) // _IOR(magic, 13, ipmiReq)
	ipmictlReceiveMsgTrunc = 0xc0000000 | (ipmiIoctlMagic << 8) | 11 | (unsafe.Sizeof(ipmiRecv{}) << 16) // _IOWR(magic, 11, ipmiRecv)

	systemInterfaceAddrType = 0x0c
	ipmbAddrType            = 0x01
)

// ipmiSystemInterfaceAddr mirrors struct ipmi_system_interface_addr.
type ipmiSystemInterfaceAddr struct {
	AddrType int32
	Channel  int16
	LUN      uint8
	_        uint8
}

// ipmiMsg mirrors struct ipmi_msg.
type ipmiMsg struct {
	NetFn   uint8
	Cmd     uint8
	DataLen uint16
	_       uint32
	Data    uintptr
}

// ipmiReq mirrors struct ipmi_req.
type ipmiReq struct {
	Addr    uintptr
	AddrLen uint32
	_       uint32
	MsgID   int64
	Msg     ipmiMsg
}

// ipmiRecv mirrors struct ipmi_recv.
type ipmiRecv struct {
	RecvType int32
	Addr     uintptr
	AddrLen  uint32
	_        uint32
	MsgID    int64
	Msg      ipmiMsg
}

type pendingCall struct {
	cmd uint8
	cb  func(cc byte, payload []byte, err error)
}

// LinuxIPMI is the real transport, talking to /dev/ipmi0 via ioctl, the
// direct analogue of the teacher's char-device + ioctl plumbing in
// internal/queue/runner.go and internal/uring/minimal.go.
type LinuxIPMI struct {
	fd      int
	seq     atomic.Int64
	mu      sync.Mutex
	pending map[int64]pendingCall
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// OpenLinuxIPMI opens the given IPMI character device (typically
// "/dev/ipmi0") and starts the receive-dispatch goroutine.
func OpenLinuxIPMI(path string) (*LinuxIPMI, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &LinuxIPMI{
		fd:      fd,
		pending: make(map[int64]pendingCall),
	}
	t.wg.Add(1)
	go t.recvLoop()
	return t, nil
}

func (t *LinuxIPMI) send(cmd uint8, payload []byte, cb func(cc byte, data []byte, err error)) {
	if t.closed.Load() {
		cb(0, nil, ErrClosed)
		return
	}

	msgID := t.seq.Add(1)
	t.mu.Lock()
	t.pending[msgID] = pendingCall{cmd: cmd, cb: cb}
	t.mu.Unlock()

	addr := ipmiSystemInterfaceAddr{AddrType: systemInterfaceAddrType, Channel: 0, LUN: 0}
	var dataPtr uintptr
	if len(payload) > 0 {
		dataPtr = uintptr(unsafe.Pointer(&payload[0]))
	}

	req := ipmiReq{
		Addr:    uintptr(unsafe.Pointer(&addr)),
		AddrLen: uint32(unsafe.Sizeof(addr)),
		MsgID:   msgID,
		Msg: ipmiMsg{
			NetFn:   ipmi.StorageNetFn,
			Cmd:     cmd,
			DataLen: uint16(len(payload)),
			Data:    dataPtr,
		},
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), uintptr(ipmictlSendCommand), uintptr(unsafe.Pointer(&req)))
	runtime.KeepAlive(payload)
	if errno != 0 {
		t.mu.Lock()
		delete(t.pending, msgID)
		t.mu.Unlock()
		cb(0, nil, errno)
		return
	}
}

// SubmitReadAreaInfo implements Device.
func (t *LinuxIPMI) SubmitReadAreaInfo(deviceID uint8, cb func(AreaInfoResult)) {
	req := ipmi.EncodeAreaInfoRequest(deviceID)
	t.send(ipmi.CmdGetFRUInventoryAreaInfo, req, func(_ byte, data []byte, err error) {
		if err != nil {
			cb(AreaInfoResult{Err: err})
			return
		}
		resp, decodeErr := ipmi.DecodeAreaInfoResponse(data)
		if decodeErr != nil {
			cb(AreaInfoResult{Err: decodeErr})
			return
		}
		cb(AreaInfoResult{CompletionCode: resp.CompletionCode, Size: resp.Size, WordAccess: resp.WordAccess})
	})
}

// SubmitReadData implements Device.
func (t *LinuxIPMI) SubmitReadData(deviceID uint8, offset, count uint16, cb func(ReadResult)) {
	req := ipmi.EncodeReadDataRequest(deviceID, offset, count)
	t.send(ipmi.CmdReadFRUData, req, func(_ byte, data []byte, err error) {
		if err != nil {
			cb(ReadResult{Err: err})
			return
		}
		resp, decodeErr := ipmi.DecodeReadDataResponse(data)
		if decodeErr != nil {
			cb(ReadResult{Err: decodeErr})
			return
		}
		cb(ReadResult{CompletionCode: resp.CompletionCode, Count: resp.Count, Data: resp.Data})
	})
}

// SubmitWriteData implements Device.
func (t *LinuxIPMI) SubmitWriteData(deviceID uint8, offset uint16, payload []byte, cb func(WriteResult)) {
	req := ipmi.EncodeWriteDataRequest(deviceID, offset, payload)
	t.send(ipmi.CmdWriteFRUData, req, func(_ byte, data []byte, err error) {
		if err != nil {
			cb(WriteResult{Err: err})
			return
		}
		resp, decodeErr := ipmi.DecodeWriteDataResponse(data)
		if decodeErr != nil {
			cb(WriteResult{Err: decodeErr})
			return
		}
		cb(WriteResult{CompletionCode: resp.CompletionCode, CountWritten: resp.CountWritten})
	})
}

// recvLoop drains completion messages from the character device and
// dispatches them to the pending call matching their msgid, mirroring the
// teacher's dedicated per-queue ioLoop goroutine.
func (t *LinuxIPMI) recvLoop() {
	defer t.wg.Done()
	buf := make([]byte, 272) // max IPMI message body + header slack
	for {
		if t.closed.Load() {
			return
		}

		var recv ipmiRecv
		var addr ipmiSystemInterfaceAddr
		recv.Addr = uintptr(unsafe.Pointer(&addr))
		recv.AddrLen = uint32(unsafe.Sizeof(addr))
		recv.Msg.Data = uintptr(unsafe.Pointer(&buf[0]))
		recv.Msg.DataLen = uint16(len(buf))

		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), uintptr(ipmictlReceiveMsgTrunc), uintptr(unsafe.Pointer(&recv)))
		if errno == unix.EAGAIN || errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			if t.closed.Load() {
				return
			}
			logging.Default().Warn("ipmi receive failed", "errno", errno)
			continue
		}

		n := int(recv.Msg.DataLen)
		if n > len(buf) {
			n = len(buf)
		}
		payload := append([]byte(nil), buf[:n]...)

		t.mu.Lock()
		call, ok := t.pending[recv.MsgID]
		if ok {
			delete(t.pending, recv.MsgID)
		}
		t.mu.Unlock()

		if !ok {
			continue
		}
		var cc byte
		if len(payload) > 0 {
			cc = payload[0]
		}
		call.cb(cc, payload, nil)
	}
}

// Close implements Device.
func (t *LinuxIPMI) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	err := syscall.Close(t.fd)
	t.wg.Wait()
	return err
}

var _ Device = (*LinuxIPMI)(nil)
