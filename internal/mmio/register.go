// Package mmio implements the 4096-byte memory-mapped register block: the
// host-facing virtual device through which NCI/HCI command buffers are
// staged, responses/notifications/data are retrieved, and the interrupt
// status bit is managed, per the register layout at offsets 0x000-0xFFF.
package mmio

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nfcemu/nfcemu/internal/adaptor"
	"github.com/nfcemu/nfcemu/internal/errs"
)

// Register offsets and sizes, per the external interface layout.
const (
	OffStatus = 0x000
	OffCtrl   = 0x001

	OffCmnd = 0x004
	LenCmnd = 384

	OffResp = 0x184
	LenResp = 384

	OffNtfn = 0x304
	LenNtfn = 384

	OffData = 0x484
	LenData = 384

	BlockSize = 4096
)

// Status register bits.
const (
	StatusIntr   byte = 0x01
	StatusNCICmd byte = 0x02
	StatusNCIRsp byte = 0x04
	StatusNCINtf byte = 0x08
	StatusNCIDta byte = 0x10
	StatusHCICmd byte = 0x20
	StatusHCIRsp byte = 0x40
)

// Ctrl register values, written by the host.
const (
	CtrlAckIntr    byte = 0
	CtrlNCICmdSent byte = 1
	CtrlRspRcv     byte = 2
	CtrlNtfRcv     byte = 3
	CtrlDtaRcv     byte = 4
	CtrlHCICmdSent byte = 5
)

// Device is the register-block virtual device. buf is either a plain
// in-process byte slice (default backing) or an mmap-backed region over a
// file, selected at construction time — the device logic is identical
// either way.
type Device struct {
	buf  []byte
	mm   []byte // non-nil when mmap-backed; closed via unix.Munmap
	a    *adaptor.Adaptor
	logf func(format string, args ...any)
}

// NewMemDevice constructs an in-process register block, the default
// backing used by tests and the integration harness.
func NewMemDevice(a *adaptor.Adaptor, logf func(format string, args ...any)) *Device {
	return &Device{buf: make([]byte, BlockSize), a: a, logf: logf}
}

// OpenMappedDevice mmaps path (created/truncated to BlockSize if needed)
// so a separate process can be pointed at the same shared memory and poke
// the ctrl byte exactly as a real host would.
func OpenMappedDevice(path string, a *adaptor.Adaptor, logf func(format string, args ...any)) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmio: open mapped device: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(BlockSize); err != nil {
		return nil, fmt.Errorf("mmio: open mapped device: truncate: %w", err)
	}
	mm, err := unix.Mmap(int(f.Fd()), 0, BlockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: open mapped device: mmap: %w", err)
	}
	return &Device{buf: mm, mm: mm, a: a, logf: logf}, nil
}

// Close unmaps the shared region, if mapped.
func (d *Device) Close() error {
	if d.mm == nil {
		return nil
	}
	return unix.Munmap(d.mm)
}

func (d *Device) status() byte      { return d.buf[OffStatus] }
func (d *Device) setStatus(b byte)  { d.buf[OffStatus] |= b }
func (d *Device) clearStatus(b byte) { d.buf[OffStatus] &^= b }

// ReadCtrl returns the last-written ctrl register value. Present for
// introspection/tests; the host normally only writes this register.
func (d *Device) ReadCtrl() byte { return d.buf[OffCtrl] }

// WriteCmnd stages an NCI/HCI command buffer for the next ProcessCtrl call.
func (d *Device) WriteCmnd(cmd []byte) error {
	if len(cmd) > LenCmnd {
		return fmt.Errorf("mmio: write cmnd: %w: %d bytes exceeds %d-byte staging area", errs.ErrResourceExhausted, len(cmd), LenCmnd)
	}
	clear(d.buf[OffCmnd : OffCmnd+LenCmnd])
	copy(d.buf[OffCmnd:], cmd)
	return nil
}

// ReadResp returns the currently staged response bytes. The caller is
// expected to already know the response length (from the wire header) or
// to scan for the trailing zero padding; the staging area itself carries
// no explicit length field beyond what the NCI/HCI header declares.
func (d *Device) ReadResp(n int) []byte {
	return append([]byte(nil), d.buf[OffResp:OffResp+n]...)
}

// ReadNtfn returns the currently staged notification bytes.
func (d *Device) ReadNtfn(n int) []byte {
	return append([]byte(nil), d.buf[OffNtfn:OffNtfn+n]...)
}

// ReadData returns the currently staged data-packet bytes.
func (d *Device) ReadData(n int) []byte {
	return append([]byte(nil), d.buf[OffData:OffData+n]...)
}

// StageNtfn writes a spontaneous notification (emitted from the console or
// a timer fire, not in response to a host write) and raises INTR|NCI_NTF.
// Per §6, only one response may be staged at a time; if NCI_RSP or HCI_RSP
// is still set the notification is silently dropped, matching the
// register contract for responses.
func (d *Device) StageNtfn(payload []byte) error {
	if d.status()&(StatusNCIRsp|StatusHCIRsp) != 0 {
		if d.logf != nil {
			d.logf("mmio: dropped notification: response still pending")
		}
		return nil
	}
	if len(payload) > LenNtfn {
		return fmt.Errorf("mmio: stage ntfn: %w", errs.ErrResourceExhausted)
	}
	clear(d.buf[OffNtfn : OffNtfn+LenNtfn])
	copy(d.buf[OffNtfn:], payload)
	d.setStatus(StatusIntr | StatusNCINtf)
	return nil
}

// StageData writes a spontaneous outbound data packet (an RE's transmit
// timer firing a SYMM or queued LLCP PDU) and raises INTR|NCI_DTA.
func (d *Device) StageData(payload []byte) error {
	if len(payload) > LenData {
		return fmt.Errorf("mmio: stage data: %w", errs.ErrResourceExhausted)
	}
	clear(d.buf[OffData : OffData+LenData])
	copy(d.buf[OffData:], payload)
	d.setStatus(StatusIntr | StatusNCIDta)
	return nil
}

// ProcessCtrl handles one host write to the control register. It is the
// single entry point the register-block goroutine calls on each write;
// commands that reach the controller are processed with the controller's
// mutex held for the duration, per the cooperative concurrency model.
func (d *Device) ProcessCtrl(code byte) error {
	switch code {
	case CtrlAckIntr:
		d.clearStatus(StatusIntr)
		return nil

	case CtrlRspRcv:
		d.clearStatus(StatusNCIRsp | StatusHCIRsp)
		return nil

	case CtrlNtfRcv:
		d.clearStatus(StatusNCINtf)
		return nil

	case CtrlDtaRcv:
		d.clearStatus(StatusNCIDta)
		return nil

	case CtrlNCICmdSent:
		return d.runCommand(StatusNCICmd, StatusNCIRsp, d.a.ProcessNCICommand)

	case CtrlHCICmdSent:
		return d.runCommand(StatusHCICmd, StatusHCIRsp, d.a.ProcessHCICommand)

	default:
		return fmt.Errorf("mmio: process ctrl: %w: unknown ctrl code %d", errs.ErrWireFormat, code)
	}
}

func (d *Device) runCommand(cmdBit, rspBit byte, process func([]byte) ([]byte, error)) error {
	if d.status()&(StatusNCIRsp|StatusHCIRsp) != 0 {
		if d.logf != nil {
			d.logf("mmio: dropped command: response still pending")
		}
		return nil
	}
	d.setStatus(cmdBit)
	resp, err := process(d.buf[OffCmnd : OffCmnd+LenCmnd])
	d.clearStatus(cmdBit)
	if err != nil {
		if d.logf != nil {
			d.logf("mmio: command processing failed: %v", err)
		}
		return nil
	}
	if len(resp) == 0 {
		return nil
	}
	if len(resp) > LenResp {
		return fmt.Errorf("mmio: run command: %w: response exceeds %d-byte staging area", errs.ErrResourceExhausted, LenResp)
	}
	clear(d.buf[OffResp : OffResp+LenResp])
	copy(d.buf[OffResp:], resp)
	d.setStatus(rspBit | StatusIntr)
	return nil
}

// snapshotMagic is the version tag written at the head of every saved
// register-block snapshot; load fails if the tag does not match.
const snapshotMagic uint32 = 0x4e434931 // "NCI1"

// Save serializes the register block as {version uint32, bytes [4096]byte}.
func (d *Device) Save(w io.Writer) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], snapshotMagic)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("mmio: save: %w", err)
	}
	enc := gob.NewEncoder(w)
	if err := enc.Encode(d.buf); err != nil {
		return fmt.Errorf("mmio: save: %w", err)
	}
	return nil
}

// Load restores the register block from a snapshot written by Save,
// failing if the version tag does not match.
func (d *Device) Load(r io.Reader) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("mmio: load: %w", err)
	}
	if binary.BigEndian.Uint32(hdr[:]) != snapshotMagic {
		return fmt.Errorf("mmio: load: %w: snapshot version mismatch", errs.ErrWireFormat)
	}
	dec := gob.NewDecoder(r)
	var bytes []byte
	if err := dec.Decode(&bytes); err != nil {
		return fmt.Errorf("mmio: load: %w", err)
	}
	if len(bytes) != BlockSize {
		return fmt.Errorf("mmio: load: %w: snapshot has %d bytes, want %d", errs.ErrWireFormat, len(bytes), BlockSize)
	}
	copy(d.buf, bytes)
	return nil
}
