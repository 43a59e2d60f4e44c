package proc

import (
	"encoding/binary"

	"github.com/egos-2001/kernel-core/internal/hal"
)

// SyscallRecordLen is the wire size of the user-space syscall record
// kernel_entry copies in on ECALL and try_recv copies back out on
// completion: four int32 header fields followed by the inline payload
// (spec.md §6). Lives here, rather than in internal/dispatcher or
// internal/ipc, because both packages need it and dispatcher already
// imports ipc — a codec in either would make the other's import cycle.
const SyscallRecordLen = 4*4 + SyscallMsgLen

// EncodeSyscall renders s in the fixed layout user space and the kernel
// agree on: [type:4][sender:4][receiver:4][status:4][content:32].
// internal/dispatcher uses it to decode what a user process wrote before
// trapping in; internal/ipc uses it to encode the completed record
// try_recv copies back, exactly as grass/kernel.c's proc_try_recv
// memcpy's the whole struct syscall back to the caller.
func EncodeSyscall(s Syscall) []byte {
	buf := make([]byte, SyscallRecordLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.Type))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(s.Sender))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(s.Receiver))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(s.Status))
	copy(buf[16:], s.Content[:])
	return buf
}

// DecodeSyscall parses raw (as produced by EncodeSyscall) into dst.
func DecodeSyscall(raw []byte, dst *Syscall) {
	dst.Type = SyscallType(binary.LittleEndian.Uint32(raw[0:4]))
	dst.Sender = hal.Pid(int32(binary.LittleEndian.Uint32(raw[4:8])))
	dst.Receiver = hal.Pid(int32(binary.LittleEndian.Uint32(raw[8:12])))
	dst.Status = SyscallStatus(binary.LittleEndian.Uint32(raw[12:16]))
	copy(dst.Content[:], raw[16:])
}
