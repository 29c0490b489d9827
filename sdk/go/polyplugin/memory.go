// Package polyplugin is the author-facing SDK for building polytool plugins:
// guests compiled to wasip1/wasm that the host loads, compiles, and calls
// through a small set of named ABI functions (register_tool, load_versions,
// resolve_version, and so on). A plugin author implements ToolPlugin
// (plus any optional capability interfaces) and writes one
// //go:wasmexport function per implemented operation using the Dispatch
// helpers; there is no Serve entrypoint. This package handles the
// memory-pinning and packed-pointer wire convention the host expects.
package polyplugin

import "unsafe"

// allocations pins guest memory the host is reading from or has just
// written to, so the guest's own GC does not reclaim it out from under a
// host Memory().Read/Write call. Entries are removed by deallocate.
var allocations = make(map[uint32][]byte)

// allocate reserves size bytes of guest memory and returns a pointer the
// host can write into. Exported so the host can allocate input buffers
// before calling any other exported function.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	allocations[ptr] = buf
	return ptr
}

// deallocate releases a buffer previously returned by allocate, letting
// the guest's GC collect it once the host is done reading.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, _ uint32) {
	delete(allocations, ptr)
}

// packPtrLen packs a guest memory pointer and byte length into the single
// i64 every ABI function returns: pointer in the high 32 bits, length in
// the low 32 bits.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen is the inverse of packPtrLen, used to decode the i64 a host
// callback returns.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)
	length = uint32(packed)
	return ptr, length
}

// writeBytes allocates and pins a copy of data, returning its packed
// pointer/length for returning from an exported ABI function.
func writeBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	ptr := allocate(uint32(len(data)))
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dest, data)
	return packPtrLen(ptr, uint32(len(data)))
}

// readBytes copies length bytes out of guest memory at ptr. Used to read
// the input the host wrote before calling an exported ABI function, and
// to read a host callback's packed result out of this guest's own memory.
func readBytes(ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	out := make([]byte, length)
	copy(out, src)
	return out
}
