package mem

import "unsafe"

// BufLimit is the capacity of a buffer the host may write into.
type BufLimit = uint32

// BytesToPtr returns the location of b in guest memory. The caller keeps b
// alive until the host is done with it.
func BytesToPtr(b []byte) (uint32, uint32) {
	if len(b) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b)))), uint32(len(b))
}

// StringToPtr returns the location of s in guest memory.
func StringToPtr(s string) (uint32, uint32) {
	if s == "" {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))
}

// GetBytes calls fn with a buffer and retries once with the length fn asked
// for when the first buffer was too small.
func GetBytes(fn func(ptr uint32, limit BufLimit) (len uint32)) []byte {
	buf := make([]byte, 256)
	n := fn(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf)))), BufLimit(len(buf)))
	if n <= uint32(len(buf)) {
		return buf[:n]
	}

	buf = make([]byte, n)
	n = fn(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf)))), BufLimit(len(buf)))
	if n > uint32(len(buf)) {
		n = uint32(len(buf))
	}
	return buf[:n]
}
