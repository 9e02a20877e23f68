package nativeservice

import "unsafe"

// goString copies the NUL-terminated string at ptr.
func goString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(ptr + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}

// writeCString writes s NUL-terminated into the limit bytes at buf when it
// fits and returns len(s) either way, so the caller can retry with a larger
// buffer.
func writeCString(s string, buf uintptr, limit int32) int32 {
	n := int32(len(s))
	if buf == 0 || n+1 > limit {
		return n
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), n+1)
	copy(dst, s)
	dst[n] = 0
	return n
}
