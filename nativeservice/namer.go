package nativeservice

import (
	"sync"

	"github.com/purelang/launcher/service"
)

// namerCall is the naming state of the compile call in progress. purego
// callbacks are a finite, never freed resource, so a single callback serves
// every module and compile calls take turns.
type namerCall struct {
	namer service.OutputNamer
	err   error
}

var (
	namerMu      sync.Mutex
	currentNamer *namerCall
)

// withNamer runs fn with namer installed as the target of the naming
// callback and returns the first naming error.
func withNamer(namer service.OutputNamer, fn func()) error {
	namerMu.Lock()
	defer namerMu.Unlock()

	call := &namerCall{namer: namer}
	currentNamer = call
	defer func() { currentNamer = nil }()
	fn()
	return call.err
}

// nameOutput implements int32_t (*)(const char *src, char *buf, int32_t limit).
// It returns -1 when naming fails.
func nameOutput(src, buf, limit uintptr) uintptr {
	call := currentNamer
	if call == nil || call.namer == nil {
		return negOne
	}
	out, err := call.namer(goString(src))
	if err != nil {
		if call.err == nil {
			call.err = err
		}
		return negOne
	}
	return uintptr(uint32(writeCString(out, buf, int32(limit))))
}

// negOne is -1 as an int32 in the low half of a return register.
const negOne = uintptr(0xffffffff)
