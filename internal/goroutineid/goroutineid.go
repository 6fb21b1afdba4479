// Package goroutineid identifies the current goroutine, so event-loop
// owners can tell on-loop callers from off-loop ones.
package goroutineid

import (
	"runtime"
	"sync"
)

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 128)
		return &b
	},
}

// Get returns the current goroutine's ID, or 0 if the stack header cannot
// be parsed. The first line of a stack trace is "goroutine N [state]:";
// only that prefix is needed, so a small buffer suffices.
func Get() int64 {
	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parseID((*bp)[:n])
}

// parseID reads the integer following the "goroutine " header prefix,
// without allocating.
func parseID(stack []byte) int64 {
	const prefix = "goroutine "
	if len(stack) < len(prefix) {
		return 0
	}
	for i := 0; i < len(prefix); i++ {
		if stack[i] != prefix[i] {
			return 0
		}
	}
	var id int64
	for _, b := range stack[len(prefix):] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
	}
	return id
}
