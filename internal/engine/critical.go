package engine

import (
	"io"
	"sync"

	"github.com/roach88/scriptlock/internal/script"
)

// Critical owns the script engine and the shared checksum behind one lock.
//
// Nothing outside Enter may touch the interpreter: it is not safe for
// concurrent entry. The checksum lives here too so the script call and the
// increment form a single critical section.
type Critical struct {
	mu       sync.Mutex
	vm       *script.Engine
	checksum int64
}

// NewCritical takes ownership of vm for the lifetime of the section.
func NewCritical(vm *script.Engine) *Critical {
	return &Critical{vm: vm}
}

// Enter runs fn while holding the lock. fn may read and update the checksum
// through the pointer it is given; the pointer must not escape fn.
// The lock is released even if fn panics.
func (c *Critical) Enter(fn func(vm *script.Engine, checksum *int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.vm, &c.checksum)
}

// Checksum returns the current checksum.
func (c *Critical) Checksum() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checksum
}

// syncWriter serializes writes from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w so that concurrent Write calls do not interleave.
// The script engine and the workers should share the same wrapped writer.
func NewSyncWriter(w io.Writer) io.Writer {
	if sw, ok := w.(*syncWriter); ok {
		return sw
	}
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
