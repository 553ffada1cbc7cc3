package subprocess

import "sync"

// maxStderrTailSize is how much of the child's stderr is kept for the exit report.
const maxStderrTailSize = 64 * 1024 // 64KB

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(maxSize int) *tailBuffer {
	return &tailBuffer{max: maxSize}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)

		return n, nil
	}

	if over := len(b.buf) + n - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}

	b.buf = append(b.buf, p...)

	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}
