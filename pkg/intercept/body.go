package intercept

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

const readChunk = 32 << 10

// readCapped reads r incrementally until limit bytes, EOF, a read error or
// a zero-byte read. It returns what was read and the error that ended the
// read, io.EOF included.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, min(readChunk, limit))
	for int64(len(buf)) < limit {
		want := min(int64(len(chunk)), limit-int64(len(buf)))
		n, err := r.Read(chunk[:want])
		buf = append(buf, chunk[:n]...)
		if err != nil {
			return buf, err
		}
		if n == 0 {
			break
		}
	}
	return buf, nil
}

// streamBody forwards a streamed request body while keeping the first
// limit bytes the transport reads. Capture ends on EOF, a read error, a
// zero-byte read or Close; the body keeps passing data through afterwards.
// onDone runs once, when capture ends or settle is called.
type streamBody struct {
	rc    io.ReadCloser
	limit int64

	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
	stopped   bool

	once   sync.Once
	onDone func(body []byte, truncated bool)
}

func newStreamBody(rc io.ReadCloser, limit int64, onDone func([]byte, bool)) *streamBody {
	return &streamBody{rc: rc, limit: limit, onDone: onDone}
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)

	b.mu.Lock()
	stop := b.stopped
	if !stop {
		room := b.limit - int64(b.buf.Len())
		switch {
		case int64(n) <= room:
			b.buf.Write(p[:n])
		default:
			b.buf.Write(p[:max(room, 0)])
			b.truncated = true
		}
		if err != nil || n == 0 {
			b.stopped = true
		}
	}
	b.mu.Unlock()

	if !stop && (err != nil || n == 0) {
		b.settle()
	}
	return n, err
}

func (b *streamBody) Close() error {
	err := b.rc.Close()
	b.settle()
	return err
}

// settle ends capture and hands the captured prefix to onDone. Only the
// first call has any effect; later callers wait for it to finish.
func (b *streamBody) settle() {
	b.once.Do(func() {
		b.mu.Lock()
		b.stopped = true
		body := bytes.Clone(b.buf.Bytes())
		if body == nil {
			body = []byte{}
		}
		truncated := b.truncated
		b.mu.Unlock()

		b.onDone(body, truncated)
	})
}

// captureBody passes a response body through to the caller while keeping
// the first limit bytes. finish runs once, on EOF, on a read error or on
// Close, whichever comes first.
type captureBody struct {
	rc    io.ReadCloser
	limit int64

	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
	done      bool
	finish    func(body []byte, truncated bool, err error)
}

func newCaptureBody(rc io.ReadCloser, limit int64, finish func([]byte, bool, error)) *captureBody {
	return &captureBody{rc: rc, limit: limit, finish: finish}
}

func (b *captureBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)

	b.mu.Lock()
	if n > 0 && !b.done {
		room := b.limit - int64(b.buf.Len())
		switch {
		case room >= int64(n):
			b.buf.Write(p[:n])
		case room > 0:
			b.buf.Write(p[:room])
			b.truncated = true
		default:
			b.truncated = true
		}
	}
	b.mu.Unlock()

	switch {
	case errors.Is(err, io.EOF):
		b.complete(nil)
	case err != nil:
		b.complete(err)
	}
	return n, err
}

func (b *captureBody) Close() error {
	err := b.rc.Close()
	b.complete(nil)
	return err
}

func (b *captureBody) complete(err error) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	body := bytes.Clone(b.buf.Bytes())
	if body == nil {
		body = []byte{}
	}
	truncated := b.truncated
	b.mu.Unlock()

	b.finish(body, truncated, err)
}
