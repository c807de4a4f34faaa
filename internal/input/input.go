package input

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Source is where chunks come from: something that emits discrete payloads
// and can be told to stop emitting.
type Source interface {
	Chunks() <-chan []byte
	Pause()
}

// NopSource emits nothing. For sessions fed purely by Submit (API,
// scheduled snippets); Pause closes the chunk channel so a producer loop
// draining it can finish.
type NopSource struct {
	out  chan []byte
	once sync.Once
}

func NewNopSource() *NopSource {
	return &NopSource{out: make(chan []byte)}
}

func (ns *NopSource) Chunks() <-chan []byte {
	return ns.out
}

func (ns *NopSource) Pause() {
	ns.once.Do(func() {
		close(ns.out)
	})
}

// ReaderSource adapts a line-oriented io.Reader (stdin, a pipe) into a
// Source. Pause takes effect at the next line boundary; a read blocked in
// the scanner is not interrupted.
type ReaderSource struct {
	r    io.Reader
	out  chan []byte
	stop chan struct{}
	once sync.Once
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{
		r:    r,
		out:  make(chan []byte),
		stop: make(chan struct{}),
	}
}

// Start reads lines until EOF, Pause or ctx cancellation, emitting each
// line on Chunks. The chunk channel closes when Start returns.
func (rs *ReaderSource) Start(ctx context.Context) error {
	defer close(rs.out)

	scanner := bufio.NewScanner(rs.r)
	for scanner.Scan() {
		chunk := make([]byte, len(scanner.Bytes()))
		copy(chunk, scanner.Bytes())

		select {
		case rs.out <- chunk:
		case <-rs.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (rs *ReaderSource) Chunks() <-chan []byte {
	return rs.out
}

func (rs *ReaderSource) Pause() {
	rs.once.Do(func() {
		close(rs.stop)
	})
}
