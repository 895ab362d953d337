package minnow

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Pipe is a Reassembler and its ByteStream behind one lock, so that a
// transport goroutine can insert fragments while an application goroutine
// reads the assembled bytes.
type Pipe struct {
	once     sync.Once
	closed   chan struct{}
	closeErr error

	readable chan struct{} // bytes or EOF are available
	writable chan struct{} // bytes were read, the window moved

	mu sync.Mutex // protects following fields

	stream      *ByteStream
	reassembler *Reassembler

	log *zap.Logger
}

// NewPipe returns a Pipe with an empty stream of config.Capacity bytes.
func NewPipe(config *Config) *Pipe {
	if config.Capacity == 0 {
		panic("minnow: Config.Capacity must be non-zero")
	}
	logger := config.logger()
	stream := NewByteStream(config.Capacity)
	return &Pipe{
		closed: make(chan struct{}),

		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),

		stream:      stream,
		reassembler: NewReassembler(stream, logger),

		log: logger.With(zap.String("component", "pipe")),
	}
}

// Insert passes a fragment to the reassembler. Insert never blocks on the
// reader; bytes that don't fit the window are dropped and must be delivered
// again later.
func (p *Pipe) Insert(index uint64, data []byte, isLast bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reassembler.Insert(index, data, isLast)

	r := p.stream.Reader()
	if r.BytesBuffered() > 0 || r.IsFinished() {
		select {
		case p.readable <- struct{}{}:
		default:
		}
	}
}

// Read reads assembled bytes, blocking until some are available. Read returns
// io.EOF after the last byte of the stream was read. If p is closed, Read
// reports the close error once the bytes buffered so far are consumed.
func (p *Pipe) Read(b []byte) (int, error) {
	return p.ReadContext(context.Background(), b)
}

// ReadContext is like Read but gives up when ctx is done.
func (p *Pipe) ReadContext(ctx context.Context, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		n, err := p.stream.Reader().Read(b)
		if n > 0 {
			select {
			case p.writable <- struct{}{}:
			default:
			}
		}
		if n > 0 || err != nil || len(b) == 0 {
			return n, err
		}

		p.mu.Unlock()
		select {
		case <-p.readable:
			p.mu.Lock()
		case <-p.closed:
			p.mu.Lock()
			return 0, p.closeErr
		case <-ctx.Done():
			p.mu.Lock()
			return 0, ctx.Err()
		}
	}
}

// WaitWindow blocks until the acceptance window extends past index upper, or
// the stream was fully assembled.
func (p *Pipe) WaitWindow(ctx context.Context, upper uint64) error {
	for {
		p.mu.Lock()
		ok := p.reassembler.FirstUnacceptedIndex() > upper || p.reassembler.IsClosed()
		p.mu.Unlock()
		if ok {
			return nil
		}

		select {
		case <-p.writable:
		case <-p.closed:
			return p.closeErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Window returns the cumulative acknowledgment index and the number of bytes
// past it that would be accepted, as observed at one instant.
func (p *Pipe) Window() (ackIndex, windowSize uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reassembler.AckIndex(), p.reassembler.WindowSize()
}

// Assembled reports whether every byte up to the end of the stream was
// inserted. The bytes may not all have been read yet.
func (p *Pipe) Assembled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reassembler.IsClosed()
}

func (p *Pipe) BytesPending() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reassembler.BytesPending()
}

func (p *Pipe) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reassembler.Stats()
}

func (p *Pipe) Close() error {
	p.CloseWithError(io.ErrClosedPipe)
	return nil
}

// CloseWithError closes p. Blocked and future reads return err after
// draining what is buffered. Only the first close has an effect.
func (p *Pipe) CloseWithError(err error) {
	p.once.Do(func() {
		p.closeErr = err
		close(p.closed)

		p.mu.Lock()
		stats := p.reassembler.Stats()
		state := p.reassembler.State()
		pending := p.reassembler.BytesPending()
		p.mu.Unlock()

		p.log.Debug("pipe closed",
			zap.Error(err),
			zap.Stringer("state", state),
			zap.Uint64("pending", pending),
			zap.Uint64("fragments", stats.Fragments),
			zap.Uint64("bytes_received", stats.BytesReceived),
			zap.Uint64("bytes_out_of_window", stats.BytesOutOfWindow),
			zap.Uint64("bytes_redundant", stats.BytesRedundant),
			zap.Uint64("bytes_assembled", stats.BytesAssembled))
	})
}
