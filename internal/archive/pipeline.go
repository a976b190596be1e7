package archive

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

const defaultBufferSize = 32 * 1024

// StreamSource is one entry for the streaming pipeline. Open is called at
// most once, right before the entry is written, and the returned reader is
// closed before the next source is opened.
type StreamSource struct {
	Name     string
	Path     string
	Modified *time.Time
	Open     func(ctx context.Context) (io.ReadCloser, error)
}

// Pipeline writes entries to a sink as their sources are read, one entry at a
// time and in input order. Memory use is one copy buffer plus the central
// directory records; backpressure comes from the sink's blocking writes.
type Pipeline struct {
	sources []StreamSource
	names   []string
	bufSize int
	job     *Job
	now     func() time.Time
}

type PipelineOption func(*Pipeline)

func WithBufferSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithJob reports progress and the final outcome to j.
func WithJob(j *Job) PipelineOption {
	return func(p *Pipeline) {
		p.job = j
	}
}

// WithClock sets the timestamp used for sources without Modified.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

func NewPipeline(sources []StreamSource, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sources: sources,
		bufSize: defaultBufferSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	reqs := make([]NameRequest, len(sources))
	for i, s := range sources {
		reqs[i] = NameRequest{Title: s.Name, SourcePath: s.Path}
	}
	p.names = AssignNames(reqs)
	return p
}

// Names returns the final entry names, in order.
func (p *Pipeline) Names() []string {
	return append([]string(nil), p.names...)
}

// WriteTo streams the whole archive into w and reports how many bytes reached
// it. The error is nil only when the end-of-central-directory record has been
// written. A failing source yields a *SourceError, and a sink that stops
// accepting bytes or a done ctx yields an error matching ErrCanceled. In both
// cases no trailing records are written, so the partial output is not a
// valid archive.
func (p *Pipeline) WriteTo(ctx context.Context, w io.Writer) (n int64, err error) {
	sink := &sinkWriter{w: w, job: p.job}
	defer func() {
		if p.job == nil {
			return
		}
		if err != nil {
			p.job.abort(err)
		} else {
			p.job.complete()
		}
	}()

	zw := NewWriter(sink)
	buf := make([]byte, p.bufSize)
	now := p.now()

	for i := range p.sources {
		if err := ctx.Err(); err != nil {
			return sink.n, canceled(err)
		}
		if err := p.writeEntry(ctx, zw, i, buf, now); err != nil {
			return sink.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return sink.n, sinkError(err)
	}
	return sink.n, nil
}

func (p *Pipeline) writeEntry(ctx context.Context, zw *Writer, i int, buf []byte, now time.Time) error {
	src := p.sources[i]
	name := p.names[i]
	modified := now
	if src.Modified != nil {
		modified = *src.Modified
	}

	rc, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx.Err())
		}
		return &SourceError{Index: i, Name: name, Err: err}
	}
	// A blocked Read must return as soon as ctx is done, not at the next
	// chunk boundary.
	closer := &onceCloser{rc: rc}
	stop := context.AfterFunc(ctx, func() { _ = closer.Close() })
	defer func() {
		stop()
		_ = closer.Close()
	}()

	ew, err := zw.CreateEntry(name, modified)
	if err != nil {
		return sinkError(err)
	}

	for {
		nr, rerr := rc.Read(buf)
		if nr > 0 {
			if _, werr := ew.Write(buf[:nr]); werr != nil {
				return sinkError(werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return canceled(ctx.Err())
			}
			return &SourceError{Index: i, Name: name, Err: rerr}
		}
	}
}

// sinkError classifies a failed write. Limits are reported as such; anything
// else means the consumer stopped reading.
func sinkError(err error) error {
	if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrEmptyName) {
		return err
	}
	return canceled(err)
}

type sinkWriter struct {
	w   io.Writer
	n   int64
	job *Job
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	if s.job != nil {
		s.job.wrote(n)
	}
	return n, err
}

type onceCloser struct {
	rc   io.ReadCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.rc.Close()
	})
	return c.err
}

// Stream is the pull form of a pipeline: an io.ReadCloser over the archive
// bytes with a single result signal. Readers see the pipeline's error instead
// of io.EOF when it fails.
type Stream struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	n      int64
	err    error
}

// Stream starts the pipeline in its own goroutine. The producer only runs as
// fast as the stream is read.
func (p *Pipeline) Stream(ctx context.Context) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	s := &Stream{pr: pr, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()
		n, err := p.WriteTo(ctx, pw)
		s.n, s.err = n, err
		_ = pw.CloseWithError(err)
	}()
	return s
}

func (s *Stream) Read(b []byte) (int, error) {
	return s.pr.Read(b)
}

// Close stops the producer and releases the open source. It does not wait;
// use Wait for the outcome.
func (s *Stream) Close() error {
	s.cancel()
	return s.pr.CloseWithError(ErrCanceled)
}

// Wait blocks until the producer has finished and returns its error.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Written is the number of archive bytes produced. Valid after Wait.
func (s *Stream) Written() int64 {
	<-s.done
	return s.n
}
