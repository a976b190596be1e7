package archive

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Source is one entry for the buffered builder. Name is the raw title; it is
// sanitized and deduped before anything is downloaded.
type Source struct {
	Name     string
	Path     string
	Modified *time.Time
}

// DownloadFunc fetches the full contents of a stored object.
type DownloadFunc func(ctx context.Context, path string) ([]byte, error)

// Builder downloads every source and encodes them into one in-memory archive.
// A single failed download fails the whole build.
type Builder struct {
	download    DownloadFunc
	concurrency int
	now         func() time.Time
}

type BuilderOption func(*Builder)

// WithConcurrency bounds parallel downloads. Values below 1 mean sequential.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n < 1 {
			n = 1
		}
		b.concurrency = n
	}
}

// WithBuilderClock sets the timestamp used for sources without Modified.
func WithBuilderClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(download DownloadFunc, opts ...BuilderOption) *Builder {
	b := &Builder{
		download:    download,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the encoded archive, or a *SourceError for the first download
// that failed. Entries keep the order of sources regardless of which download
// finishes first.
func (b *Builder) Build(ctx context.Context, sources []Source) ([]byte, error) {
	reqs := make([]NameRequest, len(sources))
	for i, s := range sources {
		reqs[i] = NameRequest{Title: s.Name, SourcePath: s.Path}
	}
	names := AssignNames(reqs)

	now := b.now()
	entries := make([]Entry, len(sources))
	for i, s := range sources {
		entries[i] = Entry{Name: names[i], Modified: now}
		if s.Modified != nil {
			entries[i].Modified = *s.Modified
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, s := range sources {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := b.download(gctx, s.Path)
			if err != nil {
				return &SourceError{Index: i, Name: names[i], Err: err}
			}
			entries[i].Data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx.Err())
		}
		return nil, err
	}

	return Encode(entries)
}
