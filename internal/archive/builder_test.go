package archive_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio-backend/internal/archive"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	delay   map[string]time.Duration
	calls   []string
}

func (m *memStore) download(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path)
	data, ok := m.objects[path]
	d := m.delay[path]
	m.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

func TestBuilder_Build(t *testing.T) {
	store := &memStore{
		objects: map[string][]byte{
			"s/1.jpg": []byte("one"),
			"s/2.jpg": []byte("two"),
			"s/3.jpg": []byte("three"),
		},
		// the first source finishes last
		delay: map[string]time.Duration{"s/1.jpg": 30 * time.Millisecond},
	}
	b := archive.NewBuilder(store.download, archive.WithConcurrency(3))

	out, err := b.Build(context.Background(), []archive.Source{
		{Name: "Wedding Photo", Path: "s/1.jpg", Modified: &shotAt},
		{Name: "Wedding Photo", Path: "s/2.jpg"},
		{Name: "", Path: "s/3.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Wedding_Photo.jpg", "Wedding_Photo-1.jpg", "foto.jpg"}, zipNames(t, out))
	got := readZip(t, out)
	assert.Equal(t, "one", string(got["Wedding_Photo.jpg"]))
	assert.Equal(t, "two", string(got["Wedding_Photo-1.jpg"]))
	assert.Equal(t, "three", string(got["foto.jpg"]))
}

func TestBuilder_AllOrNothing(t *testing.T) {
	store := &memStore{objects: map[string][]byte{
		"s/1.jpg": []byte("one"),
		"s/3.jpg": []byte("three"),
	}}
	b := archive.NewBuilder(store.download, archive.WithConcurrency(1))

	out, err := b.Build(context.Background(), []archive.Source{
		{Name: "a", Path: "s/1.jpg"},
		{Name: "b", Path: "s/2.jpg"},
		{Name: "c", Path: "s/3.jpg"},
	})
	assert.Nil(t, out)

	var srcErr *archive.SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, 1, srcErr.Index)
	assert.Equal(t, "b.jpg", srcErr.Name)
	assert.NotContains(t, store.calls, "s/3.jpg", "sequential build stops at the first failure")
}

func TestBuilder_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	download := func(ctx context.Context, path string) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return []byte(path), nil
	}

	var sources []archive.Source
	for i := 0; i < 12; i++ {
		sources = append(sources, archive.Source{Name: fmt.Sprintf("p%d", i), Path: fmt.Sprintf("s/%d.jpg", i)})
	}

	out, err := archive.NewBuilder(download, archive.WithConcurrency(2)).Build(context.Background(), sources)
	require.NoError(t, err)
	assert.Len(t, zipNames(t, out), 12)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBuilder_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memStore{objects: map[string][]byte{"s/1.jpg": []byte("one")}}
	_, err := archive.NewBuilder(store.download).Build(ctx, []archive.Source{{Name: "a", Path: "s/1.jpg"}})
	assert.True(t, archive.IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_ClockForMissingTimestamps(t *testing.T) {
	fixed := time.Date(2023, time.December, 24, 20, 0, 0, 0, time.UTC)
	store := &memStore{objects: map[string][]byte{"s/1.jpg": []byte("one")}}
	b := archive.NewBuilder(store.download, archive.WithBuilderClock(func() time.Time { return fixed }))

	first, err := b.Build(context.Background(), []archive.Source{{Name: "a", Path: "s/1.jpg"}})
	require.NoError(t, err)
	second, err := b.Build(context.Background(), []archive.Source{{Name: "a", Path: "s/1.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
