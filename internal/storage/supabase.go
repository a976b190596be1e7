package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseStore keeps originals in a Supabase Storage bucket. Uploads and
// deletes go through the storage-go client; reads go straight to the object
// endpoint so large originals are streamed instead of buffered.
type SupabaseStore struct {
	client  *storage_go.Client
	http    *http.Client
	bucket  string
	baseURL string
	key     string
}

func NewSupabaseStore(supabaseURL, serviceKey, bucket string) (*SupabaseStore, error) {
	// Ensure URL doesn't have trailing slash
	baseURL := strings.TrimRight(supabaseURL, "/")

	client, err := supabase.NewClient(baseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
	}

	return &SupabaseStore{
		client:  client.Storage,
		http:    &http.Client{},
		bucket:  bucket,
		baseURL: baseURL,
		key:     serviceKey,
	}, nil
}

func (s *SupabaseStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false
	_, err := s.client.UploadFile(s.bucket, path, r, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

func (s *SupabaseStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *SupabaseStore) Download(ctx context.Context, path string) ([]byte, error) {
	return readAll(ctx, s, path)
}

func (s *SupabaseStore) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	resp, err := s.do(ctx, http.MethodHead, path)
	if err != nil {
		return ObjectInfo{}, err
	}
	resp.Body.Close()

	size := resp.ContentLength
	if size < 0 {
		size = 0
	}
	return ObjectInfo{
		Path:        path,
		Size:        size,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, path string) error {
	if _, err := s.client.RemoveFile(s.bucket, []string{path}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (s *SupabaseStore) objectURL(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/storage/v1/object/authenticated/%s/%s",
		s.baseURL, url.PathEscape(s.bucket), strings.Join(segments, "/"))
}

// do issues an authenticated request for one object. Supabase answers a
// missing object with 400 or 404 depending on the version; both map to
// ErrNotFound.
func (s *SupabaseStore) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.objectURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %d", path, resp.StatusCode)
	}
}
