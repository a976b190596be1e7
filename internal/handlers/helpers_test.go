package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"photo-studio-backend/internal/config"
	"photo-studio-backend/internal/handlers"
	"photo-studio-backend/internal/metrics"
	"photo-studio-backend/internal/models"
	"photo-studio-backend/internal/repository"
	"photo-studio-backend/internal/services"
	"photo-studio-backend/internal/storage"
)

const (
	testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"
	orderToken = "3b9f2c1e7a4d4e6f8a0b1c2d3e4f5a6b"
)

type stubOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]models.Order
	marked []uuid.UUID
}

func (s *stubOrders) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (s *stubOrders) MarkFulfilled(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	if o.Status != models.OrderStatusPaid {
		return false, nil
	}
	o.Status = models.OrderStatusFulfilled
	s.orders[id] = o
	s.marked = append(s.marked, id)
	return true, nil
}

func (s *stubOrders) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

// stubPhotos backs both the download lookups and the photo service.
type stubPhotos struct {
	mu     sync.Mutex
	photos []models.Photo
}

func (s *stubPhotos) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Photo
	for _, p := range s.photos {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPhotos) Create(ctx context.Context, p *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = time.Now()
	s.photos = append(s.photos, *p)
	return nil
}

func (s *stubPhotos) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubSequencer struct {
	mu   sync.Mutex
	seqs map[uuid.UUID]int64
}

func (s *stubSequencer) Next(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seqs[sessionID]; !ok {
		return 0, repository.ErrSessionNotFound
	}
	s.seqs[sessionID]++
	return s.seqs[sessionID], nil
}

// stubStore keeps objects in memory. Paths in failOpen cannot be opened and
// paths in failRead break after their first byte.
type stubStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failOpen map[string]bool
	failRead map[string]bool
}

func (s *stubStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return nil
}

func (s *stubStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOpen[path] {
		return nil, errors.New("storage unavailable")
	}
	data, ok := s.objects[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if s.failRead[path] {
		return io.NopCloser(io.MultiReader(bytes.NewReader(data[:1]), iotest.ErrReader(errors.New("connection reset")))), nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubStore) Download(ctx context.Context, path string) ([]byte, error) {
	rc, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *stubStore) Stat(ctx context.Context, path string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	return storage.ObjectInfo{Path: path, Size: int64(len(data))}, nil
}

func (s *stubStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	orders    *stubOrders
	photos    *stubPhotos
	store     *stubStore
	sessionID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		orders:    &stubOrders{orders: map[uuid.UUID]models.Order{}},
		photos:    &stubPhotos{},
		store:     &stubStore{objects: map[string][]byte{}, failOpen: map[string]bool{}, failRead: map[string]bool{}},
		sessionID: uuid.New(),
	}
	seq := &stubSequencer{seqs: map[uuid.UUID]int64{env.sessionID: 0}}

	cfg := &config.Config{SupabaseJWTSecret: testSecret}
	m := metrics.New()
	l := zap.NewNop()

	downloads := services.NewDownloadService(env.orders, env.photos, env.store, m, l, services.DownloadOptions{CopyBufferSize: 16})
	photoSvc := services.NewPhotoService(env.photos, seq, env.store, l)

	env.router = handlers.NewRouter(cfg, l, m, handlers.Routes{
		Health:    handlers.NewHealthHandler(nil),
		Downloads: handlers.NewDownloadHandler(downloads, "stream", l),
		Photos:    handlers.NewPhotosHandler(photoSvc),
	})
	return env
}

// addOrder stores an order selecting one photo per title, each present in
// storage, and returns it.
func (e *testEnv) addOrder(status string, titles ...string) models.Order {
	var selected pq.StringArray
	for i, title := range titles {
		p := models.Photo{
			ID:          uuid.New(),
			SessionID:   e.sessionID,
			Title:       title,
			StoragePath: "sessions/" + e.sessionID.String() + "/" + uuid.NewString() + ".jpg",
			Sequence:    int64(i + 1),
			CreatedAt:   time.Date(2024, 6, 1, 10, i, 0, 0, time.UTC),
		}
		e.photos.photos = append(e.photos.photos, p)
		e.store.objects[p.StoragePath] = bytes.Repeat([]byte(title), 64)
		selected = append(selected, p.ID.String())
	}
	order := models.Order{
		ID:               uuid.New(),
		SessionID:        e.sessionID,
		SessionName:      sql.NullString{String: "Sesión Playa", Valid: true},
		Status:           status,
		PublicToken:      orderToken,
		SelectedPhotoIDs: selected,
	}
	e.orders.orders[order.ID] = order
	return order
}

func (e *testEnv) photoPath(order models.Order, i int) string {
	id := uuid.MustParse(order.SelectedPhotoIDs[i])
	for _, p := range e.photos.photos {
		if p.ID == id {
			return p.StoragePath
		}
	}
	return ""
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}
