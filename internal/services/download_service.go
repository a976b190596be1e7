package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"photo-studio-backend/internal/apperrors"
	"photo-studio-backend/internal/archive"
	"photo-studio-backend/internal/metrics"
	"photo-studio-backend/internal/models"
	"photo-studio-backend/internal/repository"
	"photo-studio-backend/internal/storage"
)

// DefaultArchiveName names downloads whose session has no usable name.
const DefaultArchiveName = "fotos"

const fulfilTimeout = 5 * time.Second

// OrderStore is the part of the order repository downloads need.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkFulfilled(ctx context.Context, id uuid.UUID) (bool, error)
}

// PhotoLister resolves selected photo ids to rows, in upload order.
type PhotoLister interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error)
}

type DownloadOptions struct {
	FallbackName   string
	Concurrency    int
	CopyBufferSize int
}

type DownloadRequest struct {
	OrderID string
	Token   string
	IsAdmin bool
}

// PlanEntry is one photo that will become an archive entry.
type PlanEntry struct {
	PhotoID  uuid.UUID
	Title    string
	Path     string
	Size     int64
	Modified time.Time
}

// DownloadPlan is an authorised order with its resolved entries. Building a
// plan touches storage only to check that objects exist.
type DownloadPlan struct {
	Order    *models.Order
	FileName string
	Entries  []PlanEntry
	Skipped  int
}

// Names returns the archive entry names the plan will produce, in order.
func (p *DownloadPlan) Names() []string {
	reqs := make([]archive.NameRequest, len(p.Entries))
	for i, e := range p.Entries {
		reqs[i] = archive.NameRequest{Title: e.Title, SourcePath: e.Path}
	}
	return archive.AssignNames(reqs)
}

type DownloadService struct {
	orders  OrderStore
	photos  PhotoLister
	store   storage.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    DownloadOptions
}

func NewDownloadService(
	orders OrderStore,
	photos PhotoLister,
	store storage.Store,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts DownloadOptions,
) *DownloadService {
	if opts.FallbackName == "" {
		opts.FallbackName = DefaultArchiveName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadService{
		orders:  orders,
		photos:  photos,
		store:   store,
		metrics: m,
		logger:  logger,
		opts:    opts,
	}
}

// Prepare validates the request, authorises it against the order and
// resolves the entries. Every failure is an *apperrors.Error carrying the
// HTTP status to answer with. Nothing is written anywhere.
func (s *DownloadService) Prepare(ctx context.Context, req DownloadRequest) (*DownloadPlan, error) {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, apperrors.Clone(apperrors.ErrValidation, "invalid order id")
	}
	if req.Token == "" && !req.IsAdmin {
		return nil, apperrors.Clone(apperrors.ErrValidation, "token is required")
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "order not found")
		}
		return nil, apperrors.WithCause(apperrors.ErrInternal, err)
	}
	if err := order.Validate(); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrInternal, err)
	}

	if !req.IsAdmin && !tokenMatches(req.Token, order.PublicToken) {
		return nil, apperrors.ErrUnauthorized
	}

	switch {
	case order.Status == models.OrderStatusPending:
		return nil, apperrors.ErrPaymentPending
	case !order.Downloadable():
		return nil, apperrors.ErrOrderNotEligible
	}

	entries, skipped, err := s.resolve(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		s.logger.Error("no photos resolved for order",
			zap.String("order_id", order.ID.String()),
			zap.Int("selected", len(order.SelectedPhotoIDs)),
		)
		return nil, apperrors.ErrArchiveBuild
	}

	return &DownloadPlan{
		Order:    order,
		FileName: archive.AttachmentName(order.SessionName.String, s.opts.FallbackName),
		Entries:  entries,
		Skipped:  skipped,
	}, nil
}

func tokenMatches(given, stored string) bool {
	if given == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(stored)) == 1
}

// resolve keeps the photos whose row and object both exist. Missing ones are
// logged and skipped; any other storage failure fails the request.
func (s *DownloadService) resolve(ctx context.Context, order *models.Order) ([]PlanEntry, int, error) {
	ids := order.PhotoIDs()
	photos, err := s.photos.ListByIDs(ctx, ids)
	if err != nil {
		return nil, 0, apperrors.WithCause(apperrors.ErrInternal, err)
	}

	found := make(map[uuid.UUID]struct{}, len(photos))
	for _, p := range photos {
		found[p.ID] = struct{}{}
	}
	skipped := 0
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			s.skip(order.ID, id, "", "photo record missing")
			skipped++
		}
	}

	entries := make([]PlanEntry, 0, len(photos))
	for _, p := range photos {
		info, err := s.store.Stat(ctx, p.StoragePath)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.skip(order.ID, p.ID, p.StoragePath, "object missing from storage")
				skipped++
				continue
			}
			return nil, 0, apperrors.WithCause(apperrors.ErrArchiveBuild, err)
		}
		entries = append(entries, PlanEntry{
			PhotoID:  p.ID,
			Title:    p.Title,
			Path:     p.StoragePath,
			Size:     info.Size,
			Modified: p.CreatedAt,
		})
	}
	return entries, skipped, nil
}

func (s *DownloadService) skip(orderID, photoID uuid.UUID, path, reason string) {
	s.metrics.SkippedEntry()
	s.logger.Warn("skipping photo in archive",
		zap.String("order_id", orderID.String()),
		zap.String("photo_id", photoID.String()),
		zap.String("path", path),
		zap.String("reason", reason),
	)
}

// Stream writes the archive to w entry by entry and returns the bytes that
// reached w. On success a paid order is marked fulfilled. A failed or
// canceled stream leaves the order untouched.
func (s *DownloadService) Stream(ctx context.Context, plan *DownloadPlan, w io.Writer) (int64, error) {
	job := archive.NewJob(plan.FileName, archive.ModeStream)
	sources := make([]archive.StreamSource, len(plan.Entries))
	for i, e := range plan.Entries {
		e := e
		modified := e.Modified
		sources[i] = archive.StreamSource{
			Name:     e.Title,
			Path:     e.Path,
			Modified: &modified,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return s.store.Open(ctx, e.Path)
			},
		}
	}

	done := s.metrics.ArchiveStarted(len(sources))
	defer done()
	start := time.Now()

	pipeline := archive.NewPipeline(sources,
		archive.WithJob(job),
		archive.WithBufferSize(s.opts.CopyBufferSize),
	)
	n, err := pipeline.WriteTo(ctx, w)

	s.observe(job.Mode, plan, n, time.Since(start), err,
		zap.String("job_id", job.ID.String()),
		zap.String("status", job.Status().String()),
	)
	if err != nil {
		return n, err
	}
	s.fulfil(ctx, plan.Order)
	return n, nil
}

// Buffer builds the whole archive in memory. Any unreadable photo fails the
// build. The caller calls Complete once the bytes have been sent.
func (s *DownloadService) Buffer(ctx context.Context, plan *DownloadPlan) ([]byte, error) {
	sources := make([]archive.Source, len(plan.Entries))
	for i, e := range plan.Entries {
		modified := e.Modified
		sources[i] = archive.Source{Name: e.Title, Path: e.Path, Modified: &modified}
	}

	done := s.metrics.ArchiveStarted(len(sources))
	defer done()
	start := time.Now()

	builder := archive.NewBuilder(s.store.Download, archive.WithConcurrency(s.opts.Concurrency))
	data, err := builder.Build(ctx, sources)

	s.observe(archive.ModeBuffered, plan, int64(len(data)), time.Since(start), err)
	if err != nil {
		if archive.IsCanceled(err) {
			return nil, err
		}
		return nil, apperrors.WithCause(apperrors.ErrArchiveBuild, err)
	}
	return data, nil
}

// Complete records a successful buffered hand-off.
func (s *DownloadService) Complete(ctx context.Context, plan *DownloadPlan) {
	s.fulfil(ctx, plan.Order)
}

func (s *DownloadService) observe(mode string, plan *DownloadPlan, n int64, took time.Duration, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("order_id", plan.Order.ID.String()),
		zap.String("file_name", plan.FileName),
		zap.String("mode", mode),
		zap.Int("entries", len(plan.Entries)),
		zap.Int64("bytes", n),
		zap.Duration("duration", took),
	)

	var srcErr *archive.SourceError
	outcome := metrics.OutcomeCompleted
	switch {
	case err == nil:
		s.logger.Info("archive delivered", fields...)
	case archive.IsCanceled(err):
		outcome = metrics.OutcomeCanceled
		s.logger.Debug("archive download canceled by client", append(fields, zap.Error(err))...)
	case mode == archive.ModeStream && errors.As(err, &srcErr):
		outcome = metrics.OutcomeAborted
		s.logger.Error("archive aborted on source failure", append(fields,
			zap.Int("entry_index", srcErr.Index),
			zap.String("entry_name", srcErr.Name),
			zap.Error(srcErr.Err),
		)...)
	default:
		outcome = metrics.OutcomeFailed
		s.logger.Error("archive build failed", append(fields, zap.Error(err))...)
	}
	s.metrics.ObserveArchive(mode, outcome, n, took)
}

// fulfil moves a paid order to fulfilled. It runs after the response is
// done, so it must not inherit the request's cancellation, and its failure
// is only logged.
func (s *DownloadService) fulfil(ctx context.Context, order *models.Order) {
	if order.Status != models.OrderStatusPaid {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fulfilTimeout)
	defer cancel()

	changed, err := s.orders.MarkFulfilled(ctx, order.ID)
	if err != nil {
		s.logger.Warn("failed to mark order fulfilled",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	if changed {
		s.logger.Info("order fulfilled", zap.String("order_id", order.ID.String()))
	}
}
