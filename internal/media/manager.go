// Package media manages product images: the object in the store and the
// metadata row that points at it.
package media

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/storage"
	"github.com/talkincode/storefront/pkg/common"
)

// MaxImageSize is the largest accepted upload, 10 MiB.
const MaxImageSize = 10 << 20

const compensateTimeout = 30 * time.Second

type UploadOptions struct {
	AltText      string
	IsPrimary    bool
	DisplayOrder int
}

type BatchOptions struct {
	AltText          string
	MakeFirstPrimary bool
	StartOrder       int
}

// UploadResult is the stored metadata row plus where the object went.
type UploadResult struct {
	domain.ProductImage
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type UploadFailure struct {
	Filename string `json:"file"`
	Error    string `json:"error"`
}

// BatchResult partitions a multi-file upload into successes and failures.
type BatchResult struct {
	Succeeded    []UploadResult  `json:"success"`
	Failed       []UploadFailure `json:"errors"`
	SuccessCount int             `json:"total_success"`
	FailureCount int             `json:"total_errors"`
}

type OrderUpdate struct {
	ID           int64 `json:"id,string" validate:"required"`
	DisplayOrder int   `json:"display_order" validate:"min=0"`
	IsPrimary    bool  `json:"is_primary"`
}

type Option func(*Manager)

func WithEventBus(bus EventBus.BusPublisher) Option {
	return func(m *Manager) { m.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithTokenSource(token func() string) Option {
	return func(m *Manager) { m.token = token }
}

func WithSweepWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sweepWorkers = n
		}
	}
}

type Manager struct {
	repo         Repository
	store        storage.ObjectStore
	bus          EventBus.BusPublisher
	now          func() time.Time
	token        func() string
	sweepWorkers int
}

func NewManager(repo Repository, store storage.ObjectStore, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		store:        store,
		now:          time.Now,
		token:        func() string { return common.RandomToken(9) },
		sweepWorkers: 8,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// validate checks type and size before anything is written. Files without a
// declared content type are sniffed.
func (m *Manager) validate(op string, file File) (string, error) {
	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		rc, err := file.Open()
		if err != nil {
			return "", apperr.Validation(op, "cannot read %s: %v", file.Name, err)
		}
		mtype, err := mimetype.DetectReader(rc)
		_ = rc.Close()
		if err != nil {
			return "", apperr.Validation(op, "cannot detect type of %s: %v", file.Name, err)
		}
		contentType = mtype.String()
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation(op, "%s is not an image (%s)", file.Name, contentType)
	}
	if file.Size > MaxImageSize {
		return "", apperr.Validation(op, "%s exceeds the %s limit", file.Name, bytes.Format(MaxImageSize))
	}
	return contentType, nil
}

// UploadImage stores the file and records its metadata row. When the row
// cannot be written the stored object is removed again.
func (m *Manager) UploadImage(ctx context.Context, file File, productID int64, opts UploadOptions) (*UploadResult, error) {
	const op = "media.UploadImage"
	contentType, err := m.validate(op, file)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("%d/%d-%s.%s", productID, m.now().UnixMilli(), m.token(), extension(file.Name))
	filePath := storage.ImagePrefix + "/" + fileName

	rc, err := file.Open()
	if err != nil {
		return nil, apperr.E(apperr.KindStorageWrite, op, errors.Wrap(err, "open upload"))
	}
	err = m.store.Put(ctx, filePath, rc, file.Size, storage.PutOptions{
		ContentType:  contentType,
		CacheControl: storage.DefaultCacheControl,
	})
	_ = rc.Close()
	if err != nil {
		zap.L().Error("image upload failed",
			zap.String("file_path", filePath),
			zap.Error(err),
		)
		return nil, apperr.E(apperr.KindStorageWrite, op, err)
	}

	img := &domain.ProductImage{
		ProductID:    productID,
		ImageURL:     m.store.PublicURL(filePath),
		AltText:      common.IfEmptyStr(opts.AltText, baseName(file.Name)),
		IsPrimary:    opts.IsPrimary,
		DisplayOrder: opts.DisplayOrder,
	}
	if err := m.repo.Create(ctx, img); err != nil {
		zap.L().Error("image metadata insert failed, removing stored object",
			zap.Int64("product_id", productID),
			zap.String("file_path", filePath),
			zap.Error(err),
		)
		m.removeObject(ctx, filePath)
		return nil, apperr.E(apperr.KindMetadataWrite, op, err)
	}

	m.publish(ctx, TopicImageUploaded, productID, img.ID, filePath)
	return &UploadResult{
		ProductImage: *img,
		FilePath:     filePath,
		FileName:     fileName,
		FileSize:     file.Size,
	}, nil
}

// removeObject is best effort: failures are logged and never returned.
func (m *Manager) removeObject(ctx context.Context, key string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := m.store.Remove(cctx, key); err != nil {
		zap.L().Warn("failed to remove stored image",
			zap.String("file_path", key),
			zap.Error(err),
		)
	}
}

// UploadMultiple uploads files one at a time and reports every outcome.
func (m *Manager) UploadMultiple(ctx context.Context, files []File, productID int64, opts BatchOptions) *BatchResult {
	result := &BatchResult{
		Succeeded: []UploadResult{},
		Failed:    []UploadFailure{},
	}
	for i, file := range files {
		itemOpts := UploadOptions{
			AltText:      opts.AltText,
			IsPrimary:    i == 0 && opts.MakeFirstPrimary,
			DisplayOrder: i,
		}
		if opts.StartOrder != 0 {
			itemOpts.DisplayOrder = opts.StartOrder + i
		}
		if itemOpts.AltText == "" {
			itemOpts.AltText = fmt.Sprintf("%s - Imagen %d", baseName(file.Name), i+1)
		}
		res, err := m.UploadImage(ctx, file, productID, itemOpts)
		if err != nil {
			result.Failed = append(result.Failed, UploadFailure{Filename: file.Name, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, *res)
	}
	result.SuccessCount = len(result.Succeeded)
	result.FailureCount = len(result.Failed)
	return result
}

// DeleteImage removes the stored object, best effort, then the metadata row.
// Rows whose URL does not point into the bucket only lose the row.
func (m *Manager) DeleteImage(ctx context.Context, imageID int64) error {
	const op = "media.DeleteImage"
	img, err := m.repo.GetByID(ctx, imageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "image %d", imageID)
	}
	if err != nil {
		return apperr.E(apperr.KindRemoteQuery, op, err)
	}

	if key, ok := storage.KeyFromPublicURL(m.store.Bucket(), img.ImageURL); ok {
		m.removeObject(ctx, key)
	} else {
		zap.L().Warn("image url outside bucket, skipping object removal",
			zap.Int64("image_id", imageID),
			zap.String("image_url", img.ImageURL),
		)
	}

	if err := m.repo.Delete(ctx, imageID); err != nil {
		return apperr.E(apperr.KindMetadataDelete, op, err)
	}
	m.publish(ctx, TopicImageDeleted, img.ProductID, imageID, img.ImageURL)
	return nil
}

// ReorderImages applies every update to the images of productID concurrently.
// Updates that succeed stay applied when others fail; all failures, including
// images that do not belong to the product, are returned together.
func (m *Manager) ReorderImages(ctx context.Context, productID int64, updates []OrderUpdate) error {
	const op = "media.ReorderImages"
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, u := range updates {
		u := u
		g.Go(func() error {
			if err := m.repo.UpdateOrder(ctx, productID, u.ID, u.DisplayOrder, u.IsPrimary); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "image %d", u.ID))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if errs != nil {
		zap.L().Error("image reorder failed",
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Int("total", len(updates)),
			zap.Error(errs),
		)
		return apperr.E(apperr.KindReorder, op, errs)
	}
	m.publish(ctx, TopicImagesReordered, productID, 0, fmt.Sprintf("%d images", len(updates)))
	return nil
}

// ListImages returns a product's images in display order.
func (m *Manager) ListImages(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	rows, err := m.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, apperr.E(apperr.KindRemoteQuery, "media.ListImages", err)
	}
	if rows == nil {
		rows = []domain.ProductImage{}
	}
	return rows, nil
}

// SetPrimaryImage makes imageID the only primary image of productID.
func (m *Manager) SetPrimaryImage(ctx context.Context, imageID, productID int64) error {
	const op = "media.SetPrimaryImage"
	err := m.repo.SetPrimary(ctx, productID, imageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "image %d of product %d", imageID, productID)
	}
	if err != nil {
		return apperr.E(apperr.KindMetadataWrite, op, err)
	}
	m.publish(ctx, TopicPrimaryChanged, productID, imageID, "")
	return nil
}
