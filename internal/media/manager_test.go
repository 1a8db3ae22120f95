package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/storage"
)

const productID int64 = 7

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type flakyRepo struct {
	*GormRepository
	createErr error
	failOrder map[int64]bool
}

func (r *flakyRepo) Create(ctx context.Context, img *domain.ProductImage) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.GormRepository.Create(ctx, img)
}

func (r *flakyRepo) UpdateOrder(ctx context.Context, productID, id int64, displayOrder int, isPrimary bool) error {
	if r.failOrder[id] {
		return errors.New("row locked")
	}
	return r.GormRepository.UpdateOrder(ctx, productID, id, displayOrder, isPrimary)
}

type flakyStore struct {
	*storage.MemoryStore
	putErr    error
	removeErr error

	mu      sync.Mutex
	puts    int
	removed []string
}

func (s *flakyStore) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, body, size, opts)
}

func (s *flakyStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	s.removed = append(s.removed, keys...)
	s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.MemoryStore.Remove(ctx, keys...)
}

type harness struct {
	db    *gorm.DB
	repo  *flakyRepo
	store *flakyStore
	mgr   *Manager
}

func newHarness(t *testing.T, opts ...Option) *harness {
	db := newTestDB(t)
	h := &harness{
		db:    db,
		repo:  &flakyRepo{GormRepository: NewGormRepository(db), failOrder: map[int64]bool{}},
		store: &flakyStore{MemoryStore: storage.NewMemoryStore("https://x.supabase.co", "products")},
	}
	opts = append([]Option{
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		WithTokenSource(func() string { return "abcdefghi" }),
	}, opts...)
	h.mgr = NewManager(h.repo, h.store, opts...)
	return h
}

func (h *harness) countRows(t *testing.T) int64 {
	var n int64
	if err := h.db.Model(&domain.ProductImage{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func TestUploadImageRejectsOversizedFile(t *testing.T) {
	h := newHarness(t)
	big := bytes.Repeat([]byte{0}, 15*1024*1024)
	_, err := h.mgr.UploadImage(context.Background(), FileFromBytes("big.png", "image/png", big), productID, UploadOptions{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if h.store.puts != 0 || h.store.Len() != 0 {
		t.Errorf("Expected no storage write, got %d puts", h.store.puts)
	}
	if n := h.countRows(t); n != 0 {
		t.Errorf("Expected no metadata row, got %d", n)
	}
}

func TestUploadImageRejectsNonImage(t *testing.T) {
	h := newHarness(t)
	_, err := h.mgr.UploadImage(context.Background(), FileFromBytes("notes.txt", "text/plain", []byte("hola")), productID, UploadOptions{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	_, err = h.mgr.UploadImage(context.Background(), FileFromBytes("notes", "", []byte("plain text body")), productID, UploadOptions{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Expected sniffed text to be rejected, got %v", err)
	}
	if h.store.puts != 0 {
		t.Errorf("Expected no storage write, got %d", h.store.puts)
	}
}

func TestUploadImage(t *testing.T) {
	h := newHarness(t)
	res, err := h.mgr.UploadImage(context.Background(), FileFromBytes("Foto.Final.PNG", "", pngHeader), productID, UploadOptions{DisplayOrder: 3})
	if err != nil {
		t.Fatalf("Expected upload to succeed, got %v", err)
	}
	if res.FileName != "7/1700000000000-abcdefghi.png" {
		t.Errorf("Expected generated file name, got %s", res.FileName)
	}
	if res.FilePath != "product-images/7/1700000000000-abcdefghi.png" {
		t.Errorf("Expected namespaced file path, got %s", res.FilePath)
	}
	if res.AltText != "Foto" {
		t.Errorf("Expected alt text Foto, got %s", res.AltText)
	}
	if res.DisplayOrder != 3 || res.IsPrimary {
		t.Errorf("Expected display order 3 and not primary, got %+v", res.ProductImage)
	}
	if res.FileSize != int64(len(pngHeader)) {
		t.Errorf("Expected file size %d, got %d", len(pngHeader), res.FileSize)
	}
	_, ct, ok := h.store.Get(res.FilePath)
	if !ok || ct != "image/png" {
		t.Errorf("Expected stored object with sniffed type image/png, got %q (%v)", ct, ok)
	}
	want := "https://x.supabase.co/storage/v1/object/public/products/" + res.FilePath
	if res.ImageURL != want {
		t.Errorf("Expected public url %s, got %s", want, res.ImageURL)
	}
	if n := h.countRows(t); n != 1 {
		t.Errorf("Expected one metadata row, got %d", n)
	}
}

func TestUploadImageKeyFormat(t *testing.T) {
	db := newTestDB(t)
	mgr := NewManager(NewGormRepository(db), storage.NewMemoryStore("http://local", "products"))
	res, err := mgr.UploadImage(context.Background(), FileFromBytes("a.JPG", "image/jpeg", []byte("jpg")), 42, UploadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	re := regexp.MustCompile(`^product-images/42/\d{13}-[0-9a-z]{9}\.jpg$`)
	if !re.MatchString(res.FilePath) {
		t.Errorf("Expected key matching %s, got %s", re, res.FilePath)
	}
}

func TestUploadImageStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.store.putErr = errors.New("bucket unavailable")
	_, err := h.mgr.UploadImage(context.Background(), FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	if !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("Expected StorageWriteError, got %v", err)
	}
	if n := h.countRows(t); n != 0 {
		t.Errorf("Expected no metadata row, got %d", n)
	}
}

func TestUploadImageMetadataFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.repo.createErr = errors.New("insert rejected")
	_, err := h.mgr.UploadImage(context.Background(), FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	if !errors.Is(err, apperr.ErrMetadataWrite) {
		t.Fatalf("Expected MetadataWriteError, got %v", err)
	}
	if h.store.Len() != 0 {
		t.Errorf("Expected stored object to be removed, %d left", h.store.Len())
	}
	if len(h.store.removed) != 1 || h.store.removed[0] != "product-images/7/1700000000000-abcdefghi.png" {
		t.Errorf("Expected compensating delete of the written key, got %v", h.store.removed)
	}
}

func TestUploadImageCompensationFailureKeepsOriginalError(t *testing.T) {
	h := newHarness(t)
	h.repo.createErr = errors.New("insert rejected")
	h.store.removeErr = errors.New("remove failed too")
	_, err := h.mgr.UploadImage(context.Background(), FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	if !errors.Is(err, apperr.ErrMetadataWrite) {
		t.Fatalf("Expected MetadataWriteError, got %v", err)
	}
	if !strings.Contains(err.Error(), "insert rejected") {
		t.Errorf("Expected original cause in message, got %q", err.Error())
	}
}

func TestUploadMultiple(t *testing.T) {
	h := newHarness(t)
	files := []File{
		FileFromBytes("uno.png", "image/png", pngHeader),
		FileFromBytes("dos.txt", "text/plain", []byte("x")),
		FileFromBytes("tres.png", "image/png", pngHeader),
	}
	var n int
	h.mgr.token = func() string { n++; return fmt.Sprintf("token%04d", n) }

	res := h.mgr.UploadMultiple(context.Background(), files, productID, BatchOptions{MakeFirstPrimary: true})
	if res.SuccessCount != 2 || res.FailureCount != 1 {
		t.Fatalf("Expected 2 successes and 1 failure, got %d/%d", res.SuccessCount, res.FailureCount)
	}
	if res.Failed[0].Filename != "dos.txt" || res.Failed[0].Error == "" {
		t.Errorf("Expected failure for dos.txt with message, got %+v", res.Failed[0])
	}
	if res.Succeeded[0].DisplayOrder != 0 || res.Succeeded[1].DisplayOrder != 2 {
		t.Errorf("Expected index derived display orders 0 and 2, got %d and %d",
			res.Succeeded[0].DisplayOrder, res.Succeeded[1].DisplayOrder)
	}
	if !res.Succeeded[0].IsPrimary || res.Succeeded[1].IsPrimary {
		t.Error("Expected only the first file to be primary")
	}
	if res.Succeeded[1].AltText != "tres - Imagen 3" {
		t.Errorf("Expected default alt text, got %q", res.Succeeded[1].AltText)
	}

	res = h.mgr.UploadMultiple(context.Background(), files[:1], productID, BatchOptions{StartOrder: 10, AltText: "Silla"})
	if res.Succeeded[0].DisplayOrder != 10 || res.Succeeded[0].AltText != "Silla" || res.Succeeded[0].IsPrimary {
		t.Errorf("Expected start order 10 with given alt text, got %+v", res.Succeeded[0].ProductImage)
	}
}

func TestDeleteImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.mgr.UploadImage(ctx, FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.DeleteImage(ctx, res.ID); err != nil {
		t.Fatalf("Expected delete to succeed, got %v", err)
	}
	if h.store.Has(res.FilePath) {
		t.Error("Expected stored object to be removed")
	}
	if n := h.countRows(t); n != 0 {
		t.Errorf("Expected metadata row removed, got %d", n)
	}
	if err := h.mgr.DeleteImage(ctx, res.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NotFound on second delete, got %v", err)
	}
}

func TestDeleteImageForeignURL(t *testing.T) {
	h := newHarness(t)
	img := domain.ProductImage{ProductID: productID, ImageURL: "https://cdn.example.com/silla.png"}
	h.db.Create(&img)

	if err := h.mgr.DeleteImage(context.Background(), img.ID); err != nil {
		t.Fatalf("Expected delete to succeed, got %v", err)
	}
	if len(h.store.removed) != 0 {
		t.Errorf("Expected no storage delete, got %v", h.store.removed)
	}
	if n := h.countRows(t); n != 0 {
		t.Errorf("Expected metadata row removed, got %d", n)
	}
}

func TestDeleteImageStorageFailureIsNotEscalated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.mgr.UploadImage(ctx, FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	h.store.removeErr = errors.New("remote down")
	if err := h.mgr.DeleteImage(ctx, res.ID); err != nil {
		t.Fatalf("Expected storage failure to be logged only, got %v", err)
	}
	if n := h.countRows(t); n != 0 {
		t.Errorf("Expected metadata row removed, got %d", n)
	}
}

func seedImages(t *testing.T, db *gorm.DB, pid int64, n int) []domain.ProductImage {
	t.Helper()
	imgs := make([]domain.ProductImage, n)
	for i := range imgs {
		imgs[i] = domain.ProductImage{ProductID: pid, ImageURL: fmt.Sprintf("u/%d/%d", pid, i), DisplayOrder: i, IsPrimary: i == 0}
		if err := db.Create(&imgs[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
	return imgs
}

func TestSetPrimaryImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	imgs := seedImages(t, h.db, productID, 4)
	other := seedImages(t, h.db, 8, 2)

	for _, target := range []domain.ProductImage{imgs[2], imgs[3], imgs[0]} {
		if err := h.mgr.SetPrimaryImage(ctx, target.ID, productID); err != nil {
			t.Fatalf("Expected set primary to succeed, got %v", err)
		}
		rows, _ := h.mgr.ListImages(ctx, productID)
		var primaries []int64
		for _, r := range rows {
			if r.IsPrimary {
				primaries = append(primaries, r.ID)
			}
		}
		if len(primaries) != 1 || primaries[0] != target.ID {
			t.Errorf("Expected only %d primary, got %v", target.ID, primaries)
		}
	}

	if err := h.mgr.SetPrimaryImage(ctx, other[1].ID, productID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NotFound for image of another product, got %v", err)
	}
	rows, _ := h.mgr.ListImages(ctx, 8)
	if !rows[0].IsPrimary || rows[1].IsPrimary {
		t.Error("Expected other product's images untouched")
	}
}

func TestReorderImages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	imgs := seedImages(t, h.db, productID, 4)

	updates := []OrderUpdate{
		{ID: imgs[0].ID, DisplayOrder: 3},
		{ID: imgs[1].ID, DisplayOrder: 2},
		{ID: imgs[2].ID, DisplayOrder: 1},
		{ID: imgs[3].ID, DisplayOrder: 0, IsPrimary: true},
	}
	if err := h.mgr.ReorderImages(ctx, productID, updates); err != nil {
		t.Fatalf("Expected reorder to succeed, got %v", err)
	}
	rows, _ := h.mgr.ListImages(ctx, productID)
	if rows[0].ID != imgs[3].ID || !rows[0].IsPrimary || rows[3].ID != imgs[0].ID || rows[3].IsPrimary {
		t.Errorf("Expected reversed order with last image primary, got %+v", rows)
	}

	h.repo.failOrder[imgs[0].ID] = true
	h.repo.failOrder[imgs[2].ID] = true
	err := h.mgr.ReorderImages(ctx, productID, []OrderUpdate{
		{ID: imgs[0].ID, DisplayOrder: 0},
		{ID: imgs[1].ID, DisplayOrder: 9},
		{ID: imgs[2].ID, DisplayOrder: 0},
	})
	if !errors.Is(err, apperr.ErrReorder) {
		t.Fatalf("Expected ReorderError, got %v", err)
	}
	if got := len(apperr.Failures(err)); got != 2 {
		t.Errorf("Expected 2 aggregated failures, got %d", got)
	}
	img, _ := h.repo.GetByID(ctx, imgs[1].ID)
	if img.DisplayOrder != 9 {
		t.Errorf("Expected successful update to stay applied, got order %d", img.DisplayOrder)
	}
}

func TestReorderImagesOfOtherProduct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	own := seedImages(t, h.db, productID, 1)
	other := seedImages(t, h.db, productID+1, 2)

	err := h.mgr.ReorderImages(ctx, productID, []OrderUpdate{
		{ID: own[0].ID, DisplayOrder: 5},
		{ID: other[1].ID, DisplayOrder: 0, IsPrimary: true},
	})
	if !errors.Is(err, apperr.ErrReorder) {
		t.Fatalf("Expected ReorderError, got %v", err)
	}
	failures := apperr.Failures(err)
	if len(failures) != 1 || !errors.Is(failures[0], gorm.ErrRecordNotFound) {
		t.Errorf("Expected one not found failure, got %v", failures)
	}
	img, _ := h.repo.GetByID(ctx, other[1].ID)
	if img.DisplayOrder != 1 || img.IsPrimary {
		t.Errorf("Expected other product's image untouched, got %+v", img)
	}
	img, _ = h.repo.GetByID(ctx, own[0].ID)
	if img.DisplayOrder != 5 {
		t.Errorf("Expected own image reordered, got order %d", img.DisplayOrder)
	}
}

func TestListImagesEmpty(t *testing.T) {
	h := newHarness(t)
	rows, err := h.mgr.ListImages(context.Background(), 999)
	if err != nil {
		t.Fatal(err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", rows)
	}
}

func TestSweepOrphans(t *testing.T) {
	db := newTestDB(t)
	store := storage.NewMemoryStore("http://local", "products")
	mgr := NewManager(NewGormRepository(db), store, WithSweepWorkers(2))
	ctx := context.Background()

	kept, err := mgr.UploadImage(ctx, FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	store.Touch(kept.FilePath, old)
	for _, key := range []string{"product-images/7/old-1.png", "product-images/9/old-2.png", "product-images/7/fresh.png"} {
		_ = store.Put(ctx, key, bytes.NewReader(pngHeader), int64(len(pngHeader)), storage.PutOptions{})
	}
	store.Touch("product-images/7/old-1.png", old)
	store.Touch("product-images/9/old-2.png", old)

	report, err := mgr.SweepOrphans(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 4 || report.Orphaned != 2 || report.Removed != 2 || report.Failed != 0 {
		t.Errorf("Expected 4 scanned, 2 orphaned and removed, got %+v", report)
	}
	if !store.Has(kept.FilePath) || !store.Has("product-images/7/fresh.png") {
		t.Error("Expected referenced and fresh objects to survive")
	}
	if store.Has("product-images/9/old-2.png") {
		t.Error("Expected old orphan to be removed")
	}
}

func TestEventsPublished(t *testing.T) {
	bus := EventBus.New()
	var (
		mu     sync.Mutex
		topics []string
	)
	for _, topic := range Topics {
		_ = bus.Subscribe(topic, func(evt Event) {
			mu.Lock()
			topics = append(topics, evt.Topic)
			mu.Unlock()
		})
	}
	h := newHarness(t, WithEventBus(bus))
	ctx := context.Background()
	res, err := h.mgr.UploadImage(ctx, FileFromBytes("a.png", "image/png", pngHeader), productID, UploadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_ = h.mgr.SetPrimaryImage(ctx, res.ID, productID)
	_ = h.mgr.DeleteImage(ctx, res.ID)

	want := []string{TopicImageUploaded, TopicPrimaryChanged, TopicImageDeleted}
	if strings.Join(topics, ",") != strings.Join(want, ",") {
		t.Errorf("Expected topics %v, got %v", want, topics)
	}
}
