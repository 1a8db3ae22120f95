// Package catalog serves the storefront's read-only views of categories and
// products, and the administrator writes that maintain them.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func remoteErr(op string, err error) error {
	zap.L().Error("catalog query failed", zap.String("op", op), zap.Error(err))
	return apperr.E(apperr.KindRemoteQuery, op, err)
}

// ListCategories returns all categories in display order.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	const op = "catalog.ListCategories"
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	if rows == nil {
		rows = []domain.Category{}
	}
	return rows, nil
}

// GetCategoryBySlug requires exactly one category with the slug.
func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	const op = "catalog.GetCategoryBySlug"
	rows, err := s.repo.FindCategoriesBySlug(ctx, slug, 2)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	if len(rows) != 1 {
		return nil, apperr.NotFound(op, "category %q", slug)
	}
	return &rows[0], nil
}

// ListProducts returns products with their category and ordered images. Only
// available products are returned unless includeInactive is set.
func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	return s.listProducts(ctx, "catalog.ListProducts", ProductFilter{IncludeInactive: includeInactive})
}

// ListProductsByCategory returns the available products of the category with slug.
func (s *Service) ListProductsByCategory(ctx context.Context, slug string) (*domain.Category, []domain.Product, error) {
	cat, err := s.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.listProducts(ctx, "catalog.ListProductsByCategory", ProductFilter{CategoryID: cat.ID})
	if err != nil {
		return nil, nil, err
	}
	return cat, rows, nil
}

func (s *Service) listProducts(ctx context.Context, op string, filter ProductFilter) ([]domain.Product, error) {
	rows, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	if rows == nil {
		rows = []domain.Product{}
	}
	for i := range rows {
		PrepareImages(&rows[i])
	}
	return rows, nil
}

// GetProductBySlug requires exactly one product with the slug. Unavailable
// products are only visible to administrators.
func (s *Service) GetProductBySlug(ctx context.Context, slug string, isAdmin bool) (*domain.Product, error) {
	const op = "catalog.GetProductBySlug"
	rows, err := s.repo.FindProductsBySlug(ctx, slug, !isAdmin, 2)
	if err != nil {
		return nil, remoteErr(op, err)
	}
	if len(rows) != 1 {
		return nil, apperr.NotFound(op, "product %q", slug)
	}
	p := &rows[0]
	PrepareImages(p)
	if p.Variants == nil {
		p.Variants = []domain.ProductVariant{}
	}
	return p, nil
}

// PrepareImages sorts images by display order and derives the primary image URL.
func PrepareImages(p *domain.Product) {
	if p.Images == nil {
		p.Images = []domain.ProductImage{}
	}
	sort.SliceStable(p.Images, func(i, j int) bool {
		return p.Images[i].DisplayOrder < p.Images[j].DisplayOrder
	})
	p.PrimaryImage = ""
	if img := PrimaryImage(p.Images); img != nil {
		p.PrimaryImage = img.ImageURL
	}
}

// PrimaryImage picks the image flagged primary, falling back to the first of
// images. images must already be in display order.
func PrimaryImage(images []domain.ProductImage) *domain.ProductImage {
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		if images[i].IsPrimary {
			return &images[i]
		}
	}
	return &images[0]
}

// CategoryInput is the administrator editable part of a category
type CategoryInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Slug         string `json:"slug" validate:"omitempty,max=200"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

// ProductInput is the administrator editable part of a product. A nil
// Variants leaves the stored variants untouched; variants sent with the ID
// of an existing one keep that ID.
type ProductInput struct {
	CategoryID      int64                   `json:"category_id,string" validate:"required"`
	Name            string                  `json:"name" validate:"required,max=200"`
	Slug            string                  `json:"slug" validate:"omitempty,max=200"`
	Price           decimal.Decimal         `json:"price"`
	Origin          string                  `json:"origin" validate:"max=200"`
	Description     string                  `json:"description"`
	WhatsappMessage string                  `json:"whatsapp_message"`
	Available       bool                    `json:"available"`
	DisplayOrder    int                     `json:"display_order"`
	Variants        []domain.ProductVariant `json:"variants"`
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	const op = "catalog.CreateCategory"
	c := &domain.Category{Description: in.Description, DisplayOrder: in.DisplayOrder}
	if err := s.fillCategory(ctx, op, c, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, apperr.E(apperr.KindMetadataWrite, op, err)
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (*domain.Category, error) {
	const op = "catalog.UpdateCategory"
	c, err := s.repo.GetCategory(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "category %d", id)
	}
	if err != nil {
		return nil, remoteErr(op, err)
	}
	c.Description = in.Description
	c.DisplayOrder = in.DisplayOrder
	if err := s.fillCategory(ctx, op, c, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, apperr.E(apperr.KindMetadataWrite, op, err)
	}
	return c, nil
}

func (s *Service) fillCategory(ctx context.Context, op string, c *domain.Category, in CategoryInput) error {
	c.Name = strings.TrimSpace(in.Name)
	if c.Name == "" {
		return apperr.Validation(op, "category name is required")
	}
	c.Slug = Slugify(in.Slug)
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return apperr.Validation(op, "category slug is empty")
	}
	rows, err := s.repo.FindCategoriesBySlug(ctx, c.Slug, 1)
	if err != nil {
		return remoteErr(op, err)
	}
	if len(rows) > 0 && rows[0].ID != c.ID {
		return apperr.E(apperr.KindConflict, op, errors.Errorf("category slug %q already in use", c.Slug))
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	const op = "catalog.CreateProduct"
	p := &domain.Product{}
	if err := s.fillProduct(ctx, op, p, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, apperr.E(apperr.KindMetadataWrite, op, err)
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*domain.Product, error) {
	const op = "catalog.UpdateProduct"
	p, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "product %d", id)
	}
	if err != nil {
		return nil, remoteErr(op, err)
	}
	if err := s.fillProduct(ctx, op, p, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, p, in.Variants != nil); err != nil {
		return nil, apperr.E(apperr.KindMetadataWrite, op, err)
	}
	return p, nil
}

func (s *Service) fillProduct(ctx context.Context, op string, p *domain.Product, in ProductInput) error {
	p.Name = strings.TrimSpace(in.Name)
	if p.Name == "" {
		return apperr.Validation(op, "product name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation(op, "price must not be negative")
	}
	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation(op, "category %d does not exist", in.CategoryID)
		}
		return remoteErr(op, err)
	}
	p.Slug = Slugify(in.Slug)
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Slug == "" {
		return apperr.Validation(op, "product slug is empty")
	}
	rows, err := s.repo.FindProductsBySlug(ctx, p.Slug, false, 1)
	if err != nil {
		return remoteErr(op, err)
	}
	if len(rows) > 0 && rows[0].ID != p.ID {
		return apperr.E(apperr.KindConflict, op, errors.Errorf("product slug %q already in use", p.Slug))
	}

	p.CategoryID = in.CategoryID
	p.Price = in.Price
	p.Origin = strings.TrimSpace(in.Origin)
	p.Description = in.Description
	p.WhatsappMessage = in.WhatsappMessage
	p.Available = in.Available
	p.DisplayOrder = in.DisplayOrder
	if in.Variants == nil {
		return nil
	}
	current := make(map[int64]domain.ProductVariant, len(p.Variants))
	for _, v := range p.Variants {
		current[v.ID] = v
	}
	variants := make([]domain.ProductVariant, 0, len(in.Variants))
	for i, v := range in.Variants {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return apperr.Validation(op, "variant %d has no name", i+1)
		}
		// unknown IDs become new rows, an ID is only kept once
		row, known := current[v.ID]
		if !known {
			row = domain.ProductVariant{}
		}
		delete(current, v.ID)
		row.Name = name
		row.Description = strings.TrimSpace(v.Description)
		row.DisplayOrder = i
		variants = append(variants, row)
	}
	p.Variants = variants
	return nil
}

// SetAvailability shows or hides a product on the public storefront.
func (s *Service) SetAvailability(ctx context.Context, id int64, available bool) error {
	const op = "catalog.SetAvailability"
	err := s.repo.SetAvailability(ctx, id, available)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "product %d", id)
	}
	if err != nil {
		return apperr.E(apperr.KindMetadataWrite, op, err)
	}
	return nil
}
