package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/domain"
)

// ProductFilter narrows product listings
type ProductFilter struct {
	IncludeInactive bool
	CategoryID      int64
}

// Repository handles catalog reads and admin writes
type Repository interface {
	// ListCategories returns every category ordered by display order
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// FindCategoriesBySlug returns at most limit categories with the slug
	FindCategoriesBySlug(ctx context.Context, slug string, limit int) ([]domain.Category, error)

	// GetCategory retrieves a category by ID
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)

	// CreateCategory inserts a new category
	CreateCategory(ctx context.Context, c *domain.Category) error

	// UpdateCategory saves all fields of an existing category
	UpdateCategory(ctx context.Context, c *domain.Category) error

	// ListProducts returns products with category and images, ordered by display order
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)

	// FindProductsBySlug returns at most limit products with the slug, with
	// category, images and variants. onlyAvailable hides unavailable products.
	FindProductsBySlug(ctx context.Context, slug string, onlyAvailable bool, limit int) ([]domain.Product, error)

	// GetProduct retrieves a product by ID
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// CreateProduct inserts a product and its variants
	CreateProduct(ctx context.Context, p *domain.Product) error

	// UpdateProduct saves the product columns. With syncVariants the stored
	// variants are brought in line with p.Variants: rows with a known ID are
	// updated, rows without one are inserted and the rest are deleted.
	UpdateProduct(ctx context.Context, p *domain.Product, syncVariants bool) error

	// SetAvailability toggles whether a product is listed publicly
	SetAvailability(ctx context.Context, id int64, available bool) error
}

// GormRepository is the GORM implementation of Repository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based catalog repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []domain.Category
	err := r.db.WithContext(ctx).Order("display_order ASC").Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *GormRepository) FindCategoriesBySlug(ctx context.Context, slug string, limit int) ([]domain.Category, error) {
	var rows []domain.Category
	err := r.db.WithContext(ctx).Where("slug = ?", slug).Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *GormRepository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	return r.db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"name":          c.Name,
		"slug":          c.Slug,
		"description":   c.Description,
		"display_order": c.DisplayOrder,
	}).Error
}

func (r *GormRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	var rows []domain.Product
	query := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Images").
		Order("display_order ASC").
		Order("id ASC")
	if !filter.IncludeInactive {
		query = query.Where("available = ?", true)
	}
	if filter.CategoryID != 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *GormRepository) FindProductsBySlug(ctx context.Context, slug string, onlyAvailable bool, limit int) ([]domain.Product, error) {
	var rows []domain.Product
	query := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Images").
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("slug = ?", slug)
	if onlyAvailable {
		query = query.Where("available = ?", true)
	}
	err := query.Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).Preload("Variants").Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Images").Create(p).Error
}

func (r *GormRepository) UpdateProduct(ctx context.Context, p *domain.Product, syncVariants bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"category_id":      p.CategoryID,
			"name":             p.Name,
			"slug":             p.Slug,
			"price":            p.Price,
			"origin":           p.Origin,
			"description":      p.Description,
			"whatsapp_message": p.WhatsappMessage,
			"available":        p.Available,
			"display_order":    p.DisplayOrder,
		}).Error
		if err != nil || !syncVariants {
			return err
		}
		return syncVariantRows(tx, p)
	})
}

func syncVariantRows(tx *gorm.DB, p *domain.Product) error {
	keep := make([]int64, 0, len(p.Variants))
	for i := range p.Variants {
		p.Variants[i].ProductID = p.ID
		if p.Variants[i].ID != 0 {
			keep = append(keep, p.Variants[i].ID)
		}
	}
	stale := tx.Where("product_id = ?", p.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&domain.ProductVariant{}).Error; err != nil {
		return err
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.ID == 0 {
			if err := tx.Create(v).Error; err != nil {
				return err
			}
			continue
		}
		err := tx.Model(&domain.ProductVariant{}).
			Where("id = ? AND product_id = ?", v.ID, p.ID).
			Updates(map[string]interface{}{
				"name":          v.Name,
				"description":   v.Description,
				"display_order": v.DisplayOrder,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *GormRepository) SetAvailability(ctx context.Context, id int64, available bool) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
