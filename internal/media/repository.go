package media

import (
	"context"

	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/domain"
)

// Repository handles product image metadata rows
type Repository interface {
	// Create inserts a new image row
	Create(ctx context.Context, img *domain.ProductImage) error

	// GetByID retrieves an image row by ID
	GetByID(ctx context.Context, id int64) (*domain.ProductImage, error)

	// Delete removes an image row
	Delete(ctx context.Context, id int64) error

	// ListByProduct returns a product's images ordered by display order
	ListByProduct(ctx context.Context, productID int64) ([]domain.ProductImage, error)

	// UpdateOrder sets display order and primary flag of one image of the
	// product. An image of another product is not found.
	UpdateOrder(ctx context.Context, productID, id int64, displayOrder int, isPrimary bool) error

	// SetPrimary flags imageID as the only primary image of productID in one
	// transaction. Returns gorm.ErrRecordNotFound when the image is not the product's.
	SetPrimary(ctx context.Context, productID, imageID int64) error

	// ListURLs returns the public URL of every image row
	ListURLs(ctx context.Context) ([]string, error)
}

// GormRepository is the GORM implementation of Repository
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based image repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) Create(ctx context.Context, img *domain.ProductImage) error {
	return r.db.WithContext(ctx).Create(img).Error
}

func (r *GormRepository) GetByID(ctx context.Context, id int64) (*domain.ProductImage, error) {
	var img domain.ProductImage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&img).Error
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *GormRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ProductImage{}).Error
}

func (r *GormRepository) ListByProduct(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	var rows []domain.ProductImage
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("display_order ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *GormRepository) UpdateOrder(ctx context.Context, productID, id int64, displayOrder int, isPrimary bool) error {
	res := r.db.WithContext(ctx).Model(&domain.ProductImage{}).
		Where("id = ? AND product_id = ?", id, productID).
		Updates(map[string]interface{}{
			"display_order": displayOrder,
			"is_primary":    isPrimary,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepository) SetPrimary(ctx context.Context, productID, imageID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&domain.ProductImage{}).
			Where("id = ? AND product_id = ?", imageID, productID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&domain.ProductImage{}).
			Where("product_id = ?", productID).
			Update("is_primary", gorm.Expr("(id = ?)", imageID)).Error
	})
}

func (r *GormRepository) ListURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).Model(&domain.ProductImage{}).Pluck("image_url", &urls).Error
	return urls, err
}
