package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/pkg/common"
)

func init() {
	// prices travel as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Category groups products on the storefront
type Category struct {
	ID           int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	Name         string    `json:"name" gorm:"size:200"`
	Slug         string    `json:"slug" gorm:"size:200;uniqueIndex"`
	Description  string    `json:"description" gorm:"type:text"`
	DisplayOrder int       `json:"display_order" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == 0 {
		c.ID = common.UUIDint64()
	}
	return nil
}

// Product is a catalog item. PrimaryImage is derived on read and never stored.
type Product struct {
	ID              int64            `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	CategoryID      int64            `json:"category_id,string" gorm:"index"`
	Name            string           `json:"name" gorm:"size:200"`
	Slug            string           `json:"slug" gorm:"size:200;uniqueIndex"`
	Price           decimal.Decimal  `json:"price" gorm:"type:decimal(12,2)"`
	Origin          string           `json:"origin" gorm:"size:200"`
	Description     string           `json:"description" gorm:"type:text"`
	WhatsappMessage string           `json:"whatsapp_message" gorm:"type:text"`
	Available       bool             `json:"available" gorm:"index"`
	DisplayOrder    int              `json:"display_order" gorm:"index"`
	Category        *Category        `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Images          []ProductImage   `json:"images" gorm:"foreignKey:ProductID"`
	Variants        []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	PrimaryImage    string           `json:"primary_image" gorm:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == 0 {
		p.ID = common.UUIDint64()
	}
	return nil
}

// ProductImage is the metadata row of an image stored in the object store.
type ProductImage struct {
	ID           int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	ProductID    int64     `json:"product_id,string" gorm:"index"`
	ImageURL     string    `json:"image_url" gorm:"size:1024"`
	AltText      string    `json:"alt_text" gorm:"size:255"`
	IsPrimary    bool      `json:"is_primary"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ProductImage) TableName() string {
	return "product_images"
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	if i.ID == 0 {
		i.ID = common.UUIDint64()
	}
	return nil
}

// ProductVariant is a selectable option of a product, e.g. a color or size
type ProductVariant struct {
	ID           int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	ProductID    int64     `json:"product_id,string" gorm:"index"`
	Name         string    `json:"name" gorm:"size:200"`
	Description  string    `json:"description" gorm:"size:500"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == 0 {
		v.ID = common.UUIDint64()
	}
	return nil
}
