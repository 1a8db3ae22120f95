package domain

var Tables = []interface{}{
	// System
	&AdminUser{},
	&SysOprLog{},
	// Catalog
	&Category{},
	&Product{},
	&ProductImage{},
	&ProductVariant{},
}
