package app

import (
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
)

// checkCategories makes sure a fresh catalog has somewhere to put products
func (a *Application) checkCategories() {
	var count int64
	if err := a.gormDB.Model(&domain.Category{}).Count(&count).Error; err != nil {
		zap.L().Error("failed to count categories", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}
	if err := a.gormDB.Create(&domain.Category{
		Name:         "General",
		Slug:         "general",
		DisplayOrder: 0,
	}).Error; err != nil {
		zap.L().Error("failed to create default category", zap.Error(err))
		return
	}
	zap.L().Info("initialized default category", zap.String("slug", "general"))
}

// checkAdmins grants admin access to the identities listed in the config
func (a *Application) checkAdmins() {
	for _, userID := range a.appConfig.Auth.AdminUserIDs {
		var count int64
		a.gormDB.Model(&domain.AdminUser{}).Where("user_id = ?", userID).Count(&count)
		if count > 0 {
			continue
		}
		if err := a.gormDB.Create(&domain.AdminUser{
			ID:     common.UUIDint64(),
			UserID: userID,
			Remark: "config",
		}).Error; err != nil {
			zap.L().Error("failed to create admin user", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		zap.L().Info("initialized admin user", zap.String("user_id", userID))
	}
}
