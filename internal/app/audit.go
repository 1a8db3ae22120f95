package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/media"
	"github.com/talkincode/storefront/pkg/common"
)

func (a *Application) subscribeAudit() {
	for _, topic := range media.Topics {
		if err := a.bus.SubscribeAsync(topic, a.recordMediaEvent, false); err != nil {
			zap.L().Error("audit subscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (a *Application) recordMediaEvent(evt media.Event) {
	entry := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   evt.Actor,
		OptAction: evt.Topic,
		OptDesc:   fmt.Sprintf("product=%d image=%d %s", evt.ProductID, evt.ImageID, evt.Detail),
		OptTime:   evt.At,
	}
	if err := a.gormDB.Create(&entry).Error; err != nil {
		zap.L().Warn("failed to write audit log", zap.String("action", evt.Topic), zap.Error(err))
	}
}
