package media

import (
	"context"
	"time"

	"github.com/talkincode/storefront/internal/auth"
)

const (
	TopicImageUploaded   = "media:image_uploaded"
	TopicImageDeleted    = "media:image_deleted"
	TopicImagesReordered = "media:images_reordered"
	TopicPrimaryChanged  = "media:primary_changed"
	TopicOrphansSwept    = "media:orphans_swept"
)

var Topics = []string{
	TopicImageUploaded,
	TopicImageDeleted,
	TopicImagesReordered,
	TopicPrimaryChanged,
	TopicOrphansSwept,
}

// Event is published on the bus after a successful image mutation.
type Event struct {
	Topic     string
	ProductID int64
	ImageID   int64
	Actor     string
	Detail    string
	At        time.Time
}

func (m *Manager) publish(ctx context.Context, topic string, productID, imageID int64, detail string) {
	if m.bus == nil {
		return
	}
	actor := "system"
	if id := auth.FromContext(ctx); id != nil {
		actor = id.ID
		if id.Email != "" {
			actor = id.Email
		}
	}
	m.bus.Publish(topic, Event{
		Topic:     topic,
		ProductID: productID,
		ImageID:   imageID,
		Actor:     actor,
		Detail:    detail,
		At:        m.now(),
	})
}
