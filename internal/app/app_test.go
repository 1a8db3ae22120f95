package app

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/media"
)

func newInitializedApp(t *testing.T) *Application {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.Logger.FileEnable = false
	cfg.Storage.Backend = "memory"
	cfg.Auth.AdminUserIDs = []string{"u-1", "u-2"}

	a := NewApplication(&cfg)
	if err := a.Init(&cfg); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(a.Release)
	return a
}

func TestInitSeedsDefaults(t *testing.T) {
	a := newInitializedApp(t)

	var cats []domain.Category
	a.DB().Find(&cats)
	if len(cats) != 1 || cats[0].Slug != "general" {
		t.Fatalf("Expected the general category, got %+v", cats)
	}
	var admins int64
	a.DB().Model(&domain.AdminUser{}).Count(&admins)
	if admins != 2 {
		t.Errorf("Expected 2 admin users, got %d", admins)
	}

	// seeding is idempotent
	a.checkCategories()
	a.checkAdmins()
	a.DB().Model(&domain.AdminUser{}).Count(&admins)
	if admins != 2 {
		t.Errorf("Expected seeding not to duplicate admins, got %d", admins)
	}

	a.DB().Create(&domain.Category{Name: "Extra", Slug: "extra"})
	a.InitDb()
	var count int64
	a.DB().Model(&domain.Category{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected InitDb to reset categories, got %d", count)
	}
}

func TestJobs(t *testing.T) {
	a := newInitializedApp(t)

	jobs := a.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		if j.NextRun.IsZero() {
			t.Errorf("Expected %s to be scheduled", j.Name)
		}
	}
	if err := a.RunJobNow(JobSweepOrphans); err != nil {
		t.Errorf("Expected sweep to run, got %v", err)
	}
	if err := a.RunJobNow("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NotFound for unknown job, got %v", err)
	}
}

func TestAuditLogAndRetention(t *testing.T) {
	a := newInitializedApp(t)

	a.Bus().Publish(media.TopicImageDeleted, media.Event{
		Topic:     media.TopicImageDeleted,
		ProductID: 7,
		ImageID:   9,
		Actor:     "admin@example.com",
		At:        time.Now(),
	})
	a.Bus().WaitAsync()

	var entry domain.SysOprLog
	if err := a.DB().Where("opt_action = ?", media.TopicImageDeleted).First(&entry).Error; err != nil {
		t.Fatalf("Expected audit entry, got %v", err)
	}
	if entry.OprName != "admin@example.com" {
		t.Errorf("Expected actor to be recorded, got %s", entry.OprName)
	}

	a.DB().Create(&domain.SysOprLog{ID: 1, OptAction: "old", OptTime: time.Now().Add(-400 * 24 * time.Hour)})
	a.SchedClearExpireData()
	var count int64
	a.DB().Model(&domain.SysOprLog{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected only the recent entry to remain, got %d", count)
	}
}
