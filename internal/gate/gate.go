// Package gate decides whether a navigation may proceed. Routes that require
// authorization are open only to signed-in identities listed as admin users.
package gate

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/domain"
)

type Outcome int

const (
	Unchecked Outcome = iota
	Allowed
	Denied
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "unchecked"
	}
}

// AdminLookup reports whether an identity has a matching admin user row.
type AdminLookup interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Session carries the identity of the current request, nil when anonymous.
type Session struct {
	Identity *auth.Identity
}

type Decision struct {
	Outcome  Outcome
	Match    *Match
	Redirect string
	Reason   string
}

type Gate struct {
	router    *Router
	admins    AdminLookup
	loginPath string
}

func New(router *Router, admins AdminLookup) *Gate {
	login, ok := router.PathOf(LoginRoute)
	if !ok {
		login = "/admin/login"
	}
	return &Gate{router: router, admins: admins, loginPath: login}
}

// Evaluate resolves path and checks it for sess. Every call starts from
// Unchecked. Match is nil when no route matches.
func (g *Gate) Evaluate(ctx context.Context, sess Session, path string) Decision {
	m, ok := g.router.Match(path)
	if !ok {
		return Decision{Outcome: Unchecked, Reason: "no route"}
	}
	if !m.RequiresAuth {
		return Decision{Outcome: Allowed, Match: m}
	}
	d := g.Authorize(ctx, sess)
	d.Match = m
	return d
}

// Authorize checks sess against the admin user table.
func (g *Gate) Authorize(ctx context.Context, sess Session) Decision {
	if sess.Identity == nil || sess.Identity.ID == "" {
		return g.deny("not signed in")
	}
	isAdmin, err := g.admins.IsAdmin(ctx, sess.Identity.ID)
	if err != nil {
		zap.L().Warn("admin lookup failed", zap.String("user_id", sess.Identity.ID), zap.Error(err))
		return g.deny("admin lookup failed")
	}
	if !isAdmin {
		return g.deny("not an admin user")
	}
	return Decision{Outcome: Allowed}
}

func (g *Gate) deny(reason string) Decision {
	return Decision{Outcome: Denied, Redirect: g.loginPath, Reason: reason}
}

// GormAdminLookup reads the admin_users table
type GormAdminLookup struct {
	db *gorm.DB
}

func NewGormAdminLookup(db *gorm.DB) *GormAdminLookup {
	return &GormAdminLookup{db: db}
}

func (l *GormAdminLookup) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&domain.AdminUser{}).Where("user_id = ?", userID).Count(&count).Error
	return count == 1, err
}
