package gate

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/domain"
)

type countingLookup struct {
	admins map[string]bool
	err    error
	calls  int32
}

func (l *countingLookup) IsAdmin(_ context.Context, userID string) (bool, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.err != nil {
		return false, l.err
	}
	return l.admins[userID], nil
}

func newGate(lookup AdminLookup) *Gate {
	return New(NewRouter(StoreRoutes), lookup)
}

func TestRouterMatch(t *testing.T) {
	r := NewRouter(StoreRoutes)
	cases := []struct {
		path string
		name string
		auth bool
		slug string
	}{
		{"/", "home", false, ""},
		{"/productos", "products", false, ""},
		{"/categoria/muebles", "category", false, "muebles"},
		{"/producto-detalle/silla-1?ref=wa", "product-detail", false, "silla-1"},
		{"/sobre-nosotros/", "about", false, ""},
		{"/admin/login", "admin-login", false, ""},
		{"/admin", "admin-dashboard", true, ""},
		{"/admin/productos", "admin-products", true, ""},
		{"/Admin/Categorias", "admin-categories", true, ""},
	}
	for _, tc := range cases {
		m, ok := r.Match(tc.path)
		if !ok {
			t.Errorf("Expected %s to match %s", tc.path, tc.name)
			continue
		}
		if m.Name != tc.name || m.RequiresAuth != tc.auth || m.Params["slug"] != tc.slug {
			t.Errorf("Match(%s): expected %s auth=%v slug=%q, got %+v", tc.path, tc.name, tc.auth, tc.slug, m)
		}
	}
	for _, p := range []string{"/categoria", "/admin/usuarios", "/producto-detalle/a/b"} {
		if _, ok := r.Match(p); ok {
			t.Errorf("Expected %s not to match", p)
		}
	}
	m, _ := r.Match("/admin/productos")
	if len(m.Views) != 2 || m.Views[0] != "admin/AdminLayout" {
		t.Errorf("Expected layout then view, got %v", m.Views)
	}
}

func TestAnonymousAdminNavigationSkipsLookup(t *testing.T) {
	lookup := &countingLookup{admins: map[string]bool{"u-1": true}}
	g := newGate(lookup)

	d := g.Evaluate(context.Background(), Session{}, "/admin/productos")
	if d.Outcome != Denied || d.Redirect != "/admin/login" {
		t.Errorf("Expected denied with redirect to /admin/login, got %+v", d)
	}
	if lookup.calls != 0 {
		t.Errorf("Expected admin table never queried, got %d lookups", lookup.calls)
	}
}

func TestEvaluate(t *testing.T) {
	lookup := &countingLookup{admins: map[string]bool{"u-admin": true}}
	g := newGate(lookup)
	ctx := context.Background()

	d := g.Evaluate(ctx, Session{}, "/producto-detalle/silla")
	if d.Outcome != Allowed || lookup.calls != 0 {
		t.Errorf("Expected public route allowed without lookup, got %+v", d)
	}

	d = g.Evaluate(ctx, Session{Identity: &auth.Identity{ID: "u-shopper"}}, "/admin")
	if d.Outcome != Denied || d.Redirect != "/admin/login" {
		t.Errorf("Expected non admin denied, got %+v", d)
	}

	d = g.Evaluate(ctx, Session{Identity: &auth.Identity{ID: "u-admin"}}, "/admin/categorias")
	if d.Outcome != Allowed || d.Match.Name != "admin-categories" {
		t.Errorf("Expected admin allowed, got %+v", d)
	}

	before := lookup.calls
	g.Evaluate(ctx, Session{Identity: &auth.Identity{ID: "u-admin"}}, "/admin/categorias")
	if lookup.calls != before+1 {
		t.Error("Expected every navigation to re-check the admin table")
	}

	d = g.Evaluate(ctx, Session{}, "/nope")
	if d.Outcome != Unchecked || d.Match != nil {
		t.Errorf("Expected unmatched path to stay unchecked, got %+v", d)
	}
}

func TestLookupErrorDenies(t *testing.T) {
	g := newGate(&countingLookup{err: errors.New("db down")})
	d := g.Evaluate(context.Background(), Session{Identity: &auth.Identity{ID: "u-admin"}}, "/admin")
	if d.Outcome != Denied {
		t.Errorf("Expected lookup failure to deny, got %+v", d)
	}
}

func TestGormAdminLookup(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	if err := db.AutoMigrate(&domain.AdminUser{}); err != nil {
		t.Fatal(err)
	}
	db.Create(&domain.AdminUser{ID: 1, UserID: "u-admin"})

	l := NewGormAdminLookup(db)
	ok, err := l.IsAdmin(context.Background(), "u-admin")
	if err != nil || !ok {
		t.Errorf("Expected u-admin to be admin, got %v %v", ok, err)
	}
	ok, _ = l.IsAdmin(context.Background(), "u-other")
	if ok {
		t.Error("Expected u-other not to be admin")
	}
}
