package gate

import (
	"strings"
)

// Route is one entry of the storefront's page route table. Children inherit
// the parent's path prefix and its RequiresAuth flag.
type Route struct {
	Name         string
	Path         string
	View         string
	RequiresAuth bool
	Children     []Route
}

const LoginRoute = "admin-login"

var StoreRoutes = []Route{
	{Name: "home", Path: "/", View: "public/HomeView"},
	{Name: "products", Path: "/productos", View: "public/ProductsView"},
	{Name: "category", Path: "/categoria/:slug", View: "public/CategoryView"},
	{Name: "product-detail", Path: "/producto-detalle/:slug", View: "public/ProductDetailView"},
	{Name: "about", Path: "/sobre-nosotros", View: "public/AboutView"},
	{Name: LoginRoute, Path: "/admin/login", View: "admin/LoginView"},
	{
		Path:         "/admin",
		View:         "admin/AdminLayout",
		RequiresAuth: true,
		Children: []Route{
			{Name: "admin-dashboard", Path: "", View: "admin/DashboardView"},
			{Name: "admin-products", Path: "productos", View: "admin/ProductsView"},
			{Name: "admin-categories", Path: "categorias", View: "admin/CategoriesView"},
		},
	},
}

// Match is a resolved navigation target.
type Match struct {
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Views        []string          `json:"views"`
	Params       map[string]string `json:"params,omitempty"`
	RequiresAuth bool              `json:"requires_auth"`
}

type entry struct {
	name         string
	path         string
	segments     []string
	views        []string
	requiresAuth bool
}

// Router resolves request paths against a route table.
type Router struct {
	entries []entry
	byName  map[string]string
}

func NewRouter(routes []Route) *Router {
	r := &Router{byName: make(map[string]string)}
	r.add(routes, "", nil, false)
	return r
}

func (r *Router) add(routes []Route, prefix string, views []string, auth bool) {
	for _, rt := range routes {
		full := joinPath(prefix, rt.Path)
		chain := append(append([]string(nil), views...), rt.View)
		requiresAuth := auth || rt.RequiresAuth
		if len(rt.Children) > 0 {
			r.add(rt.Children, full, chain, requiresAuth)
			continue
		}
		r.entries = append(r.entries, entry{
			name:         rt.Name,
			path:         full,
			segments:     splitPath(full),
			views:        chain,
			requiresAuth: requiresAuth,
		})
		if rt.Name != "" {
			r.byName[rt.Name] = full
		}
	}
}

// Match finds the first route matching path. Static segments compare case
// insensitively.
func (r *Router) Match(path string) (*Match, bool) {
	segs := splitPath(path)
	for _, e := range r.entries {
		params, ok := matchSegments(e.segments, segs)
		if !ok {
			continue
		}
		return &Match{
			Name:         e.name,
			Path:         e.path,
			Views:        e.views,
			Params:       params,
			RequiresAuth: e.requiresAuth,
		}, true
	}
	return nil, false
}

// PathOf returns the path of a named route without parameters.
func (r *Router) PathOf(name string) (string, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[p[1:]] = segs[i]
			continue
		}
		if !strings.EqualFold(p, segs[i]) {
			return nil, false
		}
	}
	return params, true
}

func joinPath(prefix, p string) string {
	switch {
	case p == "":
		return prefix
	case strings.HasPrefix(p, "/"):
		return p
	default:
		return strings.TrimRight(prefix, "/") + "/" + p
	}
}

func splitPath(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
