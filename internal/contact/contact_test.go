package contact

import (
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/talkincode/storefront/internal/domain"
)

func decodedText(t *testing.T, link string) (*url.URL, string) {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("Expected valid url, got %v", err)
	}
	return u, u.Query().Get("text")
}

func TestLinkMinimalProduct(t *testing.T) {
	b := NewBuilder(Config{Phone: "59170000000", SiteURL: "https://tienda.example.com/"})
	link := b.Link(&domain.Product{Name: "Silla", Price: decimal.NewFromInt(150), Slug: "silla-1"})

	u, text := decodedText(t, link)
	if u.Scheme != "https" || u.Host != "wa.me" || u.Path != "/59170000000" {
		t.Errorf("Expected wa.me deep link to the configured phone, got %s", link)
	}
	for _, want := range []string{"*Silla*", "150 Bs.", "https://tienda.example.com/producto-detalle/silla-1"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected message to contain %q, got %q", want, text)
		}
	}
	for _, absent := range []string{"Opciones seleccionadas", "Origen", "📝"} {
		if strings.Contains(text, absent) {
			t.Errorf("Expected message without %q, got %q", absent, text)
		}
	}
	if !strings.HasPrefix(text, "¡Hola! Me interesa este producto:\n\n") {
		t.Errorf("Expected greeting first, got %q", text)
	}
	if !strings.HasSuffix(text, "¿Cuáles son las opciones de envío?") {
		t.Errorf("Expected closing question last, got %q", text)
	}
}

func TestLinkFullProduct(t *testing.T) {
	b := NewBuilder(Config{Phone: "59170000000", SiteURL: "https://tienda.example.com"})
	p := &domain.Product{
		Name:            "Mesa (roble)",
		Price:           decimal.RequireFromString("99.5"),
		Slug:            "mesa",
		Origin:          "Cochabamba",
		WhatsappMessage: "Hecha a mano",
	}
	_, text := decodedText(t, b.Link(p,
		domain.ProductVariant{Name: "Color", Description: "Natural"},
		domain.ProductVariant{Name: "Tamaño", Description: "Grande"},
	))
	for _, want := range []string{
		"*Mesa (roble)*\n",
		"💰 Precio: 99,5 Bs.\n",
		"📍 Origen: Cochabamba\n",
		"\n✨ Opciones seleccionadas:\n• Color: Natural\n• Tamaño: Grande\n",
		"\n📝 Hecha a mano\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected message to contain %q, got %q", want, text)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	b := NewBuilder(Config{})
	cases := []struct {
		price string
		want  string
	}{
		{"0", "0"},
		{"150", "150"},
		{"99.5", "99,5"},
		{"1500", "1.500"},
		{"1234.5", "1.234,5"},
		{"1234.567", "1.234,57"},
		{"1000000", "1.000.000"},
		{"0.125", "0,13"},
		{"2.675", "2,68"},
	}
	for _, tc := range cases {
		got := b.FormatPrice(decimal.RequireFromString(tc.price))
		if got != tc.want {
			t.Errorf("FormatPrice(%s): expected %q, got %q", tc.price, tc.want, got)
		}
	}
}

func TestEncodeURIComponent(t *testing.T) {
	got := encodeURIComponent("*Silla* (x) & ¿y?\n")
	want := "*Silla*%20(x)%20%26%20%C2%BFy%3F%0A"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestMessagePanicsWithoutName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for product without name")
		}
	}()
	NewBuilder(Config{}).Message(&domain.Product{Slug: "x"})
}

func TestSelectVariants(t *testing.T) {
	p := &domain.Product{Variants: []domain.ProductVariant{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}}
	got := SelectVariants(p, []int64{3, 1, 99})
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("Expected variants 1 and 3 in product order, got %+v", got)
	}
	if SelectVariants(p, nil) != nil {
		t.Error("Expected no variants for empty selection")
	}
}

func TestBuildMatchesLink(t *testing.T) {
	b := NewBuilder(Config{Phone: "59170000000", SiteURL: "https://tienda.example.com"})
	p := &domain.Product{Name: "Aguayo", Price: decimal.RequireFromString("99.5"), Slug: "aguayo"}
	h := b.Build(p)
	if h.URL != b.Link(p) {
		t.Errorf("Expected Build url to equal Link, got %s", h.URL)
	}
	if _, text := decodedText(t, h.URL); text != h.Message {
		t.Errorf("Expected url to carry the message, got %q", text)
	}
}
