// Package contact builds the WhatsApp deep link a shopper uses to ask about a
// product.
package contact

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/talkincode/storefront/internal/domain"
)

const (
	deepLinkBase     = "https://wa.me/"
	productPathBase  = "/producto-detalle/"
	currencySuffix   = "Bs."
	defaultLocaleTag = "es-BO"
)

// Config is read once at startup and never changes afterwards.
type Config struct {
	// Phone is the recipient number in international format without "+".
	Phone string
	// SiteURL is the storefront origin product links point at.
	SiteURL string
}

type Builder struct {
	cfg     Config
	printer *message.Printer
}

func NewBuilder(cfg Config) *Builder {
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Builder{
		cfg:     cfg,
		printer: message.NewPrinter(language.MustParse(defaultLocaleTag)),
	}
}

// FormatPrice renders price with local grouping and up to two decimals,
// rounding half away from zero.
func (b *Builder) FormatPrice(price decimal.Decimal) string {
	return b.printer.Sprintf("%v", number.Decimal(price.Round(2).InexactFloat64(),
		number.MinFractionDigits(0),
		number.MaxFractionDigits(2),
	))
}

func (b *Builder) ProductURL(slug string) string {
	return b.cfg.SiteURL + productPathBase + slug
}

// Message renders the text sent to the shop. It panics on a nil product or
// one without a name.
func (b *Builder) Message(p *domain.Product, selected ...domain.ProductVariant) string {
	if p == nil || p.Name == "" {
		panic("contact: product name is required")
	}
	var sb strings.Builder
	sb.WriteString("¡Hola! Me interesa este producto:\n\n")
	fmt.Fprintf(&sb, "*%s*\n", p.Name)
	fmt.Fprintf(&sb, "💰 Precio: %s %s\n", b.FormatPrice(p.Price), currencySuffix)
	if p.Origin != "" {
		fmt.Fprintf(&sb, "📍 Origen: %s\n", p.Origin)
	}
	if len(selected) > 0 {
		sb.WriteString("\n✨ Opciones seleccionadas:\n")
		for _, v := range selected {
			fmt.Fprintf(&sb, "• %s: %s\n", v.Name, v.Description)
		}
	}
	if p.WhatsappMessage != "" {
		fmt.Fprintf(&sb, "\n📝 %s\n", p.WhatsappMessage)
	}
	fmt.Fprintf(&sb, "\n🔗 Ver producto: %s\n", b.ProductURL(p.Slug))
	sb.WriteString("\n¿Está disponible para compra? ¿Cuáles son las opciones de envío?")
	return sb.String()
}

// Handoff is a rendered message together with its deep link.
type Handoff struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Build renders the message once and links to it.
func (b *Builder) Build(p *domain.Product, selected ...domain.ProductVariant) Handoff {
	msg := b.Message(p, selected...)
	return Handoff{Message: msg, URL: b.linkTo(msg)}
}

// Link returns https://wa.me/{phone}?text={message}.
func (b *Builder) Link(p *domain.Product, selected ...domain.ProductVariant) string {
	return b.linkTo(b.Message(p, selected...))
}

func (b *Builder) linkTo(msg string) string {
	return deepLinkBase + b.cfg.Phone + "?text=" + encodeURIComponent(msg)
}

// SelectVariants picks the product's variants whose ids are listed, keeping
// the product's order. Unknown ids are ignored.
func SelectVariants(p *domain.Product, ids []int64) []domain.ProductVariant {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.ProductVariant
	for _, v := range p.Variants {
		if _, ok := want[v.ID]; ok {
			out = append(out, v)
		}
	}
	return out
}

const upperhex = "0123456789ABCDEF"

// encodeURIComponent escapes everything except A-Z a-z 0-9 and -_.!~*'().
func encodeURIComponent(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperhex[c>>4])
		sb.WriteByte(upperhex[c&15])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
