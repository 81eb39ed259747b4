package placement

import (
	"bytes"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/kailas-cloud/affilink/internal/domain/placement"
)

var badgeLabels = map[string]string{
	"best-overall":   "Best Overall",
	"best-budget":    "Best Budget",
	"best-premium":   "Best Premium",
	"editors-choice": "Editor's Choice",
}

var layouts = template.Must(template.New("layouts").Parse(`
{{- define "card" -}}
<div class="affilink-product affilink-card" data-instance="{{.InstanceID}}" data-source="{{.Source}}">
{{- if .Badge}}<span class="affilink-badge {{.BadgeClass}}">{{.Badge}}</span>{{end -}}
{{- if .Image}}<img src="{{.Image}}" alt="{{.Title}}" class="affilink-image">{{end -}}
<h3 class="affilink-title">{{.Title}}</h3>
{{- if .Stars}}<div class="affilink-rating">{{.Stars}}{{if .Reviews}} ({{.Reviews}}){{end}}</div>{{end -}}
{{- if .Description}}<p class="affilink-description">{{.Description}}</p>{{end -}}
{{- if .Price}}<span class="affilink-price">{{.Price}}</span>{{end -}}
{{- if .URL}}<a href="{{.URL}}" class="affilink-link" rel="sponsored nofollow noopener" target="_blank">{{.CTA}}</a>{{end -}}
</div>
{{- end -}}
{{- define "inline" -}}
<div class="affilink-product affilink-inline" data-instance="{{.InstanceID}}" data-source="{{.Source}}">
{{- if .Image}}<img src="{{.Image}}" alt="{{.Title}}" class="affilink-image">{{end -}}
<h4 class="affilink-title">{{.Title}}</h4>
{{- if .Price}}<span class="affilink-price">{{.Price}}</span>{{end -}}
{{- if .URL}}<a href="{{.URL}}" class="affilink-link" rel="sponsored nofollow noopener" target="_blank">{{.CTA}}</a>{{end -}}
</div>
{{- end -}}
{{- define "grid" -}}
<div class="affilink-product affilink-grid-item" data-instance="{{.InstanceID}}" data-source="{{.Source}}">
{{- if .Badge}}<span class="affilink-badge {{.BadgeClass}}">{{.Badge}}</span>{{end -}}
<div class="affilink-grid-image">{{if .Image}}<img src="{{.Image}}" alt="{{.Title}}">{{else}}<div class="affilink-no-image">No Image</div>{{end}}</div>
{{- if .Merchant}}<div class="affilink-merchant">{{.Merchant}}</div>{{end -}}
{{- if .Stars}}<div class="affilink-rating">{{.Stars}} <span class="affilink-rating-number">{{.Rating}}</span></div>{{end -}}
{{- if .Price}}<div class="affilink-price">{{.Price}}</div>{{end -}}
<h3 class="affilink-title">{{.Title}}</h3>
{{- if .URL}}<a href="{{.URL}}" class="affilink-link" rel="sponsored nofollow noopener" target="_blank">{{.CTA}}</a>{{end -}}
</div>
{{- end -}}
{{- define "comparison" -}}
<div class="affilink-product affilink-comparison-row" data-instance="{{.InstanceID}}" data-source="{{.Source}}">
<div class="affilink-comparison-cell affilink-comparison-product"><strong>{{.Title}}</strong>{{if .Summary}}<br><small>{{.Summary}}</small>{{end}}</div>
<div class="affilink-comparison-cell affilink-comparison-image">{{if .Image}}<img src="{{.Image}}" alt="{{.Title}}">{{end}}</div>
<div class="affilink-comparison-cell affilink-comparison-price">{{.Price}}</div>
<div class="affilink-comparison-cell affilink-comparison-rating">{{if .Stars}}{{.Rating}} ★{{else}}-{{end}}</div>
<div class="affilink-comparison-cell affilink-comparison-action">{{if .URL}}<a href="{{.URL}}" class="affilink-link" rel="sponsored nofollow noopener" target="_blank">View Deal</a>{{end}}</div>
</div>
{{- end -}}`))

// layoutNames lists the renderable layouts; the root template itself is not one.
var layoutNames = []string{
	placement.LayoutCard,
	placement.LayoutInline,
	placement.LayoutGrid,
	placement.LayoutComparison,
}

// summaryWords caps the description shown in a comparison row.
const summaryWords = 15

type cardView struct {
	InstanceID  string
	Source      string
	Title       string
	Description string
	Image       string
	Price       string
	Stars       string
	Rating      string
	Reviews     int
	Merchant    string
	Summary     string
	Badge       string
	BadgeClass  string
	URL         string
	CTA         string
}

// RenderCard renders a placement as product HTML in its display layout.
// Unknown layouts fall back to the card layout.
func RenderCard(p placement.Placed) string {
	name := p.Display.Layout
	if !slices.Contains(layoutNames, name) {
		name = placement.DefaultLayout
	}

	var buf bytes.Buffer
	if err := layouts.ExecuteTemplate(&buf, name, newCardView(p)); err != nil {
		return ""
	}
	return buf.String()
}

func newCardView(p placement.Placed) cardView {
	v := cardView{
		InstanceID:  p.InstanceID,
		Source:      p.Product.Source,
		Title:       p.Title(),
		Description: p.Product.Description,
		Image:       p.Product.ImageURL,
		Reviews:     p.Product.Reviews,
		URL:         p.Product.URL,
		Merchant:    p.Product.Merchant,
		CTA:         "View Deal",
		BadgeClass:  p.Display.Badge,
	}
	if p.Display.CustomDescription != "" {
		v.Description = p.Display.CustomDescription
	}
	if p.Product.Price != "" {
		v.Price = strings.TrimSpace(p.Product.Price + " " + p.Product.Currency)
	}
	if label, ok := badgeLabels[p.Display.Badge]; ok {
		v.Badge = label
	} else {
		v.Badge = p.Display.Badge
	}
	if p.Product.Merchant != "" {
		v.CTA = "View at " + p.Product.Merchant
	}
	v.Stars = stars(p.Product.Rating)
	if v.Stars != "" {
		v.Rating = fmt.Sprintf("%.1f", p.Product.Rating)
	}
	v.Summary = trimWords(v.Description, summaryWords)
	return v
}

func trimWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}

func stars(rating float64) string {
	if rating <= 0 {
		return ""
	}
	full := int(rating)
	s := strings.Repeat("★", full)
	if rating-float64(full) >= 0.5 {
		s += "½"
	}
	return s
}
