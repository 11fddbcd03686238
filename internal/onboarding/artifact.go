// Package onboarding renders the scannable code and mobile deep link handed
// to a partner when a customer is first resolved. Rendering is a pure
// function of the universal id and format, so artifacts can be recomputed at
// any time without touching stored balances.
package onboarding

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"

	qrcode "github.com/skip2/go-qrcode"
)

// CodeFormat selects the rendering of the onboarding code. The encoded
// payload is identical across formats; only the container differs.
type CodeFormat string

const (
	FormatSVG     CodeFormat = "svg"      // vector markup
	FormatPNG     CodeFormat = "png"      // base64 raster
	FormatDataURI CodeFormat = "data_uri" // embeddable data: string
)

// ParseCodeFormat resolves a request-supplied format name at the call
// boundary. An empty format defaults to the embeddable data URI.
func ParseCodeFormat(s string) (CodeFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "data_uri", "datauri":
		return FormatDataURI, nil
	case "svg":
		return FormatSVG, nil
	case "png", "raster":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: unknown code format %q", domain.ErrInvalidArgument, s)
	}
}

const qrModulePx = 8 // pixels per QR module in SVG output

// Generator produces onboarding artifacts for universal ids.
type Generator struct {
	host    string // onboarding web host, e.g. "join.example.com"
	pngSize int
}

func NewGenerator(host string) *Generator {
	return &Generator{host: host, pngSize: 256}
}

// OnboardingURI is the payload every rendered code encodes.
func (g *Generator) OnboardingURI(universalID string) string {
	return fmt.Sprintf("https://%s/onboard?id=%s", g.host, url.QueryEscape(universalID))
}

// RenderCode renders the onboarding URI for universalID in the requested
// format.
func (g *Generator) RenderCode(universalID string, format CodeFormat) (string, error) {
	if universalID == "" {
		return "", domain.ErrInvalidArgument
	}
	payload := g.OnboardingURI(universalID)
	switch format {
	case FormatSVG:
		return renderSVG(payload)
	case FormatPNG:
		png, err := qrcode.Encode(payload, qrcode.Medium, g.pngSize)
		if err != nil {
			return "", fmt.Errorf("encode qr png: %w", err)
		}
		return base64.StdEncoding.EncodeToString(png), nil
	case FormatDataURI:
		png, err := qrcode.Encode(payload, qrcode.Medium, g.pngSize)
		if err != nil {
			return "", fmt.Errorf("encode qr png: %w", err)
		}
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
	default:
		return "", fmt.Errorf("%w: unknown code format %q", domain.ErrInvalidArgument, format)
	}
}

// DeepLink builds `{template}?id=<universalId>` from the partner's template,
// falling back to the system default when the partner has none. Templates
// that already carry query parameters get the id appended with '&'.
func (g *Generator) DeepLink(universalID, partnerTemplate string) string {
	tmpl := strings.TrimSpace(partnerTemplate)
	if tmpl == "" {
		tmpl = model.DefaultDeepLinkTemplate
	}
	sep := "?"
	if strings.Contains(tmpl, "?") {
		sep = "&"
	}
	return tmpl + sep + "id=" + url.QueryEscape(universalID)
}

// renderSVG draws the QR bitmap as one rect per dark module. The output is
// self-contained markup suitable for inlining.
func renderSVG(payload string) (string, error) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	bitmap := qr.Bitmap()
	n := len(bitmap)
	side := n * qrModulePx

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, side, side)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, side, side)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="#000000"/>`, x*qrModulePx, y*qrModulePx, qrModulePx, qrModulePx)
			}
		}
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}
