package extract_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dfalcao/precario/internal/extract"
	"github.com/shopspring/decimal"
)

func TestParseBRL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "R$ 3.199,90", want: "3199.90"},
		{in: "R$3.199", want: "3199"},
		{in: "3.199,90", want: "3199.90"},
		{in: "3199.90", want: "3199.90"},
		{in: "1.234.567,89", want: "1234567.89"},
		{in: "249,00", want: "249.00"},
		{in: "129.90", want: "129.90"},
		{in: "R$ 0,00", wantErr: true},
		{in: "indisponível", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := extract.ParseBRL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseBRL(%q) = %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBRL(%q): %v", tt.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("ParseBRL(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePage_JSONLD(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">
		{"@type":"Product","name":"Notebook","offers":{"@type":"Offer","price":"3199.90","priceCurrency":"BRL"}}
		</script>
	</head><body><div class="price">R$ 9.999,99</div></body></html>`

	got, err := extract.ParsePage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// JSON-LD wins over the visible price node.
	if !got.Equal(decimal.RequireFromString("3199.90")) {
		t.Fatalf("price = %s, want 3199.90", got)
	}
}

func TestParsePage_JSONLDGraphWithNumericPrice(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">
		{"@graph":[{"@type":"WebPage"},{"@type":"Product","offers":[{"price":2489.5}]}]}
		</script>
	</head><body></body></html>`

	got, err := extract.ParsePage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2489.5")) {
		t.Fatalf("price = %s, want 2489.5", got)
	}
}

func TestParsePage_MetaFallback(t *testing.T) {
	html := `<html><head>
		<meta property="product:price:amount" content="1599,00">
	</head><body></body></html>`

	got, err := extract.ParsePage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1599.00")) {
		t.Fatalf("price = %s, want 1599.00", got)
	}
}

func TestParsePage_SelectorFallback(t *testing.T) {
	html := `<html><body>
		<span class="product-price">R$ 749,90</span>
	</body></html>`

	got, err := extract.ParsePage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("749.90")) {
		t.Fatalf("price = %s, want 749.90", got)
	}
}

func TestParsePage_NoPrice(t *testing.T) {
	html := `<html><body><p>Produto esgotado</p></body></html>`

	if _, err := extract.ParsePage(strings.NewReader(html)); !errors.Is(err, extract.ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}
