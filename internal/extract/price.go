package extract

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// ErrNoPrice means the page rendered fine but no price could be located.
var ErrNoPrice = errors.New("no price found on page")

var thousandsBR = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// ParseBRL parses Brazilian-formatted price strings: "R$ 3.199,90",
// "3.199,90", "3199.90", "R$3.199". Returns an error for anything that does
// not reduce to a positive decimal.
func ParseBRL(s string) (decimal.Decimal, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "r$")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)

	switch {
	case strings.Contains(s, ","):
		// Comma is the decimal separator, dots are thousands.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsBR.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsPositive() {
		return decimal.Zero, errors.New("non-positive price")
	}
	return p, nil
}

// priceSelectors are tried in order once the structured sources come up empty.
var priceSelectors = []string{
	"[itemprop=price]",
	".product-price",
	".price-template__text",
	".sales-price",
	"#product-price",
	".price",
}

// ParsePage locates the offer price in a product page: JSON-LD offers first,
// then price metas, then a short list of conventional price selectors.
func ParsePage(r io.Reader) (decimal.Decimal, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return decimal.Zero, err
	}

	if p, ok := priceFromJSONLD(doc); ok {
		return p, nil
	}
	if p, ok := priceFromMetas(doc); ok {
		return p, nil
	}
	if p, ok := priceFromSelectors(doc); ok {
		return p, nil
	}
	return decimal.Zero, ErrNoPrice
}

func priceFromJSONLD(doc *goquery.Document) (decimal.Decimal, bool) {
	var found decimal.Decimal
	ok := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if raw, has := findOfferPrice(data); has {
			if p, err := ParseBRL(raw); err == nil {
				found, ok = p, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// findOfferPrice walks arbitrarily nested JSON-LD looking for an offers node
// carrying price or lowPrice.
func findOfferPrice(data any) (string, bool) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if p, ok := findOfferPrice(item); ok {
				return p, true
			}
		}
	case map[string]any:
		if offers, has := v["offers"]; has {
			if p, ok := extractPriceField(offers); ok {
				return p, true
			}
		}
		for _, key := range []string{"@graph", "mainEntity"} {
			if nested, has := v[key]; has {
				if p, ok := findOfferPrice(nested); ok {
					return p, true
				}
			}
		}
	}
	return "", false
}

func extractPriceField(offers any) (string, bool) {
	switch v := offers.(type) {
	case []any:
		for _, o := range v {
			if p, ok := extractPriceField(o); ok {
				return p, true
			}
		}
	case map[string]any:
		for _, key := range []string{"price", "lowPrice"} {
			switch p := v[key].(type) {
			case string:
				if p != "" {
					return p, true
				}
			case float64:
				return decimal.NewFromFloat(p).String(), true
			}
		}
	}
	return "", false
}

func priceFromMetas(doc *goquery.Document) (decimal.Decimal, bool) {
	metas := []string{
		`meta[itemprop=price]`,
		`meta[property="product:price:amount"]`,
		`meta[property="og:price:amount"]`,
	}
	for _, sel := range metas {
		content, exists := doc.Find(sel).First().Attr("content")
		if !exists {
			continue
		}
		if p, err := ParseBRL(content); err == nil {
			return p, true
		}
	}
	return decimal.Zero, false
}

func priceFromSelectors(doc *goquery.Document) (decimal.Decimal, bool) {
	var found decimal.Decimal
	ok := false
	for _, sel := range priceSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if text == "" {
				text, _ = s.Attr("content")
			}
			if p, err := ParseBRL(text); err == nil {
				found, ok = p, true
				return false
			}
			return true
		})
		if ok {
			return found, true
		}
	}
	return decimal.Zero, false
}
