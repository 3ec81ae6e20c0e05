package sources

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/haggle/internal/model"
)

// Kind tags the markup shape a rule understands.
type Kind string

const (
	KindSearchEngine Kind = "search_engine"
	KindMarketplace  Kind = "marketplace"
	KindRegion       Kind = "region"
)

// Rule maps a fetched document to at most one price finding. A rule
// returns ok=false when nothing matches; err is reserved for documents
// that could not be parsed at all.
type Rule interface {
	Kind() Kind
	Extract(document string) (finding model.PriceFinding, ok bool, err error)
}

// Currencies is the symbol set that marks a text fragment as a price.
var Currencies = []string{"$", "€", "£", "¥", "₹"}

var hostRe = regexp.MustCompile(`https?://(?:www\.)?([^/]+)`)

// SearchEngineRule scans a free-text results page for the first
// currency-marked fragment and labels it with the listing's host when a
// nearby link reveals one.
type SearchEngineRule struct {
	FallbackLabel string
	Selectors     []string
}

// NewSearchEngineRule returns a rule using the Google result selectors.
func NewSearchEngineRule(fallbackLabel string) *SearchEngineRule {
	return &SearchEngineRule{
		FallbackLabel: fallbackLabel,
		Selectors: []string{
			`span[jsname="ubtiRe"]`,
			".BNeawe.iBp4i.AP7Wnd",
		},
	}
}

func (r *SearchEngineRule) Kind() Kind { return KindSearchEngine }

// Extract tries each selector in order, using the first one that selects
// anything.
func (r *SearchEngineRule) Extract(document string) (model.PriceFinding, bool, error) {
	doc, err := parse(document)
	if err != nil {
		return model.PriceFinding{}, false, err
	}

	var sel *goquery.Selection
	for _, s := range r.Selectors {
		sel = doc.Find(s)
		if sel.Length() > 0 {
			break
		}
	}
	if sel == nil || sel.Length() == 0 {
		return model.PriceFinding{}, false, nil
	}

	var (
		finding model.PriceFinding
		found   bool
	)
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !hasCurrency(text) {
			return true
		}
		finding = model.PriceFinding{Label: r.labelFor(s), PriceText: text}
		found = true
		return false
	})
	return finding, found, nil
}

// labelFor resolves a readable source name from the first link inside the
// element's nearest enclosing div.
func (r *SearchEngineRule) labelFor(s *goquery.Selection) string {
	container := s.ParentsFiltered("div").First()
	if container.Length() == 0 {
		return r.FallbackLabel
	}
	href, ok := container.Find("a").First().Attr("href")
	if !ok || href == "" {
		return r.FallbackLabel
	}
	m := hostRe.FindStringSubmatch(href)
	if len(m) < 2 {
		return r.FallbackLabel
	}
	name := strings.Split(m[1], ".")[0]
	if name == "" {
		return r.FallbackLabel
	}
	return capitalize(name)
}

// capitalize upper-cases the first letter and lower-cases the rest, so
// "best-buy" reads "Best-buy".
func capitalize(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.English).String(s[:size]) + cases.Lower(language.English).String(s[size:])
}

// MarketplaceRule returns the first element matching Selector with a fixed
// label. When SymbolSelector is set the text of its first match (or
// DefaultSymbol) is prepended, for sites that split symbol and amount.
type MarketplaceRule struct {
	Label          string
	Selector       string
	SymbolSelector string
	DefaultSymbol  string
}

func (r *MarketplaceRule) Kind() Kind { return KindMarketplace }

func (r *MarketplaceRule) Extract(document string) (model.PriceFinding, bool, error) {
	doc, err := parse(document)
	if err != nil {
		return model.PriceFinding{}, false, err
	}
	price, ok := firstText(doc, r.Selector)
	if !ok {
		return model.PriceFinding{}, false, nil
	}
	if r.SymbolSelector != "" {
		symbol, found := firstText(doc, r.SymbolSelector)
		if !found {
			symbol = r.DefaultSymbol
		}
		price = symbol + price
	}
	return model.PriceFinding{Label: r.Label, PriceText: price}, true, nil
}

// RegionRule is a marketplace rule shared by a family of region-scoped
// sources; the region is interpolated into the label.
type RegionRule struct {
	Family   string
	Region   string
	Selector string
}

func (r *RegionRule) Kind() Kind { return KindRegion }

// Label renders "Family (region)".
func (r *RegionRule) Label() string {
	return r.Family + " (" + r.Region + ")"
}

func (r *RegionRule) Extract(document string) (model.PriceFinding, bool, error) {
	doc, err := parse(document)
	if err != nil {
		return model.PriceFinding{}, false, err
	}
	price, ok := firstText(doc, r.Selector)
	if !ok {
		return model.PriceFinding{}, false, nil
	}
	return model.PriceFinding{Label: r.Label(), PriceText: price}, true, nil
}

func parse(document string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, eris.Wrap(err, "sources: parse document")
	}
	return doc, nil
}

// firstText returns the trimmed text of the first match. An element that
// is present but empty still counts as a match.
func firstText(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

func hasCurrency(text string) bool {
	for _, c := range Currencies {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}
