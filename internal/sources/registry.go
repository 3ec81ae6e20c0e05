// Package sources declares the marketplaces and search endpoints queried
// for prices, each bound at construction time to the extraction rule that
// understands its markup.
package sources

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// QueryPlaceholder marks where the escaped query goes in a URL template.
const QueryPlaceholder = "{query}"

// searchSuffix is appended to the subject for general search engines.
const searchSuffix = " price"

// Source describes one queryable endpoint. Sources are immutable once the
// registry is built.
type Source struct {
	ID           string `json:"id" yaml:"id"`
	URLTemplate  string `json:"url_template" yaml:"url_template"`
	SearchEngine bool   `json:"search_engine" yaml:"search_engine"`
	Rule         Rule   `json:"-" yaml:"-"`
}

// URL builds the request URL for subject.
func (s Source) URL(subject string) string {
	q := subject
	if s.SearchEngine {
		q += searchSuffix
	}
	return strings.ReplaceAll(s.URLTemplate, QueryPlaceholder, url.QueryEscape(q))
}

// Registry is a fixed, ordered set of sources.
type Registry struct {
	sources []Source
	byID    map[string]int
}

// NewRegistry builds a registry preserving the given order. IDs must be
// unique and every source needs a rule and a templated URL.
func NewRegistry(srcs ...Source) (*Registry, error) {
	r := &Registry{
		sources: make([]Source, 0, len(srcs)),
		byID:    make(map[string]int, len(srcs)),
	}
	for _, s := range srcs {
		if s.ID == "" {
			return nil, eris.New("sources: empty source id")
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, eris.Errorf("sources: duplicate source id %q", s.ID)
		}
		if s.Rule == nil {
			return nil, eris.Errorf("sources: source %q has no extraction rule", s.ID)
		}
		if !strings.Contains(s.URLTemplate, QueryPlaceholder) {
			return nil, eris.Errorf("sources: source %q url template lacks %s", s.ID, QueryPlaceholder)
		}
		r.byID[s.ID] = len(r.sources)
		r.sources = append(r.sources, s)
	}
	return r, nil
}

// Sources returns the sources in registry order.
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Lookup returns the source with the given id.
func (r *Registry) Lookup(id string) (Source, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

// Len returns the number of sources.
func (r *Registry) Len() int { return len(r.sources) }

// DefaultCraigslistCities are the regional classifieds markets queried when
// none are configured.
var DefaultCraigslistCities = []string{
	"newyork", "losangeles", "chicago", "houston", "phoenix",
	"philadelphia", "sanantonio", "sandiego", "dallas", "austin",
}

// Default builds the standard registry: one search engine, the fixed
// marketplaces, then one Craigslist source per city. A nil cities slice
// selects DefaultCraigslistCities.
func Default(cities []string) (*Registry, error) {
	if cities == nil {
		cities = DefaultCraigslistCities
	}

	srcs := []Source{
		{
			ID:           "google",
			URLTemplate:  "https://www.google.com/search?q={query}&hl=en",
			SearchEngine: true,
			Rule:         NewSearchEngineRule("Google Search"),
		},
		{
			ID:          "amazon",
			URLTemplate: "https://www.amazon.com/s?k={query}",
			Rule:        &MarketplaceRule{Label: "Amazon", Selector: ".a-price .a-offscreen"},
		},
		{
			ID:          "ebay",
			URLTemplate: "https://www.ebay.com/sch/i.html?_nkw={query}",
			Rule:        &MarketplaceRule{Label: "eBay", Selector: ".s-item__price"},
		},
		{
			ID:          "etsy",
			URLTemplate: "https://www.etsy.com/search?q={query}",
			Rule: &MarketplaceRule{
				Label:          "Etsy",
				Selector:       ".currency-value",
				SymbolSelector: ".currency-symbol",
				DefaultSymbol:  "$",
			},
		},
		{
			ID:          "flipkart",
			URLTemplate: "https://www.flipkart.com/search?q={query}",
			Rule:        &MarketplaceRule{Label: "Flipkart", Selector: "._30jeq3"},
		},
		{
			ID:          "temu",
			URLTemplate: "https://www.temu.com/search_result.html?search_key={query}",
			Rule:        &MarketplaceRule{Label: "Temu", Selector: "[data-pl='price']"},
		},
	}

	for _, city := range cities {
		city = strings.ToLower(strings.TrimSpace(city))
		if city == "" {
			continue
		}
		srcs = append(srcs, Source{
			ID:          "craigslist_" + city,
			URLTemplate: "https://" + city + ".craigslist.org/search/sss?query={query}",
			Rule:        &RegionRule{Family: "Craigslist", Region: city, Selector: ".price"},
		})
	}

	return NewRegistry(srcs...)
}
