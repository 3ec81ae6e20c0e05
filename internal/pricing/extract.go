// Package pricing turns fetched source documents into a deduplicated price
// report.
package pricing

import (
	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/fetcher"
	"github.com/sells-group/haggle/internal/model"
	"github.com/sells-group/haggle/internal/sources"
)

// Extract applies each source's bound rule to its document. Results without
// a document are skipped. A rule that errors or panics contributes nothing
// and is logged as an extraction failure. A document flagged as a challenge
// page is still extracted; it is reported as blocked only when it yields
// nothing.
func Extract(reg *sources.Registry, results []fetcher.FetchResult) []model.PriceFinding {
	var findings []model.PriceFinding
	for _, res := range results {
		if !res.OK() || res.Document == "" {
			continue
		}
		src, ok := reg.Lookup(res.SourceID)
		if !ok {
			zap.L().Warn("pricing: result for unknown source", zap.String("source", res.SourceID))
			continue
		}
		f, ok := extractOne(src, res.Document)
		if ok {
			findings = append(findings, f)
			continue
		}
		if res.Block != fetcher.BlockNone {
			zap.L().Warn("pricing: source served a challenge page",
				zap.String("source", src.ID),
				zap.String("kind", string(fetcher.KindBlocked)),
				zap.String("block", string(res.Block)),
			)
		}
	}
	return findings
}

func extractOne(src sources.Source, doc string) (f model.PriceFinding, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("pricing: extraction failure",
				zap.String("source", src.ID),
				zap.Any("panic", p),
			)
			f, ok = model.PriceFinding{}, false
		}
	}()

	f, ok, err := src.Rule.Extract(doc)
	if err != nil {
		zap.L().Warn("pricing: extraction failure",
			zap.String("source", src.ID),
			zap.Error(err),
		)
		return model.PriceFinding{}, false
	}
	if ok {
		zap.L().Debug("pricing: found price",
			zap.String("source", src.ID),
			zap.String("finding", f.String()),
		)
	}
	return f, ok
}

// Aggregate renders findings and removes exact duplicates, keeping the
// first occurrence of each.
func Aggregate(subject string, findings []model.PriceFinding) model.PriceReport {
	seen := make(map[string]struct{}, len(findings))
	entries := make([]string, 0, len(findings))
	for _, f := range findings {
		s := f.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		entries = append(entries, s)
	}
	return model.PriceReport{
		Subject: subject,
		Entries: entries,
		Found:   len(entries) > 0,
	}
}
