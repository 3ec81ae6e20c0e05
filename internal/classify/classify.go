// Package classify detects product-price questions in free-form chat and
// extracts the product phrase they ask about.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Rule is one price-question pattern. The first capture group holds the
// candidate subject phrase.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultRules is the ordered rule list. Rules are evaluated in this order
// and the first one producing an acceptable subject wins; overlapping
// matches are resolved by position in the list, never by specificity.
var DefaultRules = []Rule{
	{
		Name:    "ask_price_of",
		Pattern: regexp.MustCompile(`(?:what(?:'s| is) the|how much (?:is|are|does|for)|check|find|get|search for|look up).*price (?:of|for) (.+?)(?:\?|$|\.| on | from )`),
	},
	{
		Name:    "price_of",
		Pattern: regexp.MustCompile(`(?:price|cost) (?:of|for) (.+?)(?:\?|$|\.)`),
	},
	{
		Name:    "how_much_cost",
		Pattern: regexp.MustCompile(`(?:how much (?:is|are|does)).*?(.+?)(?: cost| sell for| go for)(?:\?|$|\.)`),
	},
	{
		Name:    "subject_price",
		Pattern: regexp.MustCompile(`^(.+?) price(?:\?|$)`),
	},
}

// minSubjectLen is the shortest subject accepted, in characters.
const minSubjectLen = 3

var (
	determinerRe = regexp.MustCompile(`^(an?|the|my|your)\s+`)

	stopSubjects = map[string]struct{}{
		"it":        {},
		"this":      {},
		"that":      {},
		"something": {},
	}
)

// Classifier matches messages against an ordered rule list.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier. With no rules it uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify reports whether message asks for a product price and, if so,
// the product phrase. It performs no I/O.
func (c *Classifier) Classify(message string) (bool, string) {
	lower := strings.ToLower(message)

	for _, r := range c.rules {
		m := r.Pattern.FindStringSubmatch(lower)
		if len(m) < 2 {
			continue
		}
		subject := CleanSubject(m[1])
		if !acceptable(subject) {
			continue
		}
		zap.L().Debug("classify: price query detected",
			zap.String("rule", r.Name),
			zap.String("subject", subject),
		)
		return true, subject
	}
	return false, ""
}

// Classify runs the default classifier.
func Classify(message string) (bool, string) {
	return defaultClassifier.Classify(message)
}

var defaultClassifier = New()

// CleanSubject trims a captured phrase and strips a single leading
// determiner or possessive.
func CleanSubject(phrase string) string {
	s := strings.TrimSpace(phrase)
	s = determinerRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func acceptable(subject string) bool {
	if utf8.RuneCountInString(subject) < minSubjectLen {
		return false
	}
	_, stop := stopSubjects[subject]
	return !stop
}
