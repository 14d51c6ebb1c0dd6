package timeparsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var nlpParser = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// ParseNaturalLanguage interprets English expressions like "yesterday",
// "last monday", or "3 days ago" relative to now. The whole input must be
// consumed by the parser; a partial match means the expression had extra
// text and is rejected.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	result, err := nlpParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("no time expression in %q", s)
	}
	if strings.TrimSpace(s[:result.Index]) != "" ||
		strings.TrimSpace(s[result.Index+len(result.Text):]) != "" {
		return time.Time{}, fmt.Errorf("unrecognized text around time expression in %q", s)
	}
	return result.Time, nil
}
