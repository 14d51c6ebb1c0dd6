// Package tag implements the bracketed-tag grammar that gives planning
// items their cross-store identity.
//
// A tag is a short bracketed token embedded in a human-readable title or
// card label, e.g. "[FP3-012] Improve search". It encodes item kind,
// iteration number, and sequence number; epic-qualified variants also
// embed the epic manual id. The grammar lives here as an ordered rule
// list, isolated from all I/O, so rules can be unit-tested exhaustively.
package tag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/plansync/plansync/internal/types"
)

// leadingJunkRe strips separator characters left behind after tag removal
// (": ", " - ", etc.).
var leadingJunkRe = regexp.MustCompile(`^[^a-zA-Z0-9]+`)

// Parsed is the result of scanning a raw title for a tag.
type Parsed struct {
	// Label is the input with the matched bracket occurrence removed and
	// leading non-alphanumeric characters stripped.
	Label string

	// Kind is empty (invalid) when no rule matched.
	Kind       types.ItemKind
	Iteration  int
	Sequence   int
	Commitment types.Commitment
}

// Parse scans raw for the first bracketed token matching the grammar and
// returns the cleaned label plus the parsed identity fields.
//
// Parse is total: it never fails. When no bracketed token matches any
// rule, the result carries an invalid Kind and zero numbers, and the label
// is the stripped original text. Matching is case-insensitive; only the
// matched bracket occurrence is removed, exactly once. Numeric captures
// that do not fit in an int are treated as a non-match and fall through to
// the next rule.
func Parse(raw string) Parsed {
	for _, loc := range bracketRe.FindAllStringSubmatchIndex(raw, -1) {
		token := strings.TrimSpace(raw[loc[2]:loc[3]])

		for _, rule := range grammar {
			m := rule.re.FindStringSubmatch(token)
			if m == nil {
				continue
			}

			iter, seq, ok := ruleNumbers(rule, m)
			if !ok {
				continue
			}

			occurrence := raw[loc[0]:loc[1]]
			label := strings.Replace(raw, occurrence, "", 1)
			return Parsed{
				Label:      cleanLabel(label),
				Kind:       rule.kind,
				Iteration:  iter,
				Sequence:   seq,
				Commitment: rule.commitment,
			}
		}
	}

	return Parsed{Label: cleanLabel(raw)}
}

// ruleNumbers extracts the iteration and sequence captures for a matched
// rule. A capture that fails integer parsing invalidates the match.
func ruleNumbers(rule pattern, m []string) (iter, seq int, ok bool) {
	if rule.iterGroup > 0 && m[rule.iterGroup] != "" {
		n, err := strconv.Atoi(m[rule.iterGroup])
		if err != nil {
			return 0, 0, false
		}
		iter = n
	}
	if rule.seqGroup > 0 && m[rule.seqGroup] != "" {
		n, err := strconv.Atoi(m[rule.seqGroup])
		if err != nil {
			return 0, 0, false
		}
		seq = n
	}
	return iter, seq, true
}

func cleanLabel(s string) string {
	return strings.TrimSpace(leadingJunkRe.ReplaceAllString(s, ""))
}

// kindPrefix returns the tag prefix for a kind. Objectives select their
// prefix by commitment.
func kindPrefix(kind types.ItemKind, commitment types.Commitment) string {
	switch kind {
	case types.KindFeature:
		return "FP"
	case types.KindRisk:
		return "RP"
	case types.KindDependency:
		return "DP"
	case types.KindIssue:
		return "IssueP"
	case types.KindObjective:
		if commitment == types.CommitmentUncommitted {
			return "uTObjP"
		}
		return "TObjP"
	}
	return ""
}

// Format renders the canonical tag for an item identity.
//
// Features and objectives use the plain form <prefix><iteration>-<sequence>.
// Risks, dependencies, and issues embed the epic manual id when one is
// supplied: <prefix><iteration>-<epic>-R<sequence> (e.g. "DP4-E07-R3");
// without an epic they fall back to the plain form.
func Format(kind types.ItemKind, iteration, sequence int, epicManualID string, commitment types.Commitment) string {
	prefix := kindPrefix(kind, commitment)
	if prefix == "" {
		return ""
	}

	switch kind {
	case types.KindRisk, types.KindDependency, types.KindIssue:
		if epicManualID != "" {
			return fmt.Sprintf("%s%d-%s-R%d", prefix, iteration, epicManualID, sequence)
		}
	}
	return fmt.Sprintf("%s%d-%d", prefix, iteration, sequence)
}

// ForItem renders the canonical tag for a SyncItem.
func ForItem(it *types.SyncItem) string {
	return Format(it.Kind, it.Iteration, it.Sequence, it.EpicRef, it.Commitment)
}

// Title renders the back-propagated title embedding a canonical tag.
func Title(canonicalTag, label string) string {
	return fmt.Sprintf("[%s] : %s", canonicalTag, label)
}
