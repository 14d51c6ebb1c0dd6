package tag

import (
	"regexp"

	"github.com/plansync/plansync/internal/types"
)

// bracketRe finds bracketed tokens; nested brackets are not part of the
// grammar.
var bracketRe = regexp.MustCompile(`\[([^\[\]]+)\]`)

// pattern is one rule of the tag grammar. Rules are tried in order against
// each bracketed token; the first rule that matches wins. Composite id
// rules come before bare tag rules so "[FP3-12]" never degrades to a bare
// feature tag.
type pattern struct {
	re         *regexp.Regexp
	kind       types.ItemKind
	commitment types.Commitment

	// Submatch indexes for the iteration and sequence captures; 0 when the
	// rule carries no numbers (bare tags).
	iterGroup int
	seqGroup  int
}

// grammar is the ordered rule list. Epic-qualified rules accept both
// "E-07" and "E07" epic segments and an optional "R" before the sequence,
// so canonical tags produced by Format always re-parse.
var grammar = []pattern{
	// Composite ids.
	{re: regexp.MustCompile(`(?i)^FP(\d+)-(\d+)$`), kind: types.KindFeature, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^FP-(\d+)$`), kind: types.KindFeature, seqGroup: 1},
	{re: regexp.MustCompile(`(?i)^RP(\d+)-(\d+)$`), kind: types.KindRisk, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^(?:RP|RiskP)(\d+)?-E-?\d+-R?(\d+)$`), kind: types.KindRisk, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^DP(\d+)-(\d+)$`), kind: types.KindDependency, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^DP(\d+)?-E-?\d+-R?(\d+)$`), kind: types.KindDependency, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^TObjP(\d+)-(\d+)$`), kind: types.KindObjective, commitment: types.CommitmentCommitted, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^uTObjP(\d+)-(\d+)$`), kind: types.KindObjective, commitment: types.CommitmentUncommitted, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^IssueP(\d+)-(\d+)$`), kind: types.KindIssue, iterGroup: 1, seqGroup: 2},
	{re: regexp.MustCompile(`(?i)^IssueP(\d+)?-E-?\d+-R?(\d+)$`), kind: types.KindIssue, iterGroup: 1, seqGroup: 2},

	// Bare tags: kind only, no numbers.
	{re: regexp.MustCompile(`(?i)^feat$`), kind: types.KindFeature},
	{re: regexp.MustCompile(`(?i)^(?:rsk|risk)$`), kind: types.KindRisk},
	{re: regexp.MustCompile(`(?i)^(?:dp|dep)$`), kind: types.KindDependency},
	{re: regexp.MustCompile(`(?i)^tobj$`), kind: types.KindObjective, commitment: types.CommitmentCommitted},
	{re: regexp.MustCompile(`(?i)^utobj$`), kind: types.KindObjective, commitment: types.CommitmentUncommitted},
	{re: regexp.MustCompile(`(?i)^(?:bug|issue)$`), kind: types.KindIssue},
}
