package artifact

import (
	"fmt"
	"strings"
)

// Artifact name suffixes exchanged between stages. Names follow
// {subject}_{kind}.{ext}.
const (
	SuffixNewsRaw      = "_news_raw.json"
	SuffixRaw          = "_raw.json"
	SuffixInsights     = "_insights.json"
	SuffixCausalGraph  = "_causal_graph.json"
	SuffixProposal     = "_trade_proposal.json"
	SuffixCritique     = "_trade_critique.json"
	SuffixAudit        = "_trade_audit.json"
	SuffixOrder        = "_trade_order.json"
	SuffixConfirmation = "_trade_confirmation.json"
	SuffixRisksRaw     = "_risks_raw.txt"
)

// FileName builds {subject}_{kind}.{ext}.
func FileName(subject, kind, ext string) string {
	return fmt.Sprintf("%s_%s.%s", subject, kind, ext)
}

// Derive replaces the upstream suffix with next.
// MSFT_news_raw.json with (_raw.json, _insights.json) becomes MSFT_news_insights.json.
func Derive(upstream, suffix, next string) (string, error) {
	if !strings.HasSuffix(upstream, suffix) {
		return "", fmt.Errorf("artifact name '%s' does not end with '%s'", upstream, suffix)
	}
	return strings.TrimSuffix(upstream, suffix) + next, nil
}

// Subject returns the leading subject segment of an artifact name.
func Subject(name string) string {
	subject, _, _ := strings.Cut(name, "_")
	return subject
}
