package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *ToolExecutor {
	t.Helper()
	exec := NewToolExecutor()
	require.NoError(t, RegisterMarketTools(exec,
		WithCatalogClock(func() time.Time { return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { return "0001" }),
	))
	return exec
}

func run(t *testing.T, exec *ToolExecutor, name string, params map[string]any) map[string]any {
	t.Helper()
	result, err := exec.Execute(context.Background(), name, params)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result["status"], "result: %v", result)
	return result
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestRegisterMarketTools(t *testing.T) {
	exec := newTestExecutor(t)
	assert.Equal(t, []string{
		ToolAuditTradeDebate,
		ToolCritiqueTradeProposal,
		ToolExtractInsights,
		ToolFetchNewsArticles,
		ToolFetchSECFilingSection,
		ToolFormulateTradeProposal,
		ToolRunCausalDiscovery,
	}, exec.List())
}

func TestFetchNewsArticles(t *testing.T) {
	exec := newTestExecutor(t)

	result := run(t, exec, ToolFetchNewsArticles, map[string]any{"query": "MSFT", "limit": 10})
	articles := result["articles"].([]any)
	require.Len(t, articles, 2)
	first := articles[0].(map[string]any)
	assert.Equal(t, "Positive Outlook for MSFT in Q3", first["headline"])
	assert.Equal(t, "2026-03-02T14:00:00Z", first["timestamp_utc"])

	limited := run(t, exec, ToolFetchNewsArticles, map[string]any{"query": "MSFT", "limit": 1})
	assert.Len(t, limited["articles"].([]any), 1)

	failed, err := exec.Execute(context.Background(), ToolFetchNewsArticles, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, failed["status"])
}

func TestFetchSECFilingSection(t *testing.T) {
	exec := newTestExecutor(t)

	result := run(t, exec, ToolFetchSECFilingSection, map[string]any{
		"ticker": "GOOGL", "filing_type": "10-K", "section": "Item 1A. Risk Factors",
	})
	assert.Contains(t, result["content"], "Excerpt from GOOGL 10-K - Item 1A. Risk Factors:")
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Positive Outlook for MSFT in Q3", SentimentPositive},
		{"Market Volatility Impacts MSFT Stock", SentimentNegative},
		{"MSFT holds annual meeting", SentimentNeutral},
		{"Growth offsets lawsuit", SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentiment(tt.text))
		})
	}
}

// TestTradeDebateChain walks the reference MSFT evidence from articles to audit.
func TestTradeDebateChain(t *testing.T) {
	exec := newTestExecutor(t)

	news := run(t, exec, ToolFetchNewsArticles, map[string]any{"query": "MSFT", "limit": 10})
	insights := run(t, exec, ToolExtractInsights, map[string]any{"articles": news["articles"]})["insights"]
	labels := []string{}
	for _, in := range insights.([]any) {
		labels = append(labels, in.(map[string]any)["sentiment"].(string))
	}
	assert.Equal(t, []string{SentimentPositive, SentimentNegative}, labels)

	graph := run(t, exec, ToolRunCausalDiscovery, map[string]any{"insights": insights})["causal_graph"]
	links := graph.(map[string]any)["links"].([]any)
	require.Len(t, links, 2)
	assert.Equal(t, "Increased Positive Price Expectation", links[0].(map[string]any)["effect"])
	assert.Equal(t, 0.80, links[1].(map[string]any)["confidence"])

	proposal := run(t, exec, ToolFormulateTradeProposal, map[string]any{
		"ticker": "MSFT", "insights": insights, "causal_graph": graph,
	})["proposal"].(map[string]any)
	assert.Equal(t, ActionBuy, proposal["action"])
	assert.Equal(t, 0.45, proposal["confidence_score"])

	critique := run(t, exec, ToolCritiqueTradeProposal, map[string]any{
		"proposal": proposal, "causal_graph": graph,
	})["critique"].(map[string]any)
	assert.Equal(t, true, critique["proposal_is_sound"])
	assert.Len(t, critique["identified_risks"], 1)

	audit := run(t, exec, ToolAuditTradeDebate, map[string]any{
		"proposal": proposal, "critique": critique,
	})["audit"].(map[string]any)
	assert.Equal(t, DecisionApprove, audit["decision"])
	assert.Equal(t, "MSFT-0001", audit["proposal_id"])
	assert.Empty(t, audit["unresolved_flaws"])
}

func TestThinEvidenceIsVetoed(t *testing.T) {
	exec := newTestExecutor(t)
	graph := map[string]any{"links": []any{
		map[string]any{"effect": "Increased Positive Price Expectation", "confidence": 0.75},
	}}

	proposal := run(t, exec, ToolFormulateTradeProposal, map[string]any{
		"ticker": "NVDA", "causal_graph": graph,
	})["proposal"].(map[string]any)
	assert.Equal(t, ActionBuy, proposal["action"])
	assert.Equal(t, 0.75, proposal["confidence_score"])

	critique := run(t, exec, ToolCritiqueTradeProposal, map[string]any{
		"proposal": proposal, "causal_graph": graph,
	})["critique"].(map[string]any)
	assert.Equal(t, false, critique["proposal_is_sound"])

	audit := run(t, exec, ToolAuditTradeDebate, map[string]any{
		"proposal": proposal, "critique": critique,
	})["audit"].(map[string]any)
	assert.Equal(t, DecisionVeto, audit["decision"])
	assert.Len(t, audit["unresolved_flaws"], 1)
}

func TestNoLinksHolds(t *testing.T) {
	exec := newTestExecutor(t)

	proposal := run(t, exec, ToolFormulateTradeProposal, map[string]any{
		"ticker": "JPM", "causal_graph": map[string]any{"links": []any{}},
	})["proposal"].(map[string]any)
	assert.Equal(t, ActionHold, proposal["action"])
	assert.Equal(t, 0.0, proposal["confidence_score"])
}
