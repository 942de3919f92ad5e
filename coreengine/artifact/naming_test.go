package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		suffix   string
		next     string
		want     string
	}{
		{"raw to insights", "MSFT_news_raw.json", SuffixRaw, SuffixInsights, "MSFT_news_insights.json"},
		{"insights to causal graph", "MSFT_news_insights.json", SuffixInsights, SuffixCausalGraph, "MSFT_news_causal_graph.json"},
		{"multi segment subject", "BRK_B_news_raw.json", SuffixRaw, SuffixInsights, "BRK_B_news_insights.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derive(tt.upstream, tt.suffix, tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerive_WrongSuffix(t *testing.T) {
	_, err := Derive("MSFT_trade_order.json", SuffixRaw, SuffixInsights)
	assert.Error(t, err)
}

func TestFileNameAndSubject(t *testing.T) {
	name := FileName("NVDA", "trade_proposal", "json")
	assert.Equal(t, "NVDA_trade_proposal.json", name)
	assert.Equal(t, "NVDA", Subject(name))
	assert.Equal(t, "plain", Subject("plain"))
}
