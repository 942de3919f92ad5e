package agents

// Audit decisions.
const (
	DecisionApprove = "APPROVE"
	DecisionVeto    = "VETO"
)

// TradeProposal is the strategist's recommendation.
type TradeProposal struct {
	Ticker            string   `json:"ticker"`
	Action            string   `json:"action"`
	ConfidenceScore   float64  `json:"confidence_score"`
	Reasoning         string   `json:"reasoning"`
	EvidenceArtifacts []string `json:"evidence_artifacts"`
}

// TradeCritique is the adversarial review of a proposal.
type TradeCritique struct {
	ProposalIsSound  bool     `json:"proposal_is_sound"`
	IdentifiedRisks  []string `json:"identified_risks"`
	LogicalFallacies []string `json:"logical_fallacies"`
	CritiqueSummary  string   `json:"critique_summary"`
}

// TradeAudit is the verdict the risk gate reads.
type TradeAudit struct {
	ProposalID      string   `json:"proposal_id"`
	Decision        string   `json:"decision"`
	Reasoning       string   `json:"reasoning"`
	UnresolvedFlaws []string `json:"unresolved_flaws"`
}

// Vetoed reports whether the verdict rejects the trade.
func (a TradeAudit) Vetoed() bool { return a.Decision == DecisionVeto }

// CausalLink is one edge of the causal graph.
type CausalLink struct {
	Cause       string  `json:"cause"`
	Effect      string  `json:"effect"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// CausalGraph is the causal analyst's output artifact.
type CausalGraph struct {
	Links []CausalLink `json:"links"`
}

// NewsArticle is one harvested article.
type NewsArticle struct {
	TimestampUTC string `json:"timestamp_utc"`
	Source       string `json:"source"`
	Headline     string `json:"headline"`
	Summary      string `json:"summary"`
}

// NewsBundle is the harvester's raw artifact.
type NewsBundle struct {
	Status   string        `json:"status"`
	Articles []NewsArticle `json:"articles"`
}

// Insight is the sentiment reading of one article.
type Insight struct {
	Headline  string `json:"headline"`
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
}

// InsightReport is the insight miner's output artifact.
type InsightReport struct {
	Insights []Insight `json:"insights"`
}
