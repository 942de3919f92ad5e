package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msyber/agora/coreengine/typeutil"
)

// Tool names of the market catalog.
const (
	ToolFetchNewsArticles      = "fetch_news_articles"
	ToolFetchSECFilingSection  = "fetch_sec_filing_section"
	ToolExtractInsights        = "extract_insights"
	ToolRunCausalDiscovery     = "run_causal_discovery"
	ToolFormulateTradeProposal = "formulate_trade_proposal"
	ToolCritiqueTradeProposal  = "critique_trade_proposal"
	ToolAuditTradeDebate       = "audit_trade_debate"
)

// Sentiment labels.
const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

// Trade actions and audit decisions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"

	DecisionApprove = "APPROVE"
	DecisionVeto    = "VETO"
)

// MinSoundConfidence is the lowest proposal confidence the critique accepts.
const MinSoundConfidence = 0.3

var (
	positiveTerms = []string{"outlook", "optimistic", "growth", "beat", "surge", "positive"}
	negativeTerms = []string{"volatility", "fluctuation", "decline", "miss", "lawsuit", "negative"}
)

// Catalog holds the deterministic reference implementations of the market tools.
type Catalog struct {
	now   func() time.Time
	newID func() string
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogClock sets the clock used for article timestamps.
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) { c.now = now }
}

// WithIDGenerator sets the generator used for proposal ids.
func WithIDGenerator(newID func() string) CatalogOption {
	return func(c *Catalog) { c.newID = newID }
}

// NewCatalog creates a Catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Definitions returns the catalog's tool definitions.
func (c *Catalog) Definitions() []*ToolDefinition {
	return []*ToolDefinition{
		{Name: ToolFetchNewsArticles, Stage: "harvester", Description: "Fetch recent news articles for a query.", Handler: c.FetchNewsArticles},
		{Name: ToolFetchSECFilingSection, Stage: "fundamental_analyst", Description: "Fetch one section of an SEC filing.", Handler: c.FetchSECFilingSection},
		{Name: ToolExtractInsights, Stage: "insight_miner", Description: "Label each article with a sentiment and summary.", Handler: c.ExtractInsights},
		{Name: ToolRunCausalDiscovery, Stage: "causal_analyst", Description: "Derive causal links from insights.", Handler: c.RunCausalDiscovery},
		{Name: ToolFormulateTradeProposal, Stage: "alpha_strategist", Description: "Turn insights and causal links into a trade proposal.", Handler: c.FormulateTradeProposal},
		{Name: ToolCritiqueTradeProposal, Stage: "devils_advocate", Description: "Critique a trade proposal.", Handler: c.CritiqueTradeProposal},
		{Name: ToolAuditTradeDebate, Stage: "auditor", Description: "Decide APPROVE or VETO from a proposal and its critique.", Handler: c.AuditTradeDebate},
	}
}

// RegisterMarketTools registers every catalog tool on the executor.
func RegisterMarketTools(exec *ToolExecutor, opts ...CatalogOption) error {
	for _, def := range NewCatalog(opts...).Definitions() {
		if err := exec.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// INTELLIGENCE
// =============================================================================

// FetchNewsArticles returns simulated articles for params["query"], capped at params["limit"].
func (c *Catalog) FetchNewsArticles(ctx context.Context, params map[string]any) (map[string]any, error) {
	query := typeutil.StringDefault(params["query"], "")
	if query == "" {
		return Failure("query is required"), nil
	}
	limit := typeutil.IntDefault(params["limit"], 10)

	ts := c.now().UTC().Format(time.RFC3339)
	articles := []any{
		map[string]any{
			"timestamp_utc": ts,
			"source":        "News Network A",
			"headline":      fmt.Sprintf("Positive Outlook for %s in Q3", query),
			"summary":       fmt.Sprintf("Analysts are optimistic about %s's performance heading into the next quarter.", query),
		},
		map[string]any{
			"timestamp_utc": ts,
			"source":        "Financial Times B",
			"headline":      fmt.Sprintf("Market Volatility Impacts %s Stock", query),
			"summary":       fmt.Sprintf("Broader market trends are causing fluctuations in %s's stock price.", query),
		},
	}
	if limit >= 0 && limit < len(articles) {
		articles = articles[:limit]
	}
	return Success(map[string]any{"articles": articles}), nil
}

// FetchSECFilingSection returns a simulated excerpt of one filing section.
func (c *Catalog) FetchSECFilingSection(ctx context.Context, params map[string]any) (map[string]any, error) {
	ticker := typeutil.StringDefault(params["ticker"], "")
	filingType := typeutil.StringDefault(params["filing_type"], "")
	section := typeutil.StringDefault(params["section"], "")
	if ticker == "" || filingType == "" || section == "" {
		return Failure("ticker, filing_type and section are required"), nil
	}

	content := fmt.Sprintf("Excerpt from %s %s - %s:\n", ticker, filingType, section) +
		"Our operations are subject to intense competition. We face competition from a " +
		"variety of companies in different industries. Our primary competitors include other " +
		"large technology companies that offer a range of products and services..."
	return Success(map[string]any{"content": content}), nil
}

// ExtractInsights labels each article by counting sentiment terms in its headline and summary.
func (c *Catalog) ExtractInsights(ctx context.Context, params map[string]any) (map[string]any, error) {
	articles, ok := typeutil.Maps(params["articles"])
	if !ok {
		return Failure("articles must be a list of objects"), nil
	}

	insights := make([]any, 0, len(articles))
	for _, article := range articles {
		headline := typeutil.StringDefault(article["headline"], "")
		summary := typeutil.StringDefault(article["summary"], "")
		if summary == "" {
			summary = headline
		}
		insights = append(insights, map[string]any{
			"headline":  headline,
			"sentiment": Sentiment(headline + " " + summary),
			"summary":   summary,
		})
	}
	return Success(map[string]any{"insights": insights}), nil
}

// Sentiment classifies text by which term list it hits more often.
func Sentiment(text string) string {
	lower := strings.ToLower(text)
	score := 0
	for _, term := range positiveTerms {
		if strings.Contains(lower, term) {
			score++
		}
	}
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			score--
		}
	}
	switch {
	case score > 0:
		return SentimentPositive
	case score < 0:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// =============================================================================
// CAUSALITY
// =============================================================================

// RunCausalDiscovery maps insights to causal links with fixed heuristics.
func (c *Catalog) RunCausalDiscovery(ctx context.Context, params map[string]any) (map[string]any, error) {
	insights, ok := typeutil.Maps(params["insights"])
	if !ok {
		return Failure("insights must be a list of objects"), nil
	}

	links := make([]any, 0, len(insights))
	for _, insight := range insights {
		headline := typeutil.StringDefault(insight["headline"], "Unknown Headline")
		sentiment := typeutil.StringDefault(insight["sentiment"], SentimentNeutral)
		lower := strings.ToLower(headline)

		switch {
		case strings.Contains(lower, "outlook") && sentiment == SentimentPositive:
			links = append(links, map[string]any{
				"cause":       fmt.Sprintf("Positive Sentiment in '%s'", headline),
				"effect":      "Increased Positive Price Expectation",
				"confidence":  0.75,
				"explanation": "Positive forward-looking statements often lead to bullish sentiment.",
			})
		case strings.Contains(lower, "volatility") && sentiment == SentimentNegative:
			links = append(links, map[string]any{
				"cause":       fmt.Sprintf("Negative Sentiment in '%s'", headline),
				"effect":      "Increased Market Uncertainty",
				"confidence":  0.80,
				"explanation": "Reports on volatility directly contribute to market uncertainty.",
			})
		}
	}
	return Success(map[string]any{"causal_graph": map[string]any{"links": links}}), nil
}

// =============================================================================
// STRATEGY
// =============================================================================

type weighedLinks struct {
	bullish     float64
	bearish     float64
	maxDampener float64
	effects     []string
	dampeners   []string
	count       int
}

func weighLinks(graph map[string]any) weighedLinks {
	var w weighedLinks
	links, _ := typeutil.Maps(graph["links"])
	for _, link := range links {
		effect := typeutil.StringDefault(link["effect"], "")
		confidence := typeutil.Float64Default(link["confidence"], 0)
		w.count++
		w.effects = append(w.effects, fmt.Sprintf("%s (%.2f)", effect, confidence))
		switch {
		case strings.Contains(effect, SentimentPositive):
			w.bullish = math.Max(w.bullish, confidence)
		case strings.Contains(effect, SentimentNegative):
			w.bearish = math.Max(w.bearish, confidence)
		default:
			w.maxDampener = math.Max(w.maxDampener, confidence)
			w.dampeners = append(w.dampeners, fmt.Sprintf("%s (confidence %.2f)", effect, confidence))
		}
	}
	return w
}

// FormulateTradeProposal nets bullish against bearish links and discounts the
// result by the strongest uncertainty link.
func (c *Catalog) FormulateTradeProposal(ctx context.Context, params map[string]any) (map[string]any, error) {
	ticker := typeutil.StringDefault(params["ticker"], "")
	if ticker == "" {
		return Failure("ticker is required"), nil
	}
	graph, ok := typeutil.Map(params["causal_graph"])
	if !ok {
		return Failure("causal_graph must be an object"), nil
	}
	insights, _ := typeutil.Maps(params["insights"])

	w := weighLinks(graph)
	net := w.bullish - w.bearish
	action := ActionHold
	switch {
	case net > 0:
		action = ActionBuy
	case net < 0:
		action = ActionSell
	}
	confidence := math.Round(math.Abs(net)*(1-w.maxDampener/2)*100) / 100

	positive := 0
	for _, insight := range insights {
		if typeutil.StringDefault(insight["sentiment"], "") == SentimentPositive {
			positive++
		}
	}
	reasoning := fmt.Sprintf("%d of %d insights carry positive sentiment.", positive, len(insights))
	if len(w.effects) > 0 {
		reasoning += " Causal links: " + strings.Join(w.effects, ", ") + "."
	} else {
		reasoning += " No causal links support a position."
	}

	return Success(map[string]any{
		"proposal": map[string]any{
			"ticker":           ticker,
			"action":           action,
			"confidence_score": confidence,
			"reasoning":        reasoning,
		},
	}), nil
}

// CritiqueTradeProposal flags unaddressed uncertainty links and thin evidence.
func (c *Catalog) CritiqueTradeProposal(ctx context.Context, params map[string]any) (map[string]any, error) {
	proposal, ok := typeutil.Map(params["proposal"])
	if !ok {
		return Failure("proposal must be an object"), nil
	}
	graph, _ := typeutil.Map(params["causal_graph"])
	w := weighLinks(graph)

	risks := make([]any, 0, len(w.dampeners))
	for _, d := range w.dampeners {
		risks = append(risks, "Unaddressed risk: "+d)
	}
	fallacies := make([]any, 0)
	if w.count < 2 {
		fallacies = append(fallacies, "Hasty generalization: the proposal rests on fewer than two causal links.")
	}
	action := typeutil.StringDefault(proposal["action"], ActionHold)
	if action == ActionHold {
		fallacies = append(fallacies, "No actionable position.")
	}
	confidence := typeutil.Float64Default(proposal["confidence_score"], 0)

	sound := action != ActionHold && confidence >= MinSoundConfidence && len(fallacies) == 0
	var summary string
	if sound {
		summary = fmt.Sprintf("The %s proposal is supported by the evidence with %d identified risk(s).", action, len(risks))
	} else {
		summary = fmt.Sprintf("The %s proposal is not sound: confidence %.2f with %d logical fallacy(ies).", action, confidence, len(fallacies))
	}

	return Success(map[string]any{
		"critique": map[string]any{
			"proposal_is_sound": sound,
			"identified_risks":  risks,
			"logical_fallacies": fallacies,
			"critique_summary":  summary,
		},
	}), nil
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditTradeDebate approves sound proposals and vetoes the rest.
func (c *Catalog) AuditTradeDebate(ctx context.Context, params map[string]any) (map[string]any, error) {
	proposal, ok := typeutil.Map(params["proposal"])
	if !ok {
		return Failure("proposal must be an object"), nil
	}
	critique, ok := typeutil.Map(params["critique"])
	if !ok {
		return Failure("critique must be an object"), nil
	}

	ticker := typeutil.StringDefault(proposal["ticker"], "UNKNOWN")
	sound, _ := typeutil.Bool(critique["proposal_is_sound"])
	risks, _ := typeutil.Strings(critique["identified_risks"])
	fallacies, _ := typeutil.Strings(critique["logical_fallacies"])

	decision := DecisionApprove
	reasoning := fmt.Sprintf("The critique found the proposal sound; %d identified risk(s) are acknowledged.", len(risks))
	flaws := make([]any, 0)
	if !sound {
		decision = DecisionVeto
		reasoning = "The critique left the proposal's flaws unresolved."
		for _, f := range fallacies {
			flaws = append(flaws, f)
		}
		for _, r := range risks {
			flaws = append(flaws, r)
		}
	}

	return Success(map[string]any{
		"audit": map[string]any{
			"proposal_id":      ticker + "-" + c.newID(),
			"decision":         decision,
			"reasoning":        reasoning,
			"unresolved_flaws": flaws,
		},
	}), nil
}
