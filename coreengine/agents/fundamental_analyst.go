package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
	"github.com/msyber/agora/coreengine/typeutil"
)

var filingPattern = regexp.MustCompile(`(?i).*(Item .*?) from the (\d+-[KQ]) for ([A-Z]+)`)

// FilingRequest is a parsed filing analysis request.
type FilingRequest struct {
	Ticker     string
	FilingType string
	Section    string
}

// ParseFilingRequest parses requests like "Analyze Item 1A. Risk Factors from the 10-K for NVDA".
func ParseFilingRequest(query string) (FilingRequest, bool) {
	m := filingPattern.FindStringSubmatch(query)
	if m == nil {
		return FilingRequest{}, false
	}
	return FilingRequest{
		Section:    strings.TrimSpace(m[1]),
		FilingType: strings.ToUpper(m[2]),
		Ticker:     strings.ToUpper(m[3]),
	}, true
}

// ArtifactName returns the name the raw filing excerpt is stored under.
func (r FilingRequest) ArtifactName() string {
	return artifact.FileName(r.Ticker, strings.ReplaceAll(r.FilingType, "-", "")+"_risks_raw", "txt")
}

// FundamentalAnalyst fetches one section of an SEC filing and stores it as text.
type FundamentalAnalyst struct {
	base
}

// NewFundamentalAnalyst creates a FundamentalAnalyst. An empty tool selects fetch_sec_filing_section.
func NewFundamentalAnalyst(name, tool string, deps Deps) *FundamentalAnalyst {
	if tool == "" {
		tool = tools.ToolFetchSECFilingSection
	}
	return &FundamentalAnalyst{base: newBase(name, "Fundamental-Analyst", tool, deps)}
}

func (f *FundamentalAnalyst) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return f.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		req, ok := ParseFilingRequest(sc.Input)
		if !ok {
			f.logger.Warn("filing_request_unparsed", "input", sc.Input)
			return events.Failed(f.name, "Query did not match expected format for filing analysis.", nil), nil
		}

		result, err := f.call(ctx, map[string]any{
			"ticker":      req.Ticker,
			"filing_type": req.FilingType,
			"section":     req.Section,
		})
		if err != nil {
			return events.Event{}, err
		}
		content := typeutil.StringDefault(result["content"], "")
		if content == "" {
			return events.Event{}, NewDomainFailureError(f.tool, "empty filing content", nil)
		}

		name := req.ArtifactName()
		version, err := f.save(ctx, sc, name, artifact.MIMEText, []byte(content))
		if err != nil {
			return events.Event{}, err
		}

		return f.event(
			fmt.Sprintf("Fundamental-Analyst successfully stored '%s' (v%d).", name, version),
			map[string]any{session.KeyLastFilingFile: name},
		), nil
	})
}
