package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
)

// UnknownSubject is the subject used when a request names no ticker.
const UnknownSubject = "UNKNOWN_SUBJECT"

// Harvest statuses written under session.KeyStatus.
const (
	StatusHarvestSuccess = "harvest_success"
	StatusHarvestFailed  = "harvest_failed"
)

const newsLimit = 10

var subjectPattern = regexp.MustCompile(`\b[A-Z]{2,}\b`)

// ExtractSubject returns the last all-caps token of two or more letters in query.
func ExtractSubject(query string) string {
	matches := subjectPattern.FindAllString(query, -1)
	if len(matches) == 0 {
		return UnknownSubject
	}
	return matches[len(matches)-1]
}

// DataHarvester fetches news for the request's subject and stores it raw.
type DataHarvester struct {
	base
}

// NewDataHarvester creates a DataHarvester. An empty tool selects fetch_news_articles.
func NewDataHarvester(name, tool string, deps Deps) *DataHarvester {
	if tool == "" {
		tool = tools.ToolFetchNewsArticles
	}
	return &DataHarvester{base: newBase(name, "Data-Harvester", tool, deps)}
}

func (h *DataHarvester) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return h.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		subject := ExtractSubject(sc.Input)
		h.logger.Info("harvest_requested", "subject", subject)

		failed := map[string]any{session.KeyStatus: StatusHarvestFailed}
		result, err := h.call(ctx, map[string]any{"query": subject, "limit": newsLimit})
		if err != nil {
			return h.failure(err, failed), nil
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return h.failure(err, failed), nil
		}

		name := artifact.FileName(subject, "news_raw", "json")
		version, err := h.save(ctx, sc, name, artifact.MIMEJSON, data)
		if err != nil {
			h.logger.Error("artifact_save_failed", "artifact", name, "error", err.Error())
			return events.Failed(h.name, "Data-Harvester failed during artifact save.", failed), nil
		}

		return h.event(
			fmt.Sprintf("Data-Harvester successfully stored '%s' (v%d).", name, version),
			map[string]any{
				session.KeyStatus:            StatusHarvestSuccess,
				session.KeyLastHarvestedFile: name,
			},
		), nil
	})
}
