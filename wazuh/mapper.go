package wazuh

import (
	"encoding/json"
	"fmt"
	"time"

	"vigia/core"
)

// esTotal tolerates both envelope shapes Elasticsearch has used for the
// hit total: a bare number (pre-7.x) and {"value": n, "relation": ...}.
type esTotal struct {
	Value int64
}

func (t *esTotal) UnmarshalJSON(data []byte) error {
	var bare int64
	if err := json.Unmarshal(data, &bare); err == nil {
		t.Value = bare
		return nil
	}

	var wrapped struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("unrecognized total shape: %w", err)
	}
	t.Value = wrapped.Value
	return nil
}

// esHit is one raw hit document from the _search response.
type esHit struct {
	ID     string   `json:"_id"`
	Source esSource `json:"_source"`
}

// esSource is the nested alert document. Every field is optional on the
// wire; mapping applies the documented defaults instead of erroring.
type esSource struct {
	Timestamp    string `json:"@timestamp"`
	TimestampAlt string `json:"timestamp"`
	Rule         struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Level       json.Number `json:"level"`
	} `json:"rule"`
	Agent struct {
		Name string `json:"name"`
	} `json:"agent"`
	SourceIP string `json:"source_ip"`
	DestIP   string `json:"destination_ip"`
}

type esSearchResponse struct {
	Hits struct {
		Total esTotal           `json:"total"`
		Hits  []json.RawMessage `json:"hits"`
	} `json:"hits"`
}

// parseSearchResponse validates the envelope against the hit schema and
// maps every hit into a core.Alert.
func parseSearchResponse(body []byte) (*SearchResult, error) {
	if err := validateEnvelope(body); err != nil {
		return nil, err
	}

	var resp esSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	result := &SearchResult{
		Total:   resp.Hits.Total.Value,
		Alerts:  make([]core.Alert, 0, len(resp.Hits.Hits)),
		RawHits: resp.Hits.Hits,
	}

	for _, raw := range resp.Hits.Hits {
		var hit esHit
		if err := json.Unmarshal(raw, &hit); err != nil {
			return nil, fmt.Errorf("%w: malformed hit: %v", ErrParseFailed, err)
		}
		result.Alerts = append(result.Alerts, mapHit(hit))
	}

	return result, nil
}

// mapHit converts one raw hit into the flat local shape. Defaults match
// the historical dashboard behavior: empty strings for missing text,
// level 0, agent "unknown", and the fetch time when no timestamp parses.
func mapHit(hit esHit) core.Alert {
	ts := parseTimestamp(hit.Source.Timestamp)
	if ts.IsZero() {
		ts = parseTimestamp(hit.Source.TimestampAlt)
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	level := 0
	if hit.Source.Rule.Level != "" {
		if n, err := hit.Source.Rule.Level.Int64(); err == nil {
			level = int(n)
		}
	}

	agent := hit.Source.Agent.Name
	if agent == "" {
		agent = "unknown"
	}

	return core.Alert{
		ID:          hit.ID,
		Timestamp:   ts,
		Description: hit.Source.Rule.Description,
		Level:       level,
		AgentName:   agent,
		RuleName:    hit.Source.Rule.Name,
		RuleID:      hit.Source.Rule.ID,
		Source:      hit.Source.SourceIP,
		Destination: hit.Source.DestIP,
	}
}

// parseTimestamp tries the formats Wazuh indexes emit in practice.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
