package core

import (
	"errors"
	"time"
)

var ErrAlertNotFound = errors.New("alert not found")

// Alert is a single Wazuh alert as cached locally. The id is the
// Elasticsearch document id and is immutable once created; every other
// scalar field is overwritten on re-sync (last-write-wins).
type Alert struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Level       int       `json:"level"`
	AgentName   string    `json:"agentName"`
	RuleName    string    `json:"ruleName"`
	RuleID      string    `json:"ruleId"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Annotation is nil when the alert has never been triaged.
	Annotation *Annotation `json:"annotation,omitempty"`

	// RegistryNumber is the sequential display number assigned on first
	// view. Zero means not yet assigned.
	RegistryNumber int64 `json:"registryNumber,omitempty"`
}

// AlertHit renders an alert in the nested Elasticsearch hit shape the
// dashboard consumed before the local cache existed. Kept for backward
// compatibility with the remote passthrough responses.
type AlertHit struct {
	ID     string      `json:"_id"`
	Source AlertSource `json:"_source"`

	Annotation     *Annotation `json:"annotation,omitempty"`
	RegistryNumber int64       `json:"registryNumber,omitempty"`
}

// AlertSource is the nested _source document of an alert hit.
type AlertSource struct {
	Timestamp time.Time  `json:"@timestamp"`
	Rule      AlertRule  `json:"rule"`
	Agent     AlertAgent `json:"agent"`
	SourceIP  string     `json:"source_ip,omitempty"`
	DestIP    string     `json:"destination_ip,omitempty"`
}

// AlertRule is the rule block of an alert hit.
type AlertRule struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Level       int    `json:"level"`
}

// AlertAgent is the agent block of an alert hit.
type AlertAgent struct {
	Name string `json:"name"`
}

// ToHit converts the flat cached row back into the source-compatible
// nested shape.
func (a *Alert) ToHit() AlertHit {
	return AlertHit{
		ID: a.ID,
		Source: AlertSource{
			Timestamp: a.Timestamp,
			Rule: AlertRule{
				ID:          a.RuleID,
				Name:        a.RuleName,
				Description: a.Description,
				Level:       a.Level,
			},
			Agent:    AlertAgent{Name: a.AgentName},
			SourceIP: a.Source,
			DestIP:   a.Destination,
		},
		Annotation:     a.Annotation,
		RegistryNumber: a.RegistryNumber,
	}
}

// AlertFilter holds the conjunctive query predicates. Zero values mean
// "no filter": the predicate is omitted entirely, never matched against
// a default.
type AlertFilter struct {
	Level     *int       // exact match
	AgentName string     // case-insensitive substring
	Search    string     // case-insensitive substring on description
	StartDate *time.Time // inclusive
	EndDate   *time.Time // inclusive
}

// Empty reports whether no predicate is set.
func (f AlertFilter) Empty() bool {
	return f.Level == nil && f.AgentName == "" && f.Search == "" &&
		f.StartDate == nil && f.EndDate == nil
}

// AlertStats aggregates annotation status counts for the dashboard.
// New is derived: total minus every counted status.
type AlertStats struct {
	Total          int64 `json:"total"`
	New            int64 `json:"newAlerts"`
	Closed         int64 `json:"closed"`
	InProgress     int64 `json:"inProgress"`
	Scheduled      int64 `json:"scheduled"`
	FalsePositive  int64 `json:"falsePositive"`
	Canceled       int64 `json:"canceled"`
	InHomologation int64 `json:"inHomologation"`
}
