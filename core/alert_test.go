package core

import (
	"testing"
	"time"
)

func TestValidStatus(t *testing.T) {
	for _, status := range KnownStatuses {
		if !ValidStatus(status) {
			t.Errorf("known status %q rejected", status)
		}
	}
	for _, status := range []string{"resolved", "closed", "FECHADO", " "} {
		if ValidStatus(status) {
			t.Errorf("unknown status %q accepted", status)
		}
	}
}

func TestAlertFilterEmpty(t *testing.T) {
	if !(AlertFilter{}).Empty() {
		t.Error("zero filter should be empty")
	}

	level := 5
	now := time.Now()
	for _, filter := range []AlertFilter{
		{Level: &level},
		{AgentName: "web-01"},
		{Search: "login"},
		{StartDate: &now},
		{EndDate: &now},
	} {
		if filter.Empty() {
			t.Errorf("filter %+v should not be empty", filter)
		}
	}
}

func TestToHit(t *testing.T) {
	alert := Alert{
		ID:             "a1",
		Timestamp:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Description:    "Failed login",
		Level:          7,
		AgentName:      "web-01",
		RuleName:       "sshd",
		RuleID:         "5710",
		Source:         "10.0.0.1",
		Destination:    "10.0.0.2",
		RegistryNumber: 4,
	}

	hit := alert.ToHit()
	if hit.ID != "a1" {
		t.Errorf("hit id = %q", hit.ID)
	}
	if hit.Source.Rule.Level != 7 || hit.Source.Rule.ID != "5710" || hit.Source.Rule.Description != "Failed login" {
		t.Errorf("rule block wrong: %+v", hit.Source.Rule)
	}
	if hit.Source.Agent.Name != "web-01" {
		t.Errorf("agent block wrong: %+v", hit.Source.Agent)
	}
	if !hit.Source.Timestamp.Equal(alert.Timestamp) {
		t.Errorf("timestamp not carried: %v", hit.Source.Timestamp)
	}
	if hit.RegistryNumber != 4 {
		t.Errorf("registry number not carried: %d", hit.RegistryNumber)
	}
}
