package simplybook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/cpr-booking-platform/internal/observability/metrics"
)

func TestMatchEventTiers(t *testing.T) {
	catalog := []Event{
		{ID: 1, Name: "Adult CPR/AED"},
		{ID: 2, Name: "BLS Provider"},
		{ID: 3, Name: "Pediatric CPR & First Aid"},
	}
	tests := []struct {
		name   string
		query  string
		wantID int
		tier   MatchTier
	}{
		{"exact", "BLS Provider", 2, MatchExact},
		{"case insensitive", "bls provider", 2, MatchCaseInsensitive},
		{"whitespace folded", "  BLS   Provider ", 2, MatchCaseInsensitive},
		{"query inside name", "pediatric cpr", 3, MatchSubstring},
		{"name inside query", "BLS Provider Renewal Course", 2, MatchSubstring},
		{"no match falls to first", "Wilderness Survival", 1, MatchFirstEntry},
		{"blank query falls to first", "", 1, MatchFirstEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, tier, ok := MatchEvent(catalog, tt.query)
			assert.True(t, ok)
			assert.Equal(t, tt.wantID, ev.ID)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestMatchEventEmptyCatalog(t *testing.T) {
	_, _, ok := MatchEvent(nil, "BLS Provider")
	assert.False(t, ok)
}

func TestResolveEventIDUsesCatalog(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, c := newFakeRPC(t, map[string]rpcHandler{
		"getEventList": func(params []json.RawMessage) (any, *RemoteError) {
			return map[string]any{"5": map[string]any{"id": "5", "name": "CPR & First Aid"}}, nil
		},
	})
	c.metrics = metrics.NewIntakeMetrics(reg)

	res := c.ResolveEventID(context.Background(), "tok", "cpr & first aid")
	assert.Equal(t, 5, res.EventID)
	assert.Equal(t, MatchCaseInsensitive, res.Tier)
	assert.False(t, res.Tier.Degraded())
}

func TestResolveEventIDFallsBackToStaticTable(t *testing.T) {
	_, c := newFakeRPC(t, map[string]rpcHandler{
		"getEventList": func(params []json.RawMessage) (any, *RemoteError) {
			return nil, &RemoteError{Code: -32001, Message: "Access denied"}
		},
	})

	res := c.ResolveEventID(context.Background(), "tok", "BLS Provider")
	assert.Equal(t, 2, res.EventID)
	assert.Equal(t, MatchStatic, res.Tier)

	res = c.ResolveEventID(context.Background(), "tok", "Underwater Basket Weaving")
	assert.Equal(t, DefaultEventID, res.EventID)
	assert.Equal(t, MatchDefault, res.Tier)
}

func TestResolveEventIDEmptyCatalogUsesOverride(t *testing.T) {
	_, base := newFakeRPC(t, map[string]rpcHandler{
		"getEventList": func(params []json.RawMessage) (any, *RemoteError) {
			return []any{}, nil
		},
	})
	c := NewClient(Config{
		CompanyLogin:   "cprco",
		APIKey:         "key",
		APIURL:         base.apiURL,
		StaticEventIDs: map[string]int{"Lifeguard CPR": 42, "BLS Provider": 9},
	}, nil, nil)

	assert.Equal(t, 42, c.ResolveEventID(context.Background(), "tok", "lifeguard cpr").EventID)
	assert.Equal(t, 9, c.ResolveEventID(context.Background(), "tok", "BLS Provider").EventID)
}
