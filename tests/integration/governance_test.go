//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Harrier
// governance API against a running server.
//
// These tests walk the full admin flow:
//
//	Provider → Rule set → Sub-rule config → Breach ingest →
//	Filtered query → Dashboard rollups → Cooldown lifecycle
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must be reachable (default http://localhost:8080, override
// with HARRIER_TEST_URL). Tests create their own fixtures per run and
// use a dedicated tenant, so they can run against a shared instance.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("HARRIER_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// call sends a JSON request and decodes the JSON response into out.
func call(t *testing.T, config TestConfig, method, path string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected status %d, got %d: %s", wantStatus, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
}

func TestGovernanceFlow(t *testing.T) {
	config := getTestConfig()
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	providerID := "provider-" + runID

	// 1. Register a signal provider
	call(t, config, http.MethodPost, "/providers", map[string]interface{}{
		"id":     providerID,
		"name":   "Integration Signals",
		"active": true,
	}, http.StatusCreated, nil)

	// 2. Create a rule set; it should carry four disabled defaults
	var ruleSet struct {
		ID       string `json:"id"`
		SubRules []struct {
			RuleType string `json:"ruleType"`
			Enabled  bool   `json:"enabled"`
		} `json:"subRules"`
	}
	call(t, config, http.MethodPost, "/rulesets", map[string]interface{}{
		"name":    "Integration Rules " + runID,
		"markets": []string{"Forex"},
		"active":  true,
	}, http.StatusCreated, &ruleSet)

	if len(ruleSet.SubRules) != 4 {
		t.Fatalf("Expected 4 default sub-rules, got %d", len(ruleSet.SubRules))
	}
	for _, sr := range ruleSet.SubRules {
		if sr.Enabled {
			t.Errorf("Sub-rule %s should start disabled", sr.RuleType)
		}
	}

	// 3. Enable the cooling-off rule and check the rendered summary
	call(t, config, http.MethodPut, "/rulesets/"+ruleSet.ID+"/rules/cooling_off", map[string]interface{}{
		"enabled": true,
		"config": map[string]interface{}{
			"metric": "sl_count",
			"tiers": []map[string]int{
				{"threshold": 2, "windowHours": 12, "coolOffHours": 24},
			},
		},
	}, http.StatusOK, nil)

	var summary struct {
		Summaries []struct {
			RuleType string `json:"ruleType"`
			Summary  string `json:"summary"`
		} `json:"summaries"`
	}
	call(t, config, http.MethodGet, "/rulesets/"+ruleSet.ID+"/summary", nil, http.StatusOK, &summary)

	found := false
	for _, s := range summary.Summaries {
		if s.RuleType == "cooling_off" {
			found = true
			if s.Summary != "Pause trading after 2 stop-losses within 12 h for 24 h." {
				t.Errorf("Unexpected cooling-off summary: %q", s.Summary)
			}
		}
	}
	if !found {
		t.Fatal("cooling_off summary missing")
	}

	// 4. Ingest breaches for the provider
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		call(t, config, http.MethodPost, "/breaches", map[string]interface{}{
			"occurredAt":  now.Add(-time.Duration(i+1) * time.Hour).Format(time.RFC3339),
			"providerId":  providerID,
			"market":      "Forex",
			"ruleSetId":   ruleSet.ID,
			"ruleType":    "cooling_off",
			"actionTaken": "cooldown_triggered",
		}, http.StatusCreated, nil)
	}

	// 5. Query breaches with a provider filter, names resolved
	var breaches struct {
		Events []struct {
			Provider string `json:"provider"`
			Market   string `json:"market"`
		} `json:"events"`
		Count int `json:"count"`
	}
	call(t, config, http.MethodGet, "/breaches?range=24h&provider="+providerID, nil, http.StatusOK, &breaches)

	if breaches.Count != 3 {
		t.Fatalf("Expected 3 breaches, got %d", breaches.Count)
	}
	if breaches.Events[0].Provider != "Integration Signals" {
		t.Errorf("Expected resolved provider name, got %q", breaches.Events[0].Provider)
	}

	// 6. Dashboard rollups reflect the ingested events
	var kpis struct {
		Breaches          int `json:"breaches"`
		ProvidersAffected int `json:"providersAffected"`
	}
	call(t, config, http.MethodGet, "/dashboard/kpis?range=24h&provider="+providerID, nil, http.StatusOK, &kpis)
	if kpis.Breaches != 3 {
		t.Errorf("Expected 3 breaches in KPIs, got %d", kpis.Breaches)
	}
	if kpis.ProvidersAffected != 1 {
		t.Errorf("Expected 1 affected provider, got %d", kpis.ProvidersAffected)
	}

	var heatmap struct {
		Sessions []struct {
			Label string `json:"label"`
		} `json:"sessions"`
	}
	call(t, config, http.MethodGet, "/dashboard/heatmap?range=24h&provider="+providerID+"&sessions=fixed", nil, http.StatusOK, &heatmap)
	if len(heatmap.Sessions) != 5 {
		t.Errorf("Expected 5 fixed sessions, got %d", len(heatmap.Sessions))
	}

	// 7. Start a cooldown and end it early with a reason
	var cd struct {
		ID string `json:"id"`
	}
	call(t, config, http.MethodPost, "/cooldowns", map[string]interface{}{
		"providerId": providerID,
		"market":     "Forex",
		"ruleSetId":  ruleSet.ID,
		"expiresAt":  now.Add(24 * time.Hour).Format(time.RFC3339),
	}, http.StatusCreated, &cd)

	// Ending without a reason must be rejected
	call(t, config, http.MethodPost, "/cooldowns/"+cd.ID+"/end", map[string]interface{}{
		"endedBy": "integration-test",
	}, http.StatusBadRequest, nil)

	var ended struct {
		Cooldown struct {
			Status string `json:"status"`
		} `json:"cooldown"`
	}
	call(t, config, http.MethodPost, "/cooldowns/"+cd.ID+"/end", map[string]interface{}{
		"reason":  "flow verified",
		"endedBy": "integration-test",
	}, http.StatusOK, &ended)
	if ended.Cooldown.Status != "ended_manually" {
		t.Errorf("Expected status ended_manually, got %s", ended.Cooldown.Status)
	}

	// A second end attempt conflicts
	call(t, config, http.MethodPost, "/cooldowns/"+cd.ID+"/end", map[string]interface{}{
		"reason": "again",
	}, http.StatusConflict, nil)

	// 8. Clean up the rule set
	call(t, config, http.MethodDelete, "/rulesets/"+ruleSet.ID, nil, http.StatusOK, nil)
	call(t, config, http.MethodGet, "/rulesets/"+ruleSet.ID, nil, http.StatusNotFound, nil)
}
