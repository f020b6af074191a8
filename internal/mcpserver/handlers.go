package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// How long analyze_token waits for a queued job before giving up, and
// how often it polls.
const (
	analyzeWaitTimeout = 3 * time.Minute
	analyzePollEvery   = 2 * time.Second
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *RugscanClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *RugscanClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeToken runs a full analysis, polling the job queue until
// the report is ready.
func (h *Handlers) HandleAnalyzeToken(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}
	chain := req.GetString("chain", "ethereum")

	raw, err := h.client.Analyze(ctx, chain, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis request failed: %v", err)), nil
	}

	var resp struct {
		Status string          `json:"status"`
		JobID  string          `json:"jobId"`
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}

	if resp.Status == "completed" {
		return mcp.NewToolResultText(formatReport(resp.Report)), nil
	}

	// Queued: poll the job until it settles.
	report, err := h.waitForJob(ctx, resp.JobID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatReport(report)), nil
}

func (h *Handlers) waitForJob(ctx context.Context, jobID string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(analyzePollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("analysis still running after %s; check job %s later with the API", analyzeWaitTimeout, jobID)
		case <-ticker.C:
		}

		raw, err := h.client.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("job lookup failed: %v", err)
		}

		var job struct {
			Status string          `json:"status"`
			Error  string          `json:"error"`
			Report json.RawMessage `json:"report"`
		}
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("failed to parse job: %v", err)
		}

		switch job.Status {
		case "completed":
			return job.Report, nil
		case "failed":
			return nil, fmt.Errorf("analysis failed: %s", job.Error)
		}
	}
}

// HandleGetReport fetches a stored report.
func (h *Handlers) HandleGetReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}
	chain := req.GetString("chain", "ethereum")

	raw, err := h.client.GetReport(ctx, chain, address)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get report: %v", err)), nil
	}

	return mcp.NewToolResultText(formatReport(raw)), nil
}

// HandleListRecentReports lists recently analyzed tokens.
func (h *Handlers) HandleListRecentReports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListReports(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list reports: %v", err)), nil
	}

	text, err := formatReportList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse reports: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListChains lists supported chains.
func (h *Handlers) HandleListChains(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListChains(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list chains: %v", err)), nil
	}

	var resp struct {
		Chains []string `json:"chains"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Chains) == 0 {
		return mcp.NewToolResultError("unexpected chains response format"), nil
	}

	return mcp.NewToolResultText("Supported chains: " + strings.Join(resp.Chains, ", ")), nil
}

// --- Formatting helpers ---

func formatReport(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return string(raw)
	}

	var sb strings.Builder

	name := getString(m, "tokenName")
	symbol := getString(m, "tokenSymbol")
	switch {
	case name != "" && symbol != "":
		fmt.Fprintf(&sb, "Token: %s (%s)\n", name, symbol)
	case name != "":
		fmt.Fprintf(&sb, "Token: %s\n", name)
	}
	fmt.Fprintf(&sb, "Address: %s on %s\n", getString(m, "address"), getString(m, "chain"))

	score, _ := getFloat(m, "riskScore")
	fmt.Fprintf(&sb, "\nRisk Score: %.0f/100 (%s)\n", score, strings.ToUpper(getString(m, "riskTier")))
	if conf, ok := getFloat(m, "confidence"); ok {
		fmt.Fprintf(&sb, "Confidence: %.0f%%\n", conf*100)
	}

	mrr, _ := getFloat(m, "mrr")
	scr, _ := getFloat(m, "scr")
	mfr, _ := getFloat(m, "mfr")
	fmt.Fprintf(&sb, "Sub-scores: rug risk %.0f, centralization %.0f, market fragility %.0f\n", mrr, scr, mfr)

	if contract, ok := m["contractAnalysis"].(map[string]any); ok {
		sb.WriteString("\nContract:\n")
		if ctrl, ok := contract["controller"].(map[string]any); ok {
			line := fmt.Sprintf("  Controller: %s", getString(ctrl, "type"))
			if owner := getString(ctrl, "owner"); owner != "" {
				line += " (" + owner + ")"
			}
			sb.WriteString(line + "\n")
		}
		fmt.Fprintf(&sb, "  Verified: %v | Proxy: %v | Ownership renounced: %v\n",
			getBool(contract, "verified"), getBool(contract, "isProxy"), getBool(contract, "ownershipRenounced"))
		if caps, ok := contract["capabilities"].([]any); ok && len(caps) > 0 {
			names := make([]string, 0, len(caps))
			for _, c := range caps {
				if cm, ok := c.(map[string]any); ok {
					if n := getString(cm, "capability"); n != "" {
						names = append(names, n)
					}
				}
			}
			if len(names) > 0 {
				fmt.Fprintf(&sb, "  Capabilities: %s\n", strings.Join(names, ", "))
			}
		}
	}

	if liq, ok := m["liquidityAnalysis"].(map[string]any); ok {
		sb.WriteString("\nMarket:\n")
		if v, ok := getFloat(liq, "liquidityUsd"); ok {
			fmt.Fprintf(&sb, "  Primary pair liquidity: $%.0f\n", v)
		} else {
			sb.WriteString("  Primary pair liquidity: unknown\n")
		}
		if v, ok := getFloat(liq, "volume24hUsd"); ok {
			fmt.Fprintf(&sb, "  24h volume: $%.0f\n", v)
		}
		if v, ok := getFloat(liq, "tokenAgeDays"); ok {
			fmt.Fprintf(&sb, "  Token age: %.0f days\n", v)
		}
	}

	if hold, ok := m["holderAnalysis"].(map[string]any); ok {
		if getBool(hold, "holdersUnavailable") {
			sb.WriteString("\nHolders: data unavailable\n")
		} else {
			sb.WriteString("\nHolders:\n")
			if v, ok := getFloat(hold, "top1Concentration"); ok {
				fmt.Fprintf(&sb, "  Top holder: %.1f%% of supply\n", v)
			}
			if v, ok := getFloat(hold, "top10Concentration"); ok {
				fmt.Fprintf(&sb, "  Top 10 holders: %.1f%% of supply\n", v)
			}
		}
	}

	if signals, ok := m["signals"].([]any); ok && len(signals) > 0 {
		sb.WriteString("\nSignals:\n")
		for _, s := range signals {
			sm, ok := s.(map[string]any)
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "  [%s] %s\n", getString(sm, "severity"), getString(sm, "title"))
		}
	}

	return sb.String()
}

func formatReportList(raw json.RawMessage) (string, error) {
	var resp struct {
		Reports []map[string]any `json:"reports"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected reports response format")
	}
	if len(resp.Reports) == 0 {
		return "No reports yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d analyzed token(s):\n\n", len(resp.Reports))
	for i, r := range resp.Reports {
		score, _ := getFloat(r, "riskScore")
		label := getString(r, "tokenSymbol")
		if label == "" {
			label = getString(r, "address")
		}
		fmt.Fprintf(&sb, "%d. %s on %s\n", i+1, label, getString(r, "chain"))
		fmt.Fprintf(&sb, "   Risk: %.0f/100 (%s)\n", score, getString(r, "riskTier"))
		if i < len(resp.Reports)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// getString extracts a string value from a map.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// getBool extracts a bool value from a map.
func getBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}
