package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/shopscout/models"
)

// errorResponse covers every non-200 body the shopscout API returns.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Example string `json:"example"`
}

func main() {
	apiURL := os.Getenv("SHOPSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3001"
	}
	// Optional: the API runs without auth by default.
	apiKey := os.Getenv("SHOPSCOUT_API_KEY")

	s := server.NewMCPServer(
		"shopscout",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search e-commerce sites (Amazon India, Flipkart) for a product and return the listings found on the first results page: name, price, rating, reviews, availability and links. Uses real headless browsers, so a call can take 30 seconds or more."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text product search, e.g. 'iphone 15 pro'"),
		),
		mcp.WithString("sources",
			mcp.Description("Comma-separated source IDs to restrict the search to (default: all), e.g. 'amazon,flipkart'"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached result up to this many seconds old (default: 0, always scrape; max: 3600)"),
		),
	)
	s.AddTool(searchTool, handleSearchProducts(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleSearchProducts(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		params := url.Values{"query": {query}}
		if sources := request.GetString("sources", ""); sources != "" {
			params.Set("sources", sources)
		}
		if maxAge := request.GetInt("max_age", 0); maxAge > 0 {
			params.Set("max_age", strconv.Itoa(maxAge))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/scrape?"+params.Encode(), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			var errResp errorResponse
			if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
				return mcp.NewToolResultError(fmt.Sprintf("search failed: HTTP %d", resp.StatusCode)), nil
			}
			msg := errResp.Error
			if errResp.Message != "" {
				msg += ": " + errResp.Message
			}
			if errResp.Code != "" {
				msg = fmt.Sprintf("[%s] %s", errResp.Code, msg)
			}
			return mcp.NewToolResultError(msg), nil
		}

		text, err := formatAggregate(query, respBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// formatAggregate renders the aggregate JSON as a plain-text listing, one
// block per source.
func formatAggregate(query string, body []byte) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", err
	}

	var timestamp, failures string
	if v, ok := raw["timestamp"]; ok {
		_ = json.Unmarshal(v, &timestamp)
	}
	if v, ok := raw["error"]; ok {
		_ = json.Unmarshal(v, &failures)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		if id != "timestamp" && id != "error" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for %q (captured %s)\n", query, timestamp)

	for _, id := range ids {
		var products []models.ProductRecord
		if err := json.Unmarshal(raw[id], &products); err != nil {
			return "", fmt.Errorf("source %s: %w", id, err)
		}
		fmt.Fprintf(&sb, "\n## %s (%d products)\n", id, len(products))
		for i, p := range products {
			fmt.Fprintf(&sb, "%d. %s\n   price: %s", i+1, p.Name, p.Price)
			if p.OriginalPrice != models.NotAvailable && p.OriginalPrice != "" {
				fmt.Fprintf(&sb, " (was %s)", p.OriginalPrice)
			}
			fmt.Fprintf(&sb, " | rating: %s | reviews: %s | %s\n", p.Rating, p.ReviewCount, p.Availability)
			if p.DetailURL != "" && p.DetailURL != models.NotAvailable {
				fmt.Fprintf(&sb, "   %s\n", p.DetailURL)
			}
		}
	}

	if failures != "" {
		fmt.Fprintf(&sb, "\nSome sources failed: %s\n", failures)
	}
	return sb.String(), nil
}
