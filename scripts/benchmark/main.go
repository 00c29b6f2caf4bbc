package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/shopscout/models"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:3001", "shopscout API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per query for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Queries covering short, long and oddly-punctuated searches.
var testQueries = []struct {
	Label string
	Query string
}{
	{"Phone", "pixel 9"},
	{"Long", "apple iphone 15 pro max 256gb natural titanium"},
	{"Appliance", "electric kettle 1.5 litre"},
	{"Punctuation", "m&m's 100%"},
	{"Niche", "mechanical keyboard hot swappable"},
}

// --- Benchmark result types ---

type runResult struct {
	Run        int            `json:"run"`
	TotalMs    int64          `json:"total_ms"`
	HTTPStatus int            `json:"http_status"`
	Products   map[string]int `json:"products"`
	Failed     []string       `json:"failed_sources,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

type queryAverages struct {
	TotalMs  float64            `json:"total_ms"`
	Products map[string]float64 `json:"products"`
}

type queryResult struct {
	Query    string         `json:"query"`
	Label    string         `json:"label"`
	Runs     []runResult    `json:"runs"`
	Averages *queryAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== shopscout Benchmark Suite ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure shopscout is running (e.g. go run ./cmd/shopscout)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
	}

	for _, t := range testQueries {
		fmt.Printf("Benchmarking [%s] %q ...\n", t.Label, t.Query)
		qr := queryResult{Query: t.Query, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkQuery(t.Query, i)
			switch {
			case !rr.Success:
				fmt.Printf("FAILED: %s\n", rr.Error)
			case len(rr.Failed) > 0:
				fmt.Printf("PARTIAL  %dms  %v  failed=%v\n", rr.TotalMs, rr.Products, rr.Failed)
			default:
				fmt.Printf("OK  %dms  %v\n", rr.TotalMs, rr.Products)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Averages = computeAverages(qr.Runs)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkQuery(query string, run int) runResult {
	rr := runResult{Run: run, Products: map[string]int{}}

	req, err := http.NewRequest(http.MethodGet, *apiURL+"/api/v1/scrape?"+url.Values{"query": {query}}.Encode(), nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	err = json.NewDecoder(resp.Body).Decode(&body)
	rr.TotalMs = time.Since(start).Milliseconds()
	rr.HTTPStatus = resp.StatusCode
	if err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	if resp.StatusCode != http.StatusOK {
		var msg string
		_ = json.Unmarshal(body["error"], &msg)
		rr.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg)
		return rr
	}

	var failures string
	_ = json.Unmarshal(body["error"], &failures)

	for source, raw := range body {
		if source == "timestamp" || source == "error" {
			continue
		}
		var products []models.ProductRecord
		if err := json.Unmarshal(raw, &products); err != nil {
			rr.Error = fmt.Sprintf("decode %s: %v", source, err)
			return rr
		}
		rr.Products[source] = len(products)
		if strings.Contains(failures, source+": ") {
			rr.Failed = append(rr.Failed, source)
		}
	}
	sort.Strings(rr.Failed)

	rr.Success = true
	return rr
}

func computeAverages(runs []runResult) *queryAverages {
	var successCount int
	avg := queryAverages{Products: map[string]float64{}}

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		for source, n := range r.Products {
			avg.Products[source] += float64(n)
		}
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	for source := range avg.Products {
		avg.Products[source] /= n
	}
	return &avg
}

func printTable(results []queryResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Query\tAvg Latency\tAvg Products\tPartial Runs\n")
	fmt.Fprintf(w, "─────\t───────────\t────────────\t────────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", truncate(r.Query, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%s\t%d/%d\n",
			truncate(r.Query, 40),
			int64(r.Averages.TotalMs),
			formatProducts(r.Averages.Products),
			partialRuns(r.Runs),
			len(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func partialRuns(runs []runResult) int {
	n := 0
	for _, r := range runs {
		if r.Success && len(r.Failed) > 0 {
			n++
		}
	}
	return n
}

func formatProducts(avg map[string]float64) string {
	sources := make([]string, 0, len(avg))
	for s := range avg {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, fmt.Sprintf("%s=%.1f", s, avg[s]))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
