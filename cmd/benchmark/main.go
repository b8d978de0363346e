// Benchmark tool for testing Kestrel against labeled tradeline data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/tradelines.csv -url http://localhost:8080
//
// This tool:
//   1. Reads tradeline rows (with has_violation labels)
//   2. Sends each record to Kestrel for auditing
//   3. Compares Kestrel's verdict (flagged / clean) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledTradeline is one CSV row: an account record plus its label.
type LabeledTradeline struct {
	AccountID    string
	Record       map[string]string
	HasViolation bool
}

// columnFields maps CSV header names to record field keys.
var columnFields = map[string]string{
	"account_id":             "accountId",
	"date_opened":            "dateOpened",
	"dofd":                   "dofd",
	"charge_off_date":        "chargeOffDate",
	"date_last_payment":      "dateLastPayment",
	"estimated_removal_date": "estimatedRemovalDate",
	"current_balance":        "currentBalance",
	"original_amount":        "originalAmount",
	"account_type":           "accountType",
	"account_status":         "accountStatus",
	"payment_history":        "paymentHistory",
	"furnisher":              "furnisherOrCollector",
	"original_creditor":      "originalCreditor",
	"state":                  "stateCode",
}

// AuditRequest is the Kestrel API request format.
type AuditRequest struct {
	AccountID string            `json:"accountId"`
	Record    map[string]string `json:"record"`
}

// AuditResponse is the subset of the audit we score against.
type AuditResponse struct {
	ID    string `json:"id"`
	Flags []struct {
		RuleID   string `json:"ruleId"`
		Severity string `json:"severity"`
	} `json:"flags"`
	Risk struct {
		OverallScore int    `json:"overallScore"`
		RiskLevel    string `json:"riskLevel"`
	} `json:"risk"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Violation flagged
	FalsePositives int64 // Clean record flagged
	TrueNegatives  int64 // Clean record passed
	FalseNegatives int64 // Violation missed

	TotalProcessed  int64
	TotalViolations int64
	TotalClean      int64
	TotalErrors     int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled tradeline CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum records to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	violationsOnly := flag.Bool("violations-only", false, "Only test labeled-violation rows")
	verbose := flag.Bool("verbose", false, "Print each record result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/tradelines.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Tradeline Violation Detection      ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read labeled data
	fmt.Printf("\nReading tradeline data from %s...\n", *csvPath)
	tradelines, err := readTradelineCSV(*csvPath, *limit, *violationsOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d tradelines\n", len(tradelines))

	violationCount := 0
	for _, tl := range tradelines {
		if tl.HasViolation {
			violationCount++
		}
	}
	fmt.Printf("  - Violations: %d (%.2f%%)\n", violationCount, 100*float64(violationCount)/float64(len(tradelines)))
	fmt.Printf("  - Clean:      %d (%.2f%%)\n", len(tradelines)-violationCount, 100*float64(len(tradelines)-violationCount)/float64(len(tradelines)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(tradelines, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readTradelineCSV(path string, limit int, violationsOnly bool) ([]LabeledTradeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	labelCol, ok := colIndex["has_violation"]
	if !ok {
		return nil, fmt.Errorf("csv has no has_violation column")
	}

	var tradelines []LabeledTradeline

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		hasViolation := row[labelCol] == "1" || strings.EqualFold(row[labelCol], "true")
		if violationsOnly && !hasViolation {
			continue
		}

		// Absent fields matter to the rules, so empty cells are dropped
		// rather than sent as "".
		record := make(map[string]string)
		for col, field := range columnFields {
			idx, ok := colIndex[col]
			if !ok || idx >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[idx]); v != "" {
				record[field] = v
			}
		}

		tradelines = append(tradelines, LabeledTradeline{
			AccountID:    record["accountId"],
			Record:       record,
			HasViolation: hasViolation,
		})

		if limit > 0 && len(tradelines) >= limit {
			break
		}
	}

	return tradelines, nil
}

func runBenchmark(tradelines []LabeledTradeline, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledTradeline, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for tl := range work {
				start := time.Now()
				result, err := auditRecord(client, baseURL, tenantID, tl)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", tl.AccountID, err)
					}
					continue
				}

				// Track actual labels
				if tl.HasViolation {
					atomic.AddInt64(&metrics.TotalViolations, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				// Confusion matrix: any flag counts as a positive verdict.
				predicted := len(result.Flags) > 0
				actual := tl.HasViolation

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					id := tl.AccountID
					if len(id) > 12 {
						id = id[:12]
					}
					fmt.Printf("%s %-12s | Label: %-5v | Flags: %2d | Score: %3d | Level: %s\n",
						status,
						id,
						tl.HasViolation,
						len(result.Flags),
						result.Risk.OverallScore,
						result.Risk.RiskLevel,
					)
				}
			}
		}()
	}

	// Send work
	for _, tl := range tradelines {
		work <- tl
	}
	close(work)

	wg.Wait()

	return metrics
}

func auditRecord(client *http.Client, baseURL, tenantID string, tl LabeledTradeline) (*AuditResponse, error) {
	req := AuditRequest{
		AccountID: tl.AccountID,
		Record:    tl.Record,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/audit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AuditResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Violations: %d\n", m.TotalViolations)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  Flagged       Clean")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  V  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged records, how many had real violations)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of violations, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalViolations > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalViolations) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalViolations) * 100
		fmt.Printf("   Violations Found:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalViolations, detectionRate)
		fmt.Printf("   Violations Missed: %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalViolations, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f records/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most violations")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some violations")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant violations being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most violations are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
