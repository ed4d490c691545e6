package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataDog/supply-chain-firewall/internal/config"
	"github.com/DataDog/supply-chain-firewall/internal/logger"
)

var (
	logFilterAction string
	logLast         int
	logSummary      bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the decision log",
	Long: `View the firewall's decision log with filtering and summary options.

Examples:
  scfw log                     # Show all records
  scfw log --last 20           # Show last 20 records
  scfw log --action BLOCK      # Show only blocked commands
  scfw log --summary           # Show summary statistics`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterAction, "action", "", "Filter by action (ALLOW, BLOCK, ABORT)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N records")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Flags{LogFile: flagLogFile, Changed: cmd.Flags().Changed})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	records, err := readDecisionLog(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to read decision log: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No decision log records found.")
		return nil
	}

	filtered := filterRecords(records)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(records)
		return nil
	}
	printRecords(filtered)
	return nil
}

func readDecisionLog(path string) ([]logger.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []logger.Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec logger.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // skip malformed lines
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func filterRecords(records []logger.Record) []logger.Record {
	if logFilterAction == "" {
		return records
	}
	var filtered []logger.Record
	for _, r := range records {
		if strings.EqualFold(r.Action, logFilterAction) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func printRecords(records []logger.Record) {
	for _, r := range records {
		warned := ""
		if r.Warned {
			warned = " [WARNED]"
		}
		fmt.Printf("%-5s %s %s%s\n", r.Action, formatTimestamp(r.Timestamp), strings.Join(r.Command, " "), warned)
		if len(r.Targets) > 0 {
			fmt.Printf("      Targets: %s\n", strings.Join(r.Targets, ", "))
		}
		if r.Findings > 0 {
			fmt.Printf("      Findings: %d\n", r.Findings)
		}
	}
}

func printSummary(records []logger.Record) {
	counts := map[string]int{}
	warnedCount := 0
	for _, r := range records {
		counts[r.Action]++
		if r.Warned {
			warnedCount++
		}
	}

	fmt.Printf("Total records: %d\n", len(records))
	fmt.Printf("  ALLOW: %d\n", counts["ALLOW"])
	fmt.Printf("  BLOCK: %d\n", counts["BLOCK"])
	fmt.Printf("  ABORT: %d\n", counts["ABORT"])
	fmt.Printf("  Proceeded past warnings: %d\n", warnedCount)
	fmt.Printf("First record: %s\n", formatTimestamp(records[0].Timestamp))
	fmt.Printf("Last record:  %s\n", formatTimestamp(records[len(records)-1].Timestamp))
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
