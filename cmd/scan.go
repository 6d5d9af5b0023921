package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/grab-receipts-exporter/mbox"
	"github.com/dhcgn/grab-receipts-exporter/receipt"
	"github.com/dhcgn/grab-receipts-exporter/stats"
)

// NewScanCmd builds the offline analysis subcommand. It classifies every
// message of an mbox export without touching the ledger or the cursor, so
// template drift shows up as Unknown counts a human can review.
func NewScanCmd() *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	scanCmd := &cobra.Command{
		Use:   "scan [mbox file]",
		Short: "Classify an mbox export and show receipt statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mboxPath := args[0]

			fmt.Println("Scanning mbox file:", mboxPath)

			typeCounts := make(map[string]int)
			restaurants := make(map[string]int)
			serviceClasses := make(map[string]int)
			paymentMethods := make(map[string]int)
			months := make(map[string]int)

			messageCount := 0
			err := mbox.Read(mboxPath, func(m *mbox.Message) error {
				messageCount++

				rec := receipt.Parse(m.UID, m.Raw)
				typeCounts[string(rec.Type)]++

				if month := monthKey(rec.Date); month != "" {
					months[month]++
				}

				if rec.Metadata == "" {
					return nil
				}
				var meta map[string]any
				if err := json.Unmarshal([]byte(rec.Metadata), &meta); err != nil {
					return nil
				}
				countString(restaurants, meta, "restaurant")
				countString(serviceClasses, meta, "service_class")
				countString(paymentMethods, meta, "payment_method")
				return nil
			})
			if err != nil {
				return fmt.Errorf("error reading mbox file: %w", err)
			}

			fmt.Printf("\nScanned %d messages\n\n", messageCount)

			fmt.Println("Receipts by type:")
			for _, serviceType := range receipt.ServiceTypes() {
				fmt.Printf("  %-14s %d\n", serviceType, typeCounts[string(serviceType)])
			}
			fmt.Println()

			sections := []struct {
				title  string
				counts map[string]int
			}{
				{"restaurants", restaurants},
				{"service classes", serviceClasses},
				{"payment methods", paymentMethods},
				{"months", months},
			}
			for _, section := range sections {
				if len(section.counts) == 0 {
					continue
				}
				fmt.Printf("Top %d %s:\n", topN, section.title)
				stats.PrettyPrintTop(section.counts, topN)
				fmt.Println()
			}

			if reportDir != "" {
				counters := map[string]map[string]int{
					"type":           typeCounts,
					"restaurant":     restaurants,
					"service_class":  serviceClasses,
					"payment_method": paymentMethods,
					"month":          months,
				}
				if err := saveCSVReports(counters, reportDir, 1000); err != nil {
					return fmt.Errorf("error saving CSV reports: %w", err)
				}
				fmt.Printf("Reports saved to directory: %s\n", reportDir)
			}

			return nil
		},
	}

	scanCmd.Flags().StringVarP(&reportDir, "output", "o", "", "Output directory for CSV reports (empty disables)")
	scanCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")

	return scanCmd
}

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}`)

// monthKey returns the YYYY-MM bucket of a normalized date, or "" for a date
// header that never parsed and passed through raw.
func monthKey(date string) string {
	return monthPattern.FindString(date)
}

func countString(counter map[string]int, meta map[string]any, key string) {
	if value, ok := meta[key].(string); ok && value != "" {
		counter[value]++
	}
}

func saveCSVReports(counters map[string]map[string]int, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		counts := counters[name]

		filename := fmt.Sprintf("report_%s.csv", normalizeReportName(name))
		filePath := filepath.Join(dir, filename)

		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}

		type pair struct {
			Key   string
			Value int
		}
		var pairs []pair
		for k, v := range counts {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			return pairs[i].Value > pairs[j].Value
		})

		for i := 0; i < limit && i < len(pairs); i++ {
			record := []string{
				pairs[i].Key,
				strconv.Itoa(pairs[i].Value),
			}
			if err := writer.Write(record); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}

func normalizeReportName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
