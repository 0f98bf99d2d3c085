package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled double-line header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintReport prints an analytics report block
func PrintReport(r contracts.AnalyticsReport) {
	PrintHeader("Performance Report")
	if r.RunID != "" {
		PrintKeyValue("Run ID", r.RunID, 16)
	}
	PrintKeyValue("Strategy", r.StrategyName, 16)
	if !r.StartDate.IsZero() {
		PrintKeyValue("Period", r.StartDate.Format(contracts.DateLayout)+" ~ "+r.EndDate.Format(contracts.DateLayout), 16)
	}
	PrintKeyValue("Initial Capital", formatNumber(r.InitialCapital), 16)
	PrintKeyValue("Final Capital", formatNumber(r.FinalCapital), 16)
	PrintKeyValue("Total Return", fmt.Sprintf("%+.2f%%", r.TotalReturn*100), 16)
	PrintKeyValue("Sharpe Ratio", fmt.Sprintf("%.2f", r.SharpeRatio), 16)
	PrintKeyValue("Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown*100), 16)
	PrintKeyValue("Win Rate", fmt.Sprintf("%.1f%% (%d pairs)", r.WinRate*100, r.MatchedPairs), 16)
	PrintKeyValue("Total Trades", fmt.Sprintf("%d", r.TotalTrades), 16)
	if r.ConfigHash != "" {
		PrintKeyValue("Config Hash", r.ConfigHash[:min(12, len(r.ConfigHash))], 16)
	}
	PrintDoubleSeparator()
}

// formatNumber formats with thousands separators (no decimals)
func formatNumber(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// parseRange parses optional YYYY-MM-DD bounds; empty stays zero
func parseRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = contracts.ParseDate(from); err != nil {
			return start, end, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if end, err = contracts.ParseDate(to); err != nil {
			return start, end, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return start, end, nil
}
