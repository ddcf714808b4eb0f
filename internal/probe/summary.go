package probe

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// SummaryReport holds descriptive statistics over one ObservationSet. The
// statistic fields are meaningless when Count is zero.
type SummaryReport struct {
	Count        int
	WinningCount int
	MeanWin      decimal.Decimal
	MinWin       decimal.Decimal
	MaxWin       decimal.Decimal
	FirstBalance decimal.Decimal
	LastBalance  decimal.Decimal
}

func (r SummaryReport) Empty() bool {
	return r.Count == 0
}

func Summarize(set ObservationSet) SummaryReport {
	report := SummaryReport{Count: len(set)}
	if len(set) == 0 {
		return report
	}
	sum := decimal.Zero
	report.MinWin = set[0].WinAmount
	report.MaxWin = set[0].WinAmount
	for _, o := range set {
		sum = sum.Add(o.WinAmount)
		if o.WinAmount.IsPositive() {
			report.WinningCount++
		}
		if o.WinAmount.LessThan(report.MinWin) {
			report.MinWin = o.WinAmount
		}
		if o.WinAmount.GreaterThan(report.MaxWin) {
			report.MaxWin = o.WinAmount
		}
	}
	report.MeanWin = sum.Div(decimal.NewFromInt(int64(len(set))))
	first, _ := set.First()
	last, _ := set.Last()
	report.FirstBalance = first.CurrentBalance
	report.LastBalance = last.CurrentBalance
	return report
}

// Render prints the console report. iterations is the planned spin count and
// outputPath names the results file.
func (r SummaryReport) Render(w io.Writer, iterations int, outputPath string) error {
	ew := &errWriter{w: w}
	ew.printf("\n %d Spin Test Results:\n", iterations)
	if r.Empty() {
		ew.printf("- No data: no successful spins were recorded\n")
	} else {
		ew.printf("- Totally Winning Game Count: %d\n", r.WinningCount)
		ew.printf("- Average Gain: %s\n", r.MeanWin.StringFixed(2))
		ew.printf("- Minimum Gain: %s\n", r.MinWin.String())
		ew.printf("- Maximum Gain: %s\n", r.MaxWin.String())
		ew.printf("- First Spin Balance: %s\n", r.FirstBalance.String())
		ew.printf("- Last Spin Balance: %s\n", r.LastBalance.String())
	}
	ew.printf("\n The test is complete! The results are saved as %s.\n", outputPath)
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
