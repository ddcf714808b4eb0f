package probe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/longbridgeapp/assert"
	"github.com/shopspring/decimal"
)

func obs(win, balance string) Observation {
	return Observation{
		WinAmount:      decimal.RequireFromString(win),
		CurrentBalance: decimal.RequireFromString(balance),
	}
}

func TestSummarize(t *testing.T) {
	set := ObservationSet{
		obs("0", "990"),
		obs("150", "1130"),
		obs("0", "1120"),
		obs("20.5", "1130.5"),
	}
	report := Summarize(set)
	assert.Equal(t, 4, report.Count)
	assert.Equal(t, 2, report.WinningCount)
	assert.Equal(t, "42.63", report.MeanWin.StringFixed(2))
	assert.Equal(t, "0", report.MinWin.String())
	assert.Equal(t, "150", report.MaxWin.String())
	assert.Equal(t, "990", report.FirstBalance.String())
	assert.Equal(t, "1130.5", report.LastBalance.String())
	assert.True(t, report.MinWin.LessThanOrEqual(report.MeanWin))
	assert.True(t, report.MeanWin.LessThanOrEqual(report.MaxWin))
}

func TestSummarizeEmpty(t *testing.T) {
	report := Summarize(nil)
	assert.True(t, report.Empty())
	assert.Equal(t, 0, report.WinningCount)
}

func TestRender(t *testing.T) {
	report := Summarize(ObservationSet{obs("5", "105"), obs("5", "105"), obs("5", "105")})
	var buf bytes.Buffer
	assert.NoError(t, report.Render(&buf, 3, "spin_results.csv"))
	want := "\n 3 Spin Test Results:\n" +
		"- Totally Winning Game Count: 3\n" +
		"- Average Gain: 5.00\n" +
		"- Minimum Gain: 5\n" +
		"- Maximum Gain: 5\n" +
		"- First Spin Balance: 105\n" +
		"- Last Spin Balance: 105\n" +
		"\n The test is complete! The results are saved as spin_results.csv.\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderNoData(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Summarize(nil).Render(&buf, 1000, "out.csv"))
	out := buf.String()
	assert.True(t, strings.Contains(out, "No data"))
	assert.False(t, strings.Contains(out, "Average Gain"))
	assert.True(t, strings.Contains(out, "saved as out.csv"))
}
