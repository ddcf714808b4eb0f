// Package results persists an ObservationSet as a two-column CSV file.
package results

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/hyp3rd/ewrap"
	"github.com/shopspring/decimal"

	"github.com/NodePath81/slotprobe/internal/probe"
)

var header = []string{"WinAmount", "CurrentBalance"}

// ErrBadHeader is returned by Read when the first row is not the expected header.
var ErrBadHeader = ewrap.New("unexpected results header")

func WriteFile(path string, set probe.ObservationSet) error {
	f, err := os.Create(path)
	if err != nil {
		return ewrap.Wrap(err, "create results file")
	}
	if err := Write(f, set); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return ewrap.Wrap(err, "close results file")
	}
	return nil
}

// Write emits the header followed by one row per observation, in order.
func Write(w io.Writer, set probe.ObservationSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return ewrap.Wrap(err, "write header")
	}
	row := make([]string, 2)
	for _, o := range set {
		row[0] = o.WinAmount.String()
		row[1] = o.CurrentBalance.String()
		if err := cw.Write(row); err != nil {
			return ewrap.Wrap(err, "write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return ewrap.Wrap(err, "flush results")
	}
	return nil
}

func ReadFile(path string) (probe.ObservationSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ewrap.Wrap(err, "open results file")
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(f)
}

func Read(r io.Reader) (probe.ObservationSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	first, err := cr.Read()
	if err == io.EOF {
		return nil, ErrBadHeader
	}
	if err != nil {
		return nil, ewrap.Wrap(err, "read header")
	}
	if first[0] != header[0] || first[1] != header[1] {
		return nil, ewrap.Wrapf(ErrBadHeader, "got %q", first)
	}
	set := probe.ObservationSet{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return set, nil
		}
		if err != nil {
			return nil, ewrap.Wrap(err, "read row")
		}
		win, err := decimal.NewFromString(rec[0])
		if err != nil {
			return nil, ewrap.Wrapf(err, "line %d: WinAmount", line)
		}
		balance, err := decimal.NewFromString(rec[1])
		if err != nil {
			return nil, ewrap.Wrapf(err, "line %d: CurrentBalance", line)
		}
		set = append(set, probe.Observation{WinAmount: win, CurrentBalance: balance})
	}
}
