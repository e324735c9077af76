package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradecal/internal/domain"
)

// treasuryColumns maps the column headings of the U.S. Treasury daily par
// yield curve CSV to tenor keys.
var treasuryColumns = map[string]string{
	"1 Mo":  "1month",
	"2 Mo":  "2month",
	"3 Mo":  "3month",
	"4 Mo":  "4month",
	"6 Mo":  "6month",
	"1 Yr":  "1year",
	"2 Yr":  "2year",
	"3 Yr":  "3year",
	"5 Yr":  "5year",
	"7 Yr":  "7year",
	"10 Yr": "10year",
	"20 Yr": "20year",
	"30 Yr": "30year",
}

// ReadTreasuryCSV parses the Treasury's daily par yield curve CSV export.
// Rates are published in percent and returned as fractions. Unknown columns
// and blank cells are skipped. Curves are returned oldest first.
func ReadTreasuryCSV(r io.Reader) ([]domain.TreasuryCurve, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading treasury CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading treasury CSV: empty file")
	}

	header := records[0]
	if !strings.EqualFold(strings.TrimPrefix(header[0], "\ufeff"), "Date") {
		return nil, fmt.Errorf("reading treasury CSV: first column is %q, want Date", header[0])
	}
	tenors := make([]string, len(header))
	for i, h := range header[1:] {
		tenors[i+1] = treasuryColumns[strings.TrimSpace(h)]
	}

	curves := make([]domain.TreasuryCurve, 0, len(records)-1)
	for n, rec := range records[1:] {
		line := n + 2
		d, err := time.Parse("01/02/2006", strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing date %q: %w", line, rec[0], err)
		}
		curve := domain.TreasuryCurve{Date: d, Rates: make(map[string]float64)}
		for i := 1; i < len(rec) && i < len(tenors); i++ {
			cell := strings.TrimSpace(rec[i])
			if tenors[i] == "" || cell == "" || cell == "N/A" {
				continue
			}
			pct, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing %s %q: %w", line, header[i], cell, err)
			}
			curve.Rates[tenors[i]] = pct / 100
		}
		curves = append(curves, curve)
	}

	sort.Slice(curves, func(i, j int) bool {
		return curves[i].Date.Before(curves[j].Date)
	})
	return curves, nil
}
