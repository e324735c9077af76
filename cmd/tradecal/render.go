package main

import (
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"tradecal/internal/api"
	"tradecal/internal/domain"
	"tradecal/pkg/tradecal"
)

func renderInfo(w io.Writer, info *tradecal.Info) {
	table := tablewriter.NewWriter(w)
	table.Header("Provider", "Benchmark", "Exchange TZ", "First", "Last", "Days", "Early closes")
	table.Append(
		info.Provider,
		info.Benchmark,
		info.ExchangeTZ,
		info.FirstTradingDay.Format(time.DateOnly),
		info.LastTradingDay.Format(time.DateOnly),
		strconv.Itoa(info.TradingDays),
		strconv.Itoa(info.EarlyCloses),
	)
	table.Render()
}

func renderSession(w io.Writer, open, closeAt time.Time) {
	table := tablewriter.NewWriter(w)
	table.Header("Day", "Open (UTC)", "Close (UTC)", "Length")
	table.Append(
		open.UTC().Format(time.DateOnly),
		api.FormatTime(open),
		api.FormatTime(closeAt),
		closeAt.Sub(open).String(),
	)
	table.Render()
}

func renderWindow(w io.Writer, win *tradecal.Window, listDays bool) {
	table := tablewriter.NewWriter(w)
	table.Header("Period start", "Period end", "First open", "Last close", "Days", "Capital", "Emission", "Data")
	table.Append(
		api.FormatTime(win.PeriodStart),
		api.FormatTime(win.PeriodEnd),
		api.FormatTime(win.FirstOpen),
		api.FormatTime(win.LastClose),
		strconv.Itoa(win.DaysInPeriod),
		strconv.FormatFloat(win.CapitalBase, 'f', 2, 64),
		win.EmissionRate,
		win.DataFrequency,
	)
	table.Render()

	if listDays {
		for _, d := range win.TradingDays {
			fmt.Fprintln(w, d.Format(time.DateOnly))
		}
	}
}

// renderCurve prints one curve with tenors in maturity order. Unquoted
// tenors are shown as "-".
func renderCurve(w io.Writer, c domain.TreasuryCurve) {
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Tenor", "Rate")
	for _, tenor := range domain.TreasuryTenors {
		rate := "-"
		if v, ok := c.Rates[tenor]; ok {
			rate = strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
		}
		table.Append(c.Date.Format(time.DateOnly), tenor, rate)
	}
	table.Render()
}

// renderMinutes prints every minute, or with summary only the bounds and
// the count.
func renderMinutes(w io.Writer, minutes iter.Seq[time.Time], summary bool) error {
	var first, last time.Time
	n := 0
	for m := range minutes {
		if n == 0 {
			first = m
		}
		last = m
		n++
		if !summary {
			if _, err := fmt.Fprintln(w, api.FormatTime(m)); err != nil {
				return err
			}
		}
	}
	if summary {
		_, err := fmt.Fprintf(w, "%s .. %s (%d minutes)\n", api.FormatTime(first), api.FormatTime(last), n)
		return err
	}
	return nil
}
