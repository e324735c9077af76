// Package domain holds the value types shared by the calendar, market-data
// and storage layers.
package domain

import "time"

// Market identifies the exchange family a calendar or bar series belongs to.
type Market string

const (
	MarketUS Market = "us"
)

// Frequency describes the step at which a data series is sampled.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyMinute Frequency = "minute"
)

// Session is one trading day of an exchange calendar. Day is the UTC
// midnight key of the session; Open and Close are absolute instants.
type Session struct {
	Day        time.Time
	Open       time.Time
	Close      time.Time
	EarlyClose bool
}

// Bar is a single OHLCV bar.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// BenchmarkReturn is the daily return of the benchmark index on Date.
type BenchmarkReturn struct {
	Date   time.Time
	Return float64
}

// TreasuryCurve is the risk-free curve observed on Date. Rates maps a tenor
// key ("1month", "10year", ...) to an annualised rate expressed as a
// fraction.
type TreasuryCurve struct {
	Date  time.Time
	Rates map[string]float64
}

// TreasuryTenors lists the curve tenors in ascending maturity order.
var TreasuryTenors = []string{
	"1month", "2month", "3month", "4month", "6month",
	"1year", "2year", "3year", "5year", "7year", "10year", "20year", "30year",
}
