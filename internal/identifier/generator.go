// Package identifier derives stock numbers and VIN-like codes from order
// attributes and persisted monotonic counters.
package identifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Counter names shared with the sequences table.
const (
	StockSequence = "stock_sequence"
	VINSequence   = "vin_sequence"
)

const (
	defaultWMI        = "1FT"
	defaultStockStart = 100
	defaultVINStart   = 100000
	placeholderCheck  = "X"
	fallbackPlant     = "F"
	fallbackYear      = "S"
)

var (
	fourByFour = regexp.MustCompile(`(?i)4x4`)
	crewCab    = regexp.MustCompile(`(?i)crew`)
)

var yearCodes = map[int]string{
	2010: "A", 2011: "B", 2012: "C", 2013: "D", 2014: "E", 2015: "F", 2016: "G", 2017: "H", 2018: "J", 2019: "K",
	2020: "L", 2021: "M", 2022: "N", 2023: "P", 2024: "R", 2025: "S", 2026: "T", 2027: "V", 2028: "W", 2029: "X",
	2030: "Y", 2031: "1", 2032: "2", 2033: "3", 2034: "4", 2035: "5",
}

// Sequencer hands out the next value of a named counter. Implementations
// must make the read and the increment a single atomic step.
type Sequencer interface {
	NextValue(ctx context.Context, name string, start int64) (int64, error)
}

// Config tunes the generated codes.
type Config struct {
	WMI        string
	StockStart int64
	VINStart   int64
}

// Source is the subset of an order the codes are derived from.
type Source struct {
	Series     string
	Drivetrain string
	Cab        string
	DealerCode string
	CreatedAt  time.Time
}

// Generator builds identifiers on top of a Sequencer.
type Generator struct {
	seq Sequencer
	cfg Config
}

// NewGenerator applies defaults for empty config values.
func NewGenerator(seq Sequencer, cfg Config) *Generator {
	if len(cfg.WMI) != 3 {
		cfg.WMI = defaultWMI
	}
	if cfg.StockStart <= 0 {
		cfg.StockStart = defaultStockStart
	}
	if cfg.VINStart <= 0 {
		cfg.VINStart = defaultVINStart
	}
	cfg.WMI = strings.ToUpper(cfg.WMI)
	return &Generator{seq: seq, cfg: cfg}
}

// StockNumber returns series(3) + dealer(3) + counter(3), each the rightmost
// digits of its source, zero padded.
func (g *Generator) StockNumber(ctx context.Context, src Source) (string, error) {
	return g.UniqueStockNumber(ctx, src, nil)
}

// StockPrefix is the series and dealer part shared by every stock number of
// src.
func StockPrefix(src Source) string {
	return lastDigits(src.Series, 3) + lastDigits(src.DealerCode, 3)
}

// UniqueStockNumber is StockNumber drawing further counter values while the
// candidate is in taken. Once every three digit suffix under the prefix is in
// taken, the whole counter value is used as the suffix.
func (g *Generator) UniqueStockNumber(ctx context.Context, src Source, taken map[string]struct{}) (string, error) {
	prefix := StockPrefix(src)
	wide := saturated(prefix, taken)
	for {
		n, err := g.seq.NextValue(ctx, StockSequence, g.cfg.StockStart)
		if err != nil {
			return "", fmt.Errorf("next stock sequence: %w", err)
		}
		suffix := lastDigits(strconv.FormatInt(n, 10), 3)
		if wide {
			suffix = fmt.Sprintf("%03d", n)
		}
		candidate := prefix + suffix
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
}

// saturated reports whether all 1000 nine digit stock numbers under prefix
// are in taken.
func saturated(prefix string, taken map[string]struct{}) bool {
	n := 0
	for stock := range taken {
		if len(stock) == len(prefix)+3 && strings.HasPrefix(stock, prefix) {
			n++
		}
	}
	return n >= 1000
}

// VIN returns a 17 character code: WMI(3) descriptor(5) check(1) year(1)
// plant(1) serial(6). The check digit is a placeholder.
func (g *Generator) VIN(ctx context.Context, src Source) (string, error) {
	n, err := g.seq.NextValue(ctx, VINSequence, g.cfg.VINStart)
	if err != nil {
		return "", fmt.Errorf("next vin sequence: %w", err)
	}
	year := src.CreatedAt
	if year.IsZero() {
		year = time.Now()
	}
	var b strings.Builder
	b.Grow(17)
	b.WriteString(g.cfg.WMI)
	b.WriteString(Descriptor(src.Series, src.Drivetrain, src.Cab))
	b.WriteString(placeholderCheck)
	b.WriteString(YearCode(year.UTC().Year()))
	b.WriteString(PlantCode(src.DealerCode))
	b.WriteString(lastDigits(strconv.FormatInt(n, 10), 6))
	return b.String(), nil
}

// Descriptor builds the 5 character vehicle descriptor segment.
func Descriptor(series, drivetrain, cab string) string {
	drive := "2"
	if fourByFour.MatchString(drivetrain) {
		drive = "4"
	}
	cabCode := "R"
	if crewCab.MatchString(cab) {
		cabCode = "C"
	}
	vds := lastDigits(series, 3) + drive + cabCode
	if len(vds) > 5 {
		vds = vds[:5]
	}
	return vds + strings.Repeat("X", 5-len(vds))
}

// YearCode maps a model year onto its VIN character.
func YearCode(year int) string {
	if c, ok := yearCodes[year]; ok {
		return c
	}
	return fallbackYear
}

// PlantCode is the last letter of the dealer code, upper cased.
func PlantCode(dealerCode string) string {
	for i := len(dealerCode) - 1; i >= 0; i-- {
		c := dealerCode[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			return strings.ToUpper(string(c))
		}
	}
	return fallbackPlant
}

// lastDigits keeps the rightmost n decimal digits of s, left padded with zeros.
func lastDigits(s string, n int) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) > n {
		return digits[len(digits)-n:]
	}
	return strings.Repeat("0", n-len(digits)) + digits
}
