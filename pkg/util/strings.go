package util

import (
    "fmt"
    "math"
    "strings"

    "github.com/shopspring/decimal"
)

// CleanNumeric strips quotes, whitespace and thousands separators ("1,234.50" -> "1234.50").
func CleanNumeric(s string) string {
    s = strings.TrimSpace(s)
    s = strings.Trim(s, `"'`)
    return strings.Map(func(r rune) rune {
        switch r {
        case ',', ' ', '_', '\u00a0':
            return -1
        }
        return r
    }, s)
}

// ParseNumber cleans s and parses it as a finite float64.
// Volume columns sometimes carry a K/M/B suffix ("12.5M"); those are expanded.
func ParseNumber(s string) (float64, error) {
    clean := CleanNumeric(s)
    if clean == "" {
        return 0, fmt.Errorf("empty value")
    }

    mult := decimal.NewFromInt(1)
    switch clean[len(clean)-1] {
    case 'K', 'k':
        mult = decimal.NewFromInt(1_000)
        clean = clean[:len(clean)-1]
    case 'M', 'm':
        mult = decimal.NewFromInt(1_000_000)
        clean = clean[:len(clean)-1]
    case 'B', 'b':
        mult = decimal.NewFromInt(1_000_000_000)
        clean = clean[:len(clean)-1]
    }

    d, err := decimal.NewFromString(clean)
    if err != nil {
        return 0, fmt.Errorf("parse %q: %w", s, err)
    }
    v := d.Mul(mult).InexactFloat64()
    if math.IsNaN(v) || math.IsInf(v, 0) {
        return 0, fmt.Errorf("parse %q: not finite", s)
    }
    return v, nil
}
