package util

import (
    "strconv"
    "strings"
    "time"
)

// dateLayouts are tried in order after RFC3339 variants. Exported market history files
// use US month-first dates; warehouse exports use ISO dates.
var dateLayouts = []string{
    "2006-01-02",
    "2006-01-02 15:04:05",
    "01/02/2006",
    "1/2/2006",
    "Jan 2, 2006",
    "Jan 02, 2006",
}

// ParseTime tries RFC3339, RFC3339Nano, the common date layouts and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    s = strings.TrimSpace(strings.Trim(s, `"`))
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    for _, layout := range dateLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t, true
        }
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0).UTC(), true
    }
    return time.Time{}, false
}
