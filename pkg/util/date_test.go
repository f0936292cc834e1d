package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDateLayouts(t *testing.T) {
    want := time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC)
    for _, s := range []string{"2019-03-07", "03/07/2019", "3/7/2019", `"3/7/2019"`, "Mar 7, 2019"} {
        got, ok := ParseTime(s)
        if !ok {
            t.Fatalf("%q: expected ok", s)
        }
        if !got.Equal(want) {
            t.Fatalf("%q: got %v want %v", s, got, want)
        }
    }
}
