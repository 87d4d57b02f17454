package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// formatTiming renders an elapsed time as four three-digit groups: seconds,
// milliseconds, microseconds and nanoseconds. The labels read "s ms ms us";
// scripts parse this exact line. Times of 1000 s or more keep all leading digits.
func formatTiming(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := strconv.FormatInt(d.Nanoseconds(), 10)
	if len(s) < 12 {
		s = strings.Repeat("0", 12-len(s)) + s
	}
	n := len(s)
	return s[:n-9] + " s " + s[n-9:n-6] + " ms " + s[n-6:n-3] + " ms " + s[n-3:] + " us"
}

func printTiming(out io.Writer, since time.Time) error {
	_, err := fmt.Fprintln(out, formatTiming(time.Since(since)))
	return err
}
