package main

import (
	"testing"
	"time"
)

func TestFormatTiming(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "000 s 000 ms 000 ms 000 us"},
		{1234567 * time.Nanosecond, "000 s 001 ms 234 ms 567 us"},
		{12*time.Second + 3*time.Millisecond, "012 s 003 ms 000 ms 000 us"},
		{1234 * time.Second, "1234 s 000 ms 000 ms 000 us"},
		{-time.Second, "000 s 000 ms 000 ms 000 us"},
	}
	for _, tt := range tests {
		if got := formatTiming(tt.d); got != tt.want {
			t.Errorf("formatTiming(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
