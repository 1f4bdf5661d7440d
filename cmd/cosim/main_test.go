package main

import (
	"errors"
	"testing"

	"github.com/san-kum/cosim/internal/cosim"
)

func TestParseRatios(t *testing.T) {
	got, err := parseRatios(" 1, 2,,10 ")
	if err != nil {
		t.Fatalf("parseRatios: %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	var cfgErr *cosim.ConfigError
	if _, err := parseRatios("2,0"); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for zero ratio, got %v", err)
	}
	if _, err := parseRatios("1.5"); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for fractional ratio, got %v", err)
	}
	if _, err := parseRatios(""); err == nil {
		t.Error("expected error for empty list")
	}
}
