package main

import (
	"fmt"
	"strings"
)

// yesNo is a boolean flag spelled Y/N. It takes a value (-p=Y, -p Y) rather
// than acting as a bare switch.
type yesNo bool

func (b *yesNo) String() string {
	if *b {
		return "Y"
	}
	return "N"
}

func (b *yesNo) Set(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "TRUE":
		*b = true
	case "N", "NO", "FALSE":
		*b = false
	default:
		return fmt.Errorf("expected Y or N, got %q", s)
	}
	return nil
}

func (b *yesNo) Type() string { return "Y|N" }
