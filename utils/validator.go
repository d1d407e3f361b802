// utils/validator.go - Input validation
package utils

import (
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	MonthLayout = "2006-01"
)

// ValidDate checks a YYYY-MM-DD calendar date.
func ValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

// ValidClock checks a 24-hour HH:MM time of day.
func ValidClock(value string) bool {
	_, err := time.Parse(ClockLayout, value)
	return err == nil && len(value) == 5
}

// ValidMonth checks a YYYY-MM month.
func ValidMonth(value string) bool {
	_, err := time.Parse(MonthLayout, value)
	return err == nil
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
