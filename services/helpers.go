package services

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"scholarship-aid-api/utils"
)

// now is replaced in tests that need a fixed clock.
var now = time.Now

// MoneyEpsilon is the tolerance used when comparing amounts.
const MoneyEpsilon = 0.01

func uitoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// amountsMatch compares two amounts within MoneyEpsilon.
func amountsMatch(a, b float64) bool {
	return math.Abs(a-b) < MoneyEpsilon+1e-9
}

// normalizeName lowercases and collapses whitespace so identity matching
// ignores cosmetic differences.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

func normalizeStudentNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// optionalText sanitizes free text and returns nil when nothing is left.
func optionalText(s string) *string {
	cleaned := utils.SanitizeInput(s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func uniqueUints(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// persistentContext keeps ctx values but drops its cancellation, for cleanup
// and best-effort work that must outlive the request.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
