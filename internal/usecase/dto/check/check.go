// Package check holds the field validators shared by the request structs.
package check

import (
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Actor returns the trimmed actor id or an AuthRequired error.
func Actor(actorID string) (string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", domain.AuthRequired("actorId is required")
	}
	return actorID, nil
}

func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.InvalidArgument("%s is required", field)
	}
	return nil
}

func MaxLen(field, value string, max int) error {
	if len([]rune(value)) > max {
		return domain.InvalidArgument("%s must be at most %d characters", field, max)
	}
	return nil
}

// Amount parses a decimal string. Negative values are always rejected; zero only
// when allowZero is false.
func Amount(field, value string, allowZero bool) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, domain.InvalidArgument("%s is required", field)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, domain.InvalidArgument("%s must be a numeric string", field)
	}
	if d.IsNegative() {
		return decimal.Zero, domain.InvalidArgument("%s must not be negative", field)
	}
	if !allowZero && d.IsZero() {
		return decimal.Zero, domain.InvalidArgument("%s must be greater than 0", field)
	}
	return d, nil
}

// OptionalAmount validates value only when it is set.
func OptionalAmount(field, value string, allowZero bool) error {
	if value == "" {
		return nil
	}
	_, err := Amount(field, value, allowZero)
	return err
}

// Limit applies def to zero and caps at max. Negative limits are rejected.
func Limit(limit, def, max int) (int, error) {
	switch {
	case limit < 0:
		return 0, domain.InvalidArgument("limit must be >= 0")
	case limit == 0:
		return def, nil
	case limit > max:
		return max, nil
	}
	return limit, nil
}

func Window(since, until *time.Time) error {
	if since != nil && until != nil && since.After(*until) {
		return domain.InvalidArgument("since must not be after until")
	}
	return nil
}

// Tags enforces count, length and uniqueness limits.
func Tags(field string, tags []string, maxItems, maxLen int) error {
	if len(tags) > maxItems {
		return domain.InvalidArgument("%s must have at most %d items", field, maxItems)
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return domain.InvalidArgument("%s entries must not be empty", field)
		}
		if len([]rune(tag)) > maxLen {
			return domain.InvalidArgument("%s entries must be <= %d chars", field, maxLen)
		}
		if _, dup := seen[tag]; dup {
			return domain.InvalidArgument("%s must be unique", field)
		}
		seen[tag] = struct{}{}
	}
	return nil
}
