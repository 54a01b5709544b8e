package enums

import "fmt"

// CardStatus tracks a sellable card's listing lifecycle. Sold is terminal.
type CardStatus string

const (
	CardStatusPending CardStatus = "pending"
	CardStatusLive    CardStatus = "live"
	CardStatusSold    CardStatus = "sold"
)

var validCardStatuses = []CardStatus{
	CardStatusPending,
	CardStatusLive,
	CardStatusSold,
}

// String implements fmt.Stringer.
func (s CardStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CardStatus.
func (s CardStatus) IsValid() bool {
	for _, candidate := range validCardStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCardStatus converts raw input into a CardStatus.
func ParseCardStatus(value string) (CardStatus, error) {
	for _, candidate := range validCardStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card status %q", value)
}
