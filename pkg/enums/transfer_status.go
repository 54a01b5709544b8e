package enums

import "fmt"

// TransferStatus maps to the transfer_status_enum enum in Postgres.
type TransferStatus string

const (
	// TransferStatusPending is claimed before the gateway call is issued.
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusSucceeded TransferStatus = "succeeded"
	TransferStatusFailed    TransferStatus = "failed"
	// TransferStatusRetained records funds kept by the platform because the
	// seller has no active payout destination.
	TransferStatusRetained TransferStatus = "retained"
)

var validTransferStatuses = []TransferStatus{
	TransferStatusPending,
	TransferStatusSucceeded,
	TransferStatusFailed,
	TransferStatusRetained,
}

// IsValid reports whether the value matches the canonical transfer status enum.
func (s TransferStatus) IsValid() bool {
	for _, candidate := range validTransferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransferStatus converts raw input into a TransferStatus.
func ParseTransferStatus(value string) (TransferStatus, error) {
	for _, candidate := range validTransferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer status %q", value)
}
