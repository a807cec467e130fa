package enums

import "fmt"

// ProvisioningStatus describes the allowed values for the `status` column in
// directory_records.
type ProvisioningStatus string

const (
	ProvisioningStatusPending ProvisioningStatus = "pending"
	ProvisioningStatusActive  ProvisioningStatus = "active"
)

var validProvisioningStatuses = []ProvisioningStatus{
	ProvisioningStatusPending,
	ProvisioningStatusActive,
}

// IsValid reports whether the value matches the canonical provisioning status enum.
func (p ProvisioningStatus) IsValid() bool {
	for _, candidate := range validProvisioningStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvisioningStatus converts the raw string to ProvisioningStatus.
func ParseProvisioningStatus(value string) (ProvisioningStatus, error) {
	for _, candidate := range validProvisioningStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provisioning status %q", value)
}
