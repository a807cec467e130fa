package enums

import "fmt"

// TransferSide tells a posting consumer which half of a relayed transfer a
// work item represents.
type TransferSide string

const (
	// TransferSidePurchase is money leaving the user: posted as an expense
	// against a vendor.
	TransferSidePurchase TransferSide = "purchase"
	// TransferSidePayment is money arriving: posted as a receipt from a customer.
	TransferSidePayment TransferSide = "payment"
)

var validTransferSides = []TransferSide{
	TransferSidePurchase,
	TransferSidePayment,
}

// IsValid reports whether the value matches the canonical transfer side enum.
func (s TransferSide) IsValid() bool {
	for _, candidate := range validTransferSides {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransferSide converts the raw string to TransferSide.
func ParseTransferSide(value string) (TransferSide, error) {
	for _, candidate := range validTransferSides {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer side %q", value)
}
