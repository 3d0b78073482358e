package enums

import "fmt"

// SwapType selects the fee schedule for a swap request.
type SwapType string

const (
	SwapTypePoints SwapType = "points"
	SwapTypeDirect SwapType = "direct"
)

var validSwapTypes = []SwapType{
	SwapTypePoints,
	SwapTypeDirect,
}

func (t SwapType) String() string {
	return string(t)
}

func (t SwapType) IsValid() bool {
	for _, candidate := range validSwapTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSwapType converts raw input into a SwapType.
func ParseSwapType(value string) (SwapType, error) {
	for _, candidate := range validSwapTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid swap type %q", value)
}
