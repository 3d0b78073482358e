package enums

import "fmt"

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCompleted SwapStatus = "completed"
)

var validSwapStatuses = []SwapStatus{
	SwapStatusPending,
	SwapStatusAccepted,
	SwapStatusRejected,
	SwapStatusCompleted,
}

func (s SwapStatus) String() string {
	return string(s)
}

func (s SwapStatus) IsValid() bool {
	for _, candidate := range validSwapStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s SwapStatus) IsTerminal() bool {
	return s == SwapStatusCompleted || s == SwapStatusRejected
}

// CanTransitionTo reports whether moving from s to next is a forward move.
// Pending may move to any other status and accepted may still be rejected or
// completed.
func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	if s == next || s.IsTerminal() {
		return false
	}
	switch s {
	case SwapStatusPending:
		return next == SwapStatusAccepted || next == SwapStatusRejected || next == SwapStatusCompleted
	case SwapStatusAccepted:
		return next == SwapStatusRejected || next == SwapStatusCompleted
	default:
		return false
	}
}

// ParseSwapStatus converts raw input into a SwapStatus.
func ParseSwapStatus(value string) (SwapStatus, error) {
	for _, candidate := range validSwapStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid swap status %q", value)
}

// ParseSwapTargetStatus accepts only the statuses a caller may request.
func ParseSwapTargetStatus(value string) (SwapStatus, error) {
	status, err := ParseSwapStatus(value)
	if err != nil {
		return "", err
	}
	if status == SwapStatusPending {
		return "", fmt.Errorf("swap status %q cannot be requested", value)
	}
	return status, nil
}
