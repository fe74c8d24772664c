package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// UserIDRegex validates user identifier format
	UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)

	// CallIDRegex validates call ID format
	CallIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
)

// ValidateUserID validates a user identifier
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if len(userID) > 100 {
		return fmt.Errorf("user ID is too long (max 100 characters)")
	}
	if !UserIDRegex.MatchString(userID) {
		return fmt.Errorf("invalid user ID format")
	}
	return nil
}

// ValidateCallID validates a call ID
func ValidateCallID(callID string) error {
	if callID == "" {
		return fmt.Errorf("call ID is required")
	}
	if len(callID) > 100 {
		return fmt.Errorf("call ID is too long (max 100 characters)")
	}
	if !CallIDRegex.MatchString(callID) {
		return fmt.Errorf("invalid call ID format")
	}
	return nil
}

// ValidateCallType validates the requested call type
func ValidateCallType(callType string) error {
	if callType != "voice" && callType != "video" {
		return fmt.Errorf("invalid call type (must be voice or video)")
	}
	return nil
}

// ValidateQualitySample validates a quality report's metric ranges
func ValidateQualitySample(rttMs int64, lossRatio float64) error {
	if rttMs < 0 {
		return fmt.Errorf("round-trip time must be >= 0")
	}
	if lossRatio < 0 || lossRatio > 1 {
		return fmt.Errorf("packet loss ratio must be within [0, 1]")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
