package services

import (
	"fmt"
	"strings"

	"restaurant-queue/internal/status"
)

const (
	PhoneLength  = 10
	MinPartySize = 1
	MaxPartySize = 20
)

// ValidateName requires a non-empty trimmed name no longer than maxLen.
func ValidateName(name string, maxLen int) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return status.Validation("name is required")
	}
	if len(trimmed) > maxLen {
		return status.Validation(fmt.Sprintf("name must be at most %d characters", maxLen))
	}
	return nil
}

// ValidatePhone requires exactly 10 ASCII digits.
func ValidatePhone(phone string) error {
	if len(phone) != PhoneLength {
		return status.Validation("phone must be exactly 10 digits")
	}
	for i := 0; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return status.Validation("phone must contain only digits")
		}
	}
	return nil
}

// ValidatePartySize requires a party of 1 to 20 people.
func ValidatePartySize(size int) error {
	if size < MinPartySize || size > MaxPartySize {
		return status.Validation(fmt.Sprintf("party size must be between %d and %d", MinPartySize, MaxPartySize))
	}
	return nil
}

// ValidateJoinForm checks name, phone and party size in that order and
// returns the first failure.
func ValidateJoinForm(name, phone string, partySize, maxNameLen int) error {
	if err := ValidateName(name, maxNameLen); err != nil {
		return err
	}
	if err := ValidatePhone(phone); err != nil {
		return err
	}
	return ValidatePartySize(partySize)
}
