package domain

import "errors"

var (
	// Common domain errors
	ErrPartnerNotFound         = errors.New("partner not found")
	ErrPartnerInactive         = errors.New("partner is deactivated")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrInvalidAmount           = errors.New("points must be a positive integer")
	ErrInsufficientBalance     = errors.New("insufficient points balance")
	ErrMissingPurpose          = errors.New("redemption purpose is required")
	ErrAccountAlreadyActivated = errors.New("account already activated")
	ErrClaimCodeInvalid        = errors.New("claim code is invalid")
	ErrClaimCodeAlreadyUsed    = errors.New("claim code already used")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrInvalidExecContext      = errors.New("invalid execution context")

	// ErrUnavailable marks transient storage failures. Callers may retry;
	// it is never returned for business-rule violations.
	ErrUnavailable = errors.New("storage temporarily unavailable")
)
