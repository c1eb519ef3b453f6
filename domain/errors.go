package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every rejection reason below wraps exactly one category
// so delivery and callers can match with errors.Is on either level.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPreconditionFailed  = errors.New("precondition failed")
	ErrStateConflict       = errors.New("state conflict")

	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("Internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
)

var (
	ErrZeroAmount     = fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	ErrZeroPrice      = fmt.Errorf("price must be positive: %w", ErrInvalidArgument)
	ErrInvalidRound   = fmt.Errorf("round out of range: %w", ErrInvalidArgument)
	ErrInvalidAddress = fmt.Errorf("invalid address: %w", ErrInvalidArgument)
	ErrInvalidPaging  = fmt.Errorf("invalid paging window: %w", ErrInvalidArgument)

	ErrNotOwner    = fmt.Errorf("caller is not the owner: %w", ErrPermissionDenied)
	ErrNotBridge   = fmt.Errorf("caller is not the payment bridge: %w", ErrPermissionDenied)
	ErrNotSeller   = fmt.Errorf("caller is not the listing seller: %w", ErrPermissionDenied)
	ErrNotFeeAdmin = fmt.Errorf("caller is not the fee admin: %w", ErrPermissionDenied)

	ErrInsufficientTokenBalance      = fmt.Errorf("token balance too low: %w", ErrInsufficientBalance)
	ErrInsufficientSettlementBalance = fmt.Errorf("settlement balance too low: %w", ErrInsufficientBalance)
	ErrInsufficientAllowance         = fmt.Errorf("allowance too low: %w", ErrInsufficientBalance)
	ErrInsufficientRoundSupply       = fmt.Errorf("round supply too low: %w", ErrInsufficientBalance)
	ErrPaymentOutOfRange             = fmt.Errorf("payment outside tolerance: %w", ErrInsufficientBalance)

	ErrListingNotFound    = fmt.Errorf("no active listing: %w", ErrPreconditionFailed)
	ErrListingExceeded    = fmt.Errorf("amount exceeds listed amount: %w", ErrPreconditionFailed)
	ErrSaleNotStarted     = fmt.Errorf("sale not started: %w", ErrPreconditionFailed)
	ErrSaleAlreadyStarted = fmt.Errorf("sale already started: %w", ErrPreconditionFailed)
	ErrRoundFinished      = fmt.Errorf("round already finished: %w", ErrPreconditionFailed)
	ErrReentrantCall      = fmt.Errorf("reentrant call: %w", ErrPreconditionFailed)

	ErrListingPriceMismatch = fmt.Errorf("listing already open at a different price: %w", ErrStateConflict)
)
