package errors

import "errors"

var (
	ErrNotEnoughTokensToDistribute  = errors.New("funding amount must be greater than zero")
	ErrInvalidRoot                  = errors.New("commitment root must not be empty")
	ErrStillDistributing            = errors.New("previous batch for this token is not fully drained")
	ErrAlreadyClaimed               = errors.New("one or more batches were already claimed")
	ErrInvalidProof                 = errors.New("membership proof does not match the registered root")
	ErrInsufficientRemainingBalance = errors.New("claim exceeds remaining distribution balance")
	ErrDistributionNotFound         = errors.New("no distribution registered for this token")
	ErrInvalidClaimInput            = errors.New("claim request input is invalid")
	ErrInsufficientCustodyBalance   = errors.New("custody account balance is insufficient")
)
