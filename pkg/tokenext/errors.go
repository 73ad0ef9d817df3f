// Package tokenext composes Token-2022 extension mints and token accounts:
// it plans the byte layout for a requested extension set, provisions the
// account, initializes each extension in dependency order around the base
// record initialize, and dispatches authority gated mutations against
// accounts that already exist.
package tokenext

import (
	"github.com/pkg/errors"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

var (
	// ErrInvalidExtensionType indicates an extension kind that is not
	// applicable to the target record kind, or a combination the layout
	// rules forbid.
	ErrInvalidExtensionType = errors.New("invalid extension type")

	// ErrExtensionAlreadyInitialized indicates a duplicate extension in a
	// plan, or a re-initialization attempt against an existing account.
	ErrExtensionAlreadyInitialized = errors.New("extension already initialized")

	// ErrInvalidAuthority indicates the presented signer does not hold the
	// authority role the operation requires.
	ErrInvalidAuthority = errors.New("invalid authority")

	ErrInvalidTransferFeeConfig    = errors.New("invalid transfer fee config")
	ErrTransferFeeCalculationError = errors.New("transfer fee calculation mismatch")
	ErrInsufficientFundsForFee     = errors.New("insufficient funds for fee")

	ErrInvalidDefaultAccountState = errors.New("invalid default account state")
	ErrAccountFrozen              = errors.New("account is frozen")

	ErrInvalidInterestRate          = errors.New("invalid interest rate")
	ErrInterestRateUpdateNotAllowed = errors.New("interest rate update not allowed")

	ErrInvalidDelegate = errors.New("invalid delegate")

	ErrCpiGuardEnabled = errors.New("cpi guard enabled")

	ErrTransferHookProgramNotFound = errors.New("transfer hook program not found")

	ErrInvalidMetadata       = errors.New("invalid metadata")
	ErrMetadataFieldNotFound = errors.New("metadata field not found")

	ErrInvalidGroupConfig     = errors.New("invalid group config")
	ErrGroupSizeLimitExceeded = errors.New("group size limit exceeded")
	ErrInvalidMemberConfig    = errors.New("invalid member config")
	ErrMemberNotFoundInGroup  = errors.New("member not found in group")

	ErrInvalidUiAmountMultiplier = errors.New("invalid ui amount multiplier")

	ErrMintPaused = errors.New("mint is paused")

	ErrInvalidCloseAuthority = errors.New("invalid close authority")
	ErrMintSupplyNotZero     = errors.New("mint supply is not zero")

	ErrNonTransferableToken = errors.New("token is non-transferable")

	ErrMemoRequiredForTransfer = errors.New("memo required for transfer")
	ErrInvalidMemo             = errors.New("invalid memo")

	// ErrUnrecoverableAllocation indicates a provisioned account whose
	// lamports cannot be reclaimed because the token program has no close
	// path for its uninitialized data.
	ErrUnrecoverableAllocation = errors.New("allocation cannot be reclaimed")
)

// customErrors maps the token program's custom error codes onto the
// library's taxonomy. Codes without a taxonomy kind are surfaced verbatim.
var customErrors = map[solana.CustomError]error{
	token2022.ErrorAlreadyInUse:                ErrExtensionAlreadyInitialized,
	token2022.ErrorExtensionAlreadyInitialized: ErrExtensionAlreadyInitialized,
	token2022.ErrorOwnerMismatch:               ErrInvalidAuthority,
	token2022.ErrorNoAuthorityExists:           ErrInvalidAuthority,
	token2022.ErrorMintHasSupply:               ErrMintSupplyNotZero,
	token2022.ErrorFeeMismatch:                 ErrTransferFeeCalculationError,
	token2022.ErrorTransferFeeExceedsMaximum:   ErrInvalidTransferFeeConfig,
	token2022.ErrorFeeParametersMismatch:       ErrInvalidTransferFeeConfig,
	token2022.ErrorInsufficientFunds:           ErrInsufficientFundsForFee,
	token2022.ErrorNoMemo:                      ErrMemoRequiredForTransfer,
	token2022.ErrorNonTransferable:             ErrNonTransferableToken,
	token2022.ErrorAccountFrozen:               ErrAccountFrozen,
	token2022.ErrorExtensionNotFoundInAccount:  ErrInvalidExtensionType,
	token2022.ErrorExtensionTypeMismatch:       ErrInvalidExtensionType,
	token2022.ErrorInvalidExtensionCombination: ErrInvalidExtensionType,
	token2022.ErrorCpiGuardSettingsLocked:      ErrCpiGuardEnabled,
	token2022.ErrorCpiGuardTransferBlocked:     ErrCpiGuardEnabled,
	token2022.ErrorCpiGuardBurnBlocked:         ErrCpiGuardEnabled,
	token2022.ErrorCpiGuardCloseAccountBlocked: ErrCpiGuardEnabled,
	token2022.ErrorCpiGuardSetAuthorityBlocked: ErrCpiGuardEnabled,
	token2022.ErrorCpiGuardOwnerChangeBlocked:  ErrCpiGuardEnabled,
}

// translateError converts errors surfaced by transaction submission into
// taxonomy kinds where a mapping exists.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var instructionErr *solana.InstructionError
	switch t := err.(type) {
	case *solana.InstructionError:
		instructionErr = t
	case solana.InstructionError:
		instructionErr = &t
	default:
		return err
	}

	code := instructionErr.CustomError()
	if code == nil {
		return err
	}

	if mapped, ok := customErrors[*code]; ok {
		return mapped
	}

	return err
}
