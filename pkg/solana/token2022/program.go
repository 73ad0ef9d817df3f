package token2022

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/token-extensions/pkg/solana"
)

// ProgramKey is the address of the Token-2022 program.
//
// Current key: TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 238, 117, 143, 222, 24, 66, 93, 188, 228, 108, 205, 218, 182, 26, 252, 77, 131, 185, 13, 39, 254, 189, 249, 40, 216, 161, 139, 252}

type Command byte

// Reference: https://github.com/solana-program/token-2022/blob/main/program/src/instruction.rs
const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
	CommandFreezeAccount
	CommandThawAccount
	CommandTransferChecked
	CommandApproveChecked
	CommandMintToChecked
	CommandBurnChecked
	CommandInitializeAccount2
	CommandSyncNative
	CommandInitializeAccount3
	CommandInitializeMultisig2
	CommandInitializeMint2
	CommandGetAccountDataSize
	CommandInitializeImmutableOwner
	CommandAmountToUiAmount
	CommandUiAmountToAmount
	CommandInitializeMintCloseAuthority
	CommandTransferFeeExtension
	CommandConfidentialTransferExtension
	CommandDefaultAccountStateExtension
	CommandReallocate
	CommandMemoTransferExtension
	CommandCreateNativeMint
	CommandInitializeNonTransferableMint
	CommandInterestBearingMintExtension
	CommandCpiGuardExtension
	CommandInitializePermanentDelegate
	CommandTransferHookExtension
	CommandConfidentialTransferFeeExtension
	CommandWithdrawExcessLamports
	CommandMetadataPointerExtension
	CommandGroupPointerExtension
	CommandGroupMemberPointerExtension
	CommandConfidentialMintBurnExtension
	CommandScaledUiAmountExtension
	CommandPausableExtension

	CommandUnknown = Command(math.MaxUint8)
)

// Sub-commands for the per-extension instruction namespaces.
const (
	SubCommandInitialize byte = 0

	SubCommandTransferFeeTransferCheckedWithFee          byte = 1
	SubCommandTransferFeeWithdrawWithheldTokensFromMint  byte = 2
	SubCommandTransferFeeWithdrawWithheldTokensFromAccts byte = 3
	SubCommandTransferFeeHarvestWithheldTokensToMint     byte = 4
	SubCommandTransferFeeSetTransferFee                  byte = 5

	SubCommandDefaultAccountStateUpdate byte = 1

	SubCommandMemoTransferEnable  byte = 0
	SubCommandMemoTransferDisable byte = 1

	SubCommandInterestBearingUpdateRate byte = 1

	SubCommandCpiGuardEnable  byte = 0
	SubCommandCpiGuardDisable byte = 1

	SubCommandTransferHookUpdate byte = 1

	SubCommandMetadataPointerUpdate    byte = 1
	SubCommandGroupPointerUpdate       byte = 1
	SubCommandGroupMemberPointerUpdate byte = 1

	SubCommandScaledUiAmountUpdateMultiplier byte = 1

	SubCommandPausablePause  byte = 1
	SubCommandPausableResume byte = 2
)

// Custom error codes returned by the Token-2022 program.
//
// Reference: https://github.com/solana-program/token-2022/blob/main/program/src/error.rs
const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
	ErrorNonNativeNotSupported
	ErrorExtensionTypeMismatch
	ErrorExtensionBaseMismatch
	ErrorExtensionAlreadyInitialized
	ErrorConfidentialTransferAccountHasBalance
	ErrorConfidentialTransferAccountNotApproved
	ErrorConfidentialTransferDepositsAndTransfersDisabled
	ErrorConfidentialTransferElGamalPubkeyMismatch
	ErrorConfidentialTransferBalanceMismatch
	ErrorMintHasSupply
	ErrorNoAuthorityExists
	ErrorTransferFeeExceedsMaximum
	ErrorMintRequiredForTransfer
	ErrorFeeMismatch
	ErrorFeeParametersMismatch
	ErrorImmutableOwner
	ErrorAccountHasWithheldTransferFees
	ErrorNoMemo
	ErrorNonTransferable
	ErrorNonTransferableNeedsImmutableOwnership
	ErrorCpiGuardSettingsLocked
	ErrorCpiGuardTransferBlocked
	ErrorCpiGuardBurnBlocked
	ErrorCpiGuardCloseAccountBlocked
	ErrorCpiGuardSetAuthorityBlocked
	ErrorCpiGuardOwnerChangeBlocked
	ErrorExtensionNotFoundInAccount
	ErrorNonConfidentialTransfersDisabled
	ErrorConfidentialTransferFeeAccountHasWithheldFee
	ErrorInvalidExtensionCombination
	ErrorInvalidLengthForAlloc
)

func GetCommand(m solana.Message, index int) (Command, error) {
	if index >= len(m.Instructions) {
		return CommandUnknown, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}
