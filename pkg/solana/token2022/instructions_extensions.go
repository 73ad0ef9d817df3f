package token2022

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/code-payments/token-extensions/pkg/solana"
)

// Builders for the extension initialize and update instructions. Initialize
// instructions that run before the base initialize take no signers; the
// program validates them against the uninitialized account alone.

func InitializeMintCloseAuthority(mint, closeAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 0, 1+1+32)
	data = append(data, byte(CommandInitializeMintCloseAuthority))
	data = appendOptionalKey(data, closeAuthority)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func InitializeNonTransferableMint(mint ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeNonTransferableMint)},
		solana.NewAccountMeta(mint, false),
	)
}

func InitializePermanentDelegate(mint, delegate ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 1+32)
	data[0] = byte(CommandInitializePermanentDelegate)
	copy(data[1:], delegate)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func InitializeImmutableOwner(account ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The token account to initialize
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeImmutableOwner)},
		solana.NewAccountMeta(account, false),
	)
}

func InitializeDefaultAccountState(mint ed25519.PublicKey, state AccountState) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandDefaultAccountStateExtension), SubCommandInitialize, byte(state)},
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateDefaultAccountState(mint, freezeAuthority ed25519.PublicKey, state AccountState) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The mint's freeze authority
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandDefaultAccountStateExtension), SubCommandDefaultAccountStateUpdate, byte(state)},
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(freezeAuthority, true),
	)
}

func EnableRequiredMemoTransfers(account, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The token account
	//   1. [SIGNER] The account owner
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandMemoTransferExtension), SubCommandMemoTransferEnable},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func DisableRequiredMemoTransfers(account, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandMemoTransferExtension), SubCommandMemoTransferDisable},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func EnableCpiGuard(account, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The token account
	//   1. [SIGNER] The account owner
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCpiGuardExtension), SubCommandCpiGuardEnable},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func DisableCpiGuard(account, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCpiGuardExtension), SubCommandCpiGuardDisable},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func InitializeInterestBearingMint(mint, rateAuthority ed25519.PublicKey, rate int16) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32+2)
	data[0] = byte(CommandInterestBearingMintExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], rateAuthority)
	binary.LittleEndian.PutUint16(data[2+32:], uint16(rate))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateInterestRate(mint, rateAuthority ed25519.PublicKey, rate int16) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The mint's rate authority
	data := make([]byte, 2+2)
	data[0] = byte(CommandInterestBearingMintExtension)
	data[1] = SubCommandInterestBearingUpdateRate
	binary.LittleEndian.PutUint16(data[2:], uint16(rate))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(rateAuthority, true),
	)
}

func InitializeTransferHook(mint, authority, hookProgram ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32+32)
	data[0] = byte(CommandTransferHookExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], authority)
	copy(data[2+32:], hookProgram)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateTransferHook(mint, authority, hookProgram ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The transfer hook authority
	data := make([]byte, 2+32)
	data[0] = byte(CommandTransferHookExtension)
	data[1] = SubCommandTransferHookUpdate
	copy(data[2:], hookProgram)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func InitializeMetadataPointer(mint, authority, metadataAddress ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32+32)
	data[0] = byte(CommandMetadataPointerExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], authority)
	copy(data[2+32:], metadataAddress)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateMetadataPointer(mint, authority, metadataAddress ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The metadata pointer authority
	data := make([]byte, 2+32)
	data[0] = byte(CommandMetadataPointerExtension)
	data[1] = SubCommandMetadataPointerUpdate
	copy(data[2:], metadataAddress)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func InitializeGroupPointer(mint, authority, groupAddress ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32+32)
	data[0] = byte(CommandGroupPointerExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], authority)
	copy(data[2+32:], groupAddress)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateGroupPointer(mint, authority, groupAddress ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The group pointer authority
	data := make([]byte, 2+32)
	data[0] = byte(CommandGroupPointerExtension)
	data[1] = SubCommandGroupPointerUpdate
	copy(data[2:], groupAddress)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func InitializeGroupMemberPointer(mint, authority, memberAddress ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32+32)
	data[0] = byte(CommandGroupMemberPointerExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], authority)
	copy(data[2+32:], memberAddress)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateGroupMemberPointer(mint, authority, memberAddress ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The group member pointer authority
	data := make([]byte, 2+32)
	data[0] = byte(CommandGroupMemberPointerExtension)
	data[1] = SubCommandGroupMemberPointerUpdate
	copy(data[2:], memberAddress)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func InitializeScaledUiAmount(mint, authority ed25519.PublicKey, multiplier float64) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32+8)
	data[0] = byte(CommandScaledUiAmountExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], authority)
	binary.LittleEndian.PutUint64(data[2+32:], math.Float64bits(multiplier))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateUiAmountMultiplier(mint, authority ed25519.PublicKey, multiplier float64, effectiveTimestamp int64) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The multiplier authority
	data := make([]byte, 2+8+8)
	data[0] = byte(CommandScaledUiAmountExtension)
	data[1] = SubCommandScaledUiAmountUpdateMultiplier
	binary.LittleEndian.PutUint64(data[2:], math.Float64bits(multiplier))
	binary.LittleEndian.PutUint64(data[2+8:], uint64(effectiveTimestamp))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func InitializePausableConfig(mint, authority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 2+32)
	data[0] = byte(CommandPausableExtension)
	data[1] = SubCommandInitialize
	copy(data[2:], authority)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func Pause(mint, authority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The pause authority
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandPausableExtension), SubCommandPausablePause},
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func Resume(mint, authority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The pause authority
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandPausableExtension), SubCommandPausableResume},
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}
