package token2022

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/token-extensions/pkg/solana"
)

// Reference: https://github.com/solana-program/token-2022/blob/main/program/src/extension/transfer_fee/instruction.rs

func InitializeTransferFeeConfig(
	mint ed25519.PublicKey,
	configAuthority ed25519.PublicKey,
	withdrawWithheldAuthority ed25519.PublicKey,
	basisPoints uint16,
	maximumFee uint64,
) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 0, 2+2*(1+32)+2+8)
	data = append(data, byte(CommandTransferFeeExtension), SubCommandInitialize)
	data = appendOptionalKey(data, configAuthority)
	data = appendOptionalKey(data, withdrawWithheldAuthority)
	data = binary.LittleEndian.AppendUint16(data, basisPoints)
	data = binary.LittleEndian.AppendUint64(data, maximumFee)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func SetTransferFee(mint, configAuthority ed25519.PublicKey, basisPoints uint16, maximumFee uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [SIGNER] The transfer fee config authority
	data := make([]byte, 2+2+8)
	data[0] = byte(CommandTransferFeeExtension)
	data[1] = SubCommandTransferFeeSetTransferFee
	binary.LittleEndian.PutUint16(data[2:], basisPoints)
	binary.LittleEndian.PutUint64(data[4:], maximumFee)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(configAuthority, true),
	)
}

func TransferCheckedWithFee(
	source, mint, dest, owner ed25519.PublicKey,
	amount uint64,
	decimals uint8,
	fee uint64,
) solana.Instruction {
	// # Account references
	//   0. [WRITE] The source account
	//   1. [] The token mint
	//   2. [WRITE] The destination account
	//   3. [SIGNER] The owner of the source account
	data := make([]byte, 2+8+1+8)
	data[0] = byte(CommandTransferFeeExtension)
	data[1] = SubCommandTransferFeeTransferCheckedWithFee
	binary.LittleEndian.PutUint64(data[2:], amount)
	data[10] = decimals
	binary.LittleEndian.PutUint64(data[11:], fee)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func WithdrawWithheldTokensFromMint(mint, dest, withdrawAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [WRITE] The destination account for the withheld fees
	//   2. [SIGNER] The mint's withdraw withheld authority
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandTransferFeeExtension), SubCommandTransferFeeWithdrawWithheldTokensFromMint},
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(withdrawAuthority, true),
	)
}

func WithdrawWithheldTokensFromAccounts(mint, dest, withdrawAuthority ed25519.PublicKey, sources []ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [WRITE] The destination account for the withheld fees
	//   2. [SIGNER] The mint's withdraw withheld authority
	//   3..n [WRITE] The source accounts to drain
	data := []byte{
		byte(CommandTransferFeeExtension),
		SubCommandTransferFeeWithdrawWithheldTokensFromAccts,
		byte(len(sources)),
	}

	accounts := make([]solana.AccountMeta, 0, 3+len(sources))
	accounts = append(accounts,
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(withdrawAuthority, true),
	)
	for _, source := range sources {
		accounts = append(accounts, solana.NewAccountMeta(source, false))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

func HarvestWithheldTokensToMint(mint ed25519.PublicKey, sources []ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1..n [WRITE] The source accounts to harvest from
	accounts := make([]solana.AccountMeta, 0, 1+len(sources))
	accounts = append(accounts, solana.NewAccountMeta(mint, false))
	for _, source := range sources {
		accounts = append(accounts, solana.NewAccountMeta(source, false))
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandTransferFeeExtension), SubCommandTransferFeeHarvestWithheldTokensToMint},
		accounts...,
	)
}
