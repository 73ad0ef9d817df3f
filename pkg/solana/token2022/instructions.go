package token2022

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/token-extensions/pkg/solana"
)

// Reference: https://github.com/solana-program/token-2022/blob/main/program/src/instruction.rs

func InitializeMint2(mint ed25519.PublicKey, decimals uint8, mintAuthority, freezeAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint to initialize
	data := make([]byte, 0, 1+1+32+1+32)
	data = append(data, byte(CommandInitializeMint2))
	data = append(data, decimals)
	data = append(data, mintAuthority...)
	data = appendOptionalKey(data, freezeAuthority)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func InitializeAccount3(account, mint, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The account to initialize
	//   1. [] The mint this account will be associated with
	data := make([]byte, 0, 1+32)
	data = append(data, byte(CommandInitializeAccount3))
	data = append(data, owner...)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
	)
}

func MintTo(mint, dest, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE] The mint
	//   1. [WRITE] The account to mint tokens to
	//   2. [SIGNER] The mint authority
	data := make([]byte, 1+8)
	data[0] = byte(CommandMintTo)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func TransferChecked(source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	// # Account references
	//   0. [WRITE] The source account
	//   1. [] The token mint
	//   2. [WRITE] The destination account
	//   3. [SIGNER] The owner of the source account
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func CloseAccount(account, dest, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The account to close
	//   1. [WRITE] The destination for the reclaimed lamports
	//   2. [SIGNER] The account's close authority
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransferChecked struct {
	Source ed25519.PublicKey
	Mint   ed25519.PublicKey
	Dest   ed25519.PublicKey
	Owner  ed25519.PublicKey

	Amount   uint64
	Decimals uint8
}

func DecompileTransferChecked(m solana.Message, index int) (*DecompiledTransferChecked, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) != 10 || Command(i.Data[0]) != CommandTransferChecked {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) < 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &DecompiledTransferChecked{
		Source:   m.Accounts[i.Accounts[0]],
		Mint:     m.Accounts[i.Accounts[1]],
		Dest:     m.Accounts[i.Accounts[2]],
		Owner:    m.Accounts[i.Accounts[3]],
		Amount:   binary.LittleEndian.Uint64(i.Data[1:]),
		Decimals: i.Data[9],
	}, nil
}

type DecompiledCloseAccount struct {
	Account ed25519.PublicKey
	Dest    ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecompileCloseAccount(m solana.Message, index int) (*DecompiledCloseAccount, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) != 1 || Command(i.Data[0]) != CommandCloseAccount {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &DecompiledCloseAccount{
		Account: m.Accounts[i.Accounts[0]],
		Dest:    m.Accounts[i.Accounts[1]],
		Owner:   m.Accounts[i.Accounts[2]],
	}, nil
}

// appendOptionalKey writes the instruction data encoding of
// COption<Pubkey>: a one byte tag, followed by the key only when set.
func appendOptionalKey(data []byte, key ed25519.PublicKey) []byte {
	if len(key) > 0 {
		data = append(data, 1)
		data = append(data, key...)
	} else {
		data = append(data, 0)
	}
	return data
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
