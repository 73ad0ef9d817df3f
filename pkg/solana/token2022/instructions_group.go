package token2022

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/token-extensions/pkg/solana"
)

// The token group interface uses the same 8 byte namespaced discriminator
// scheme as the metadata interface. For groups stored in the mint's TLV
// tail, the group and member accounts below are the mints themselves.
//
// Reference: https://github.com/solana-program/token-group/blob/main/interface/src/instruction.rs
var (
	groupInitializeDiscriminator       = []byte{121, 113, 108, 39, 54, 51, 0, 4}
	groupUpdateMaxSizeDiscriminator    = []byte{108, 37, 171, 143, 248, 30, 18, 110}
	groupUpdateAuthorityDiscriminator  = []byte{161, 105, 88, 1, 237, 221, 216, 203}
	groupInitializeMemberDiscriminator = []byte{152, 32, 222, 176, 223, 237, 116, 134}
)

func InitializeTokenGroup(group, mint, mintAuthority, updateAuthority ed25519.PublicKey, maxSize uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE] The group account
	//   1. [] The mint
	//   2. [SIGNER] The mint authority
	data := make([]byte, 8+32+8)
	copy(data, groupInitializeDiscriminator)
	copy(data[8:], updateAuthority)
	binary.LittleEndian.PutUint64(data[8+32:], maxSize)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(group, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(mintAuthority, true),
	)
}

func UpdateTokenGroupMaxSize(group, updateAuthority ed25519.PublicKey, maxSize uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE] The group account
	//   1. [SIGNER] The group update authority
	data := make([]byte, 8+8)
	copy(data, groupUpdateMaxSizeDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], maxSize)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(group, false),
		solana.NewReadonlyAccountMeta(updateAuthority, true),
	)
}

func UpdateTokenGroupAuthority(group, currentAuthority, newAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The group account
	//   1. [SIGNER] The current group update authority
	//
	// A zero new authority makes the group immutable.
	data := make([]byte, 8+32)
	copy(data, groupUpdateAuthorityDiscriminator)
	copy(data[8:], newAuthority)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(group, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

func InitializeTokenGroupMember(member, memberMint, memberMintAuthority, group, groupUpdateAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The member account
	//   1. [] The member mint
	//   2. [SIGNER] The member mint authority
	//   3. [WRITE] The group account
	//   4. [SIGNER] The group update authority
	data := make([]byte, 8)
	copy(data, groupInitializeMemberDiscriminator)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(member, false),
		solana.NewReadonlyAccountMeta(memberMint, false),
		solana.NewReadonlyAccountMeta(memberMintAuthority, true),
		solana.NewAccountMeta(group, false),
		solana.NewReadonlyAccountMeta(groupUpdateAuthority, true),
	)
}
