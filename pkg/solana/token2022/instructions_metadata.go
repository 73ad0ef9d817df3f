package token2022

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/token-extensions/pkg/solana"
)

// The token metadata interface addresses instructions with an 8 byte
// discriminator derived from the instruction's namespaced name. When the
// metadata lives inside the mint's own TLV tail, the metadata account below
// is the mint itself.
//
// Reference: https://github.com/solana-program/token-metadata/blob/main/interface/src/instruction.rs
var (
	metadataInitializeDiscriminator      = []byte{210, 225, 30, 162, 88, 184, 77, 141}
	metadataUpdateFieldDiscriminator     = []byte{221, 233, 49, 45, 181, 202, 220, 200}
	metadataRemoveKeyDiscriminator       = []byte{234, 18, 32, 56, 89, 141, 37, 181}
	metadataUpdateAuthorityDiscriminator = []byte{215, 228, 166, 228, 84, 100, 86, 123}
	metadataEmitDiscriminator            = []byte{250, 166, 180, 250, 13, 12, 184, 70}
)

// MetadataField addresses one field of a token metadata entry. The reserved
// fields use fixed tags; anything else is encoded as a keyed field.
const (
	metadataFieldName   byte = 0
	metadataFieldSymbol byte = 1
	metadataFieldUri    byte = 2
	metadataFieldKey    byte = 3
)

func InitializeTokenMetadata(metadata, updateAuthority, mint, mintAuthority ed25519.PublicKey, name, symbol, uri string) solana.Instruction {
	// # Account references
	//   0. [WRITE] The metadata account
	//   1. [] The metadata update authority
	//   2. [] The mint
	//   3. [SIGNER] The mint authority
	data := make([]byte, 0, 8+3*4+len(name)+len(symbol)+len(uri))
	data = append(data, metadataInitializeDiscriminator...)
	data = appendString(data, name)
	data = appendString(data, symbol)
	data = appendString(data, uri)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(updateAuthority, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(mintAuthority, true),
	)
}

func UpdateTokenMetadataField(metadata, updateAuthority ed25519.PublicKey, key, value string) solana.Instruction {
	// # Account references
	//   0. [WRITE] The metadata account
	//   1. [SIGNER] The metadata update authority
	data := make([]byte, 0, 8+1+4+len(key)+4+len(value))
	data = append(data, metadataUpdateFieldDiscriminator...)

	switch key {
	case "name":
		data = append(data, metadataFieldName)
	case "symbol":
		data = append(data, metadataFieldSymbol)
	case "uri":
		data = append(data, metadataFieldUri)
	default:
		data = append(data, metadataFieldKey)
		data = appendString(data, key)
	}
	data = appendString(data, value)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(updateAuthority, true),
	)
}

func RemoveTokenMetadataKey(metadata, updateAuthority ed25519.PublicKey, key string, idempotent bool) solana.Instruction {
	// # Account references
	//   0. [WRITE] The metadata account
	//   1. [SIGNER] The metadata update authority
	data := make([]byte, 0, 8+1+4+len(key))
	data = append(data, metadataRemoveKeyDiscriminator...)
	data = append(data, boolByte(idempotent))
	data = appendString(data, key)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(updateAuthority, true),
	)
}

func UpdateTokenMetadataAuthority(metadata, currentAuthority, newAuthority ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE] The metadata account
	//   1. [SIGNER] The current metadata update authority
	//
	// A zero new authority makes the metadata immutable.
	data := make([]byte, 8+32)
	copy(data, metadataUpdateAuthorityDiscriminator)
	copy(data[8:], newAuthority)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

func EmitTokenMetadata(metadata ed25519.PublicKey, start, end *uint64) solana.Instruction {
	// # Account references
	//   0. [] The metadata account
	data := make([]byte, 0, 8+2*9)
	data = append(data, metadataEmitDiscriminator...)
	data = appendOptionalUint64(data, start)
	data = appendOptionalUint64(data, end)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewReadonlyAccountMeta(metadata, false),
	)
}

func appendString(data []byte, s string) []byte {
	data = binary.LittleEndian.AppendUint32(data, uint32(len(s)))
	return append(data, s...)
}

func appendOptionalUint64(data []byte, v *uint64) []byte {
	if v == nil {
		return append(data, 0)
	}
	data = append(data, 1)
	return binary.LittleEndian.AppendUint64(data, *v)
}
