package token2022

import (
	"github.com/pkg/errors"
)

// ExtensionType identifies a TLV entry in the tail of a Token-2022 mint or
// token account.
//
// Reference: https://github.com/solana-program/token-2022/blob/main/program/src/extension/mod.rs
type ExtensionType uint16

const (
	ExtensionTypeUninitialized ExtensionType = iota
	ExtensionTypeTransferFeeConfig
	ExtensionTypeTransferFeeAmount
	ExtensionTypeMintCloseAuthority
	ExtensionTypeConfidentialTransferMint
	ExtensionTypeConfidentialTransferAccount
	ExtensionTypeDefaultAccountState
	ExtensionTypeImmutableOwner
	ExtensionTypeMemoTransfer
	ExtensionTypeNonTransferable
	ExtensionTypeInterestBearingConfig
	ExtensionTypeCpiGuard
	ExtensionTypePermanentDelegate
	ExtensionTypeNonTransferableAccount
	ExtensionTypeTransferHook
	ExtensionTypeTransferHookAccount
	ExtensionTypeConfidentialTransferFeeConfig
	ExtensionTypeConfidentialTransferFeeAmount
	ExtensionTypeMetadataPointer
	ExtensionTypeTokenMetadata
	ExtensionTypeGroupPointer
	ExtensionTypeTokenGroup
	ExtensionTypeGroupMemberPointer
	ExtensionTypeTokenGroupMember
	ExtensionTypeConfidentialMintBurn
	ExtensionTypeScaledUiAmount
	ExtensionTypePausable
	ExtensionTypePausableAccount
)

// AccountType is the discriminator byte placed immediately after the padded
// base record of any extension-bearing account.
type AccountType byte

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeMint
	AccountTypeAccount
)

const (
	// BaseMintSize is the byte size of a mint with no extensions.
	BaseMintSize = 82

	// BaseAccountSize is the byte size of a token account with no extensions.
	BaseAccountSize = 165

	// MultisigSize is the byte size of a multisig account. Extension-bearing
	// accounts must never be exactly this length, or the on-chain account
	// type becomes ambiguous.
	MultisigSize = 355

	accountTypeSize = 1
	tlvHeaderSize   = 4 // u16 type + u16 length
)

// extensionDescriptor captures the static properties of an extension type:
// its fixed payload length (variableLen for TLV entries whose length depends
// on instruction data), which record kind it attaches to, and whether its
// initialize instruction must run before or after the base initialize.
type extensionDescriptor struct {
	length   int
	forMint  bool
	postBase bool
}

const variableLen = -1

var extensionDescriptors = map[ExtensionType]extensionDescriptor{
	ExtensionTypeTransferFeeConfig:      {length: 108, forMint: true},
	ExtensionTypeTransferFeeAmount:      {length: 8},
	ExtensionTypeMintCloseAuthority:     {length: 32, forMint: true},
	ExtensionTypeDefaultAccountState:    {length: 1, forMint: true},
	ExtensionTypeImmutableOwner:         {length: 0},
	ExtensionTypeMemoTransfer:           {length: 1, postBase: true},
	ExtensionTypeNonTransferable:        {length: 0, forMint: true},
	ExtensionTypeInterestBearingConfig:  {length: 52, forMint: true},
	ExtensionTypeCpiGuard:               {length: 1, postBase: true},
	ExtensionTypePermanentDelegate:      {length: 32, forMint: true},
	ExtensionTypeNonTransferableAccount: {length: 0},
	ExtensionTypeTransferHook:           {length: 64, forMint: true},
	ExtensionTypeTransferHookAccount:    {length: 1},
	ExtensionTypeMetadataPointer:        {length: 64, forMint: true},
	ExtensionTypeTokenMetadata:          {length: variableLen, forMint: true, postBase: true},
	ExtensionTypeGroupPointer:           {length: 64, forMint: true},
	ExtensionTypeTokenGroup:             {length: 80, forMint: true, postBase: true},
	ExtensionTypeGroupMemberPointer:     {length: 64, forMint: true},
	ExtensionTypeTokenGroupMember:       {length: 72, forMint: true, postBase: true},
	ExtensionTypeScaledUiAmount:         {length: 56, forMint: true},
	ExtensionTypePausable:               {length: 33, forMint: true},
	ExtensionTypePausableAccount:        {length: 0},
}

// IsMintExtension reports whether t attaches to a mint record.
func IsMintExtension(t ExtensionType) bool {
	d, ok := extensionDescriptors[t]
	return ok && d.forMint
}

// IsAccountExtension reports whether t attaches to a token account record.
func IsAccountExtension(t ExtensionType) bool {
	d, ok := extensionDescriptors[t]
	return ok && !d.forMint
}

// IsPostBaseExtension reports whether t is initialized after the base record.
// These extensions require an initialized record (their instructions are
// signed by the mint authority or the account owner), so their initializes
// are ordered after the base initialize while everything else is ordered
// before it.
func IsPostBaseExtension(t ExtensionType) bool {
	d, ok := extensionDescriptors[t]
	return ok && d.postBase
}

// IsVariableLenExtension reports whether t's TLV length depends on its
// initialize instruction data rather than the catalog.
func IsVariableLenExtension(t ExtensionType) bool {
	d, ok := extensionDescriptors[t]
	return ok && d.length == variableLen
}

// TypeLen returns the fixed TLV payload length of t. Variable-length
// extension types (and unsupported types) return an error.
func TypeLen(t ExtensionType) (int, error) {
	d, ok := extensionDescriptors[t]
	if !ok {
		return 0, errors.Errorf("unsupported extension type: %d", t)
	}
	if d.length == variableLen {
		return 0, errors.Errorf("extension type %d has no fixed length", t)
	}
	return d.length, nil
}

// CalculateAccountLen returns the exact allocation size for a mint or token
// account carrying the provided fixed-length extensions. Variable-length
// extensions (token metadata) are not allocated up front; the program grows
// the account when the extension is initialized, so they must be funded but
// not included here.
//
// A computed length that collides with the multisig account length is bumped
// by the size of one empty TLV header, mirroring the on-chain calculation.
func CalculateAccountLen(accountType AccountType, extensions []ExtensionType) (int, error) {
	base := BaseAccountSize
	if accountType == AccountTypeMint {
		base = BaseMintSize
	}

	if len(extensions) == 0 {
		return base, nil
	}

	total := BaseAccountSize + accountTypeSize

	seen := make(map[ExtensionType]struct{}, len(extensions))
	for _, t := range extensions {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}

		d, ok := extensionDescriptors[t]
		if !ok {
			return 0, errors.Errorf("unsupported extension type: %d", t)
		}
		if d.forMint != (accountType == AccountTypeMint) {
			return 0, errors.Errorf("extension type %d is not valid for account type %d", t, accountType)
		}
		if d.length == variableLen {
			return 0, errors.Errorf("extension type %d cannot be allocated up front", t)
		}

		total += tlvHeaderSize + d.length
	}

	if total == MultisigSize {
		total += tlvHeaderSize
	}

	return total, nil
}

// RequiredAccountExtensions returns the account extension types the program
// itself initializes on every token account of the provided mint, derived
// from the mint's own extensions. Token accounts must be allocated with space
// for these in addition to anything the caller requested.
func RequiredAccountExtensions(mint *Mint) []ExtensionType {
	var required []ExtensionType

	if _, ok := mint.GetExtension(ExtensionTypeTransferFeeConfig); ok {
		required = append(required, ExtensionTypeTransferFeeAmount)
	}
	if _, ok := mint.GetExtension(ExtensionTypeNonTransferable); ok {
		required = append(required, ExtensionTypeNonTransferableAccount, ExtensionTypeImmutableOwner)
	}
	if _, ok := mint.GetExtension(ExtensionTypeTransferHook); ok {
		required = append(required, ExtensionTypeTransferHookAccount)
	}
	if _, ok := mint.GetExtension(ExtensionTypePausable); ok {
		required = append(required, ExtensionTypePausableAccount)
	}

	return required
}

// TokenMetadataLen returns the TLV payload length of a token metadata
// extension holding the provided field values and no additional key/value
// pairs.
func TokenMetadataLen(name, symbol, uri string) int {
	// update authority + mint, three length-prefixed strings, and the vec
	// length prefix of the (empty) additional metadata.
	return 32 + 32 + (4 + len(name)) + (4 + len(symbol)) + (4 + len(uri)) + 4
}
