package token2022

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	bin "github.com/code-payments/token-extensions/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

const optionSize = 4

// Extension is a raw TLV entry from the tail of a mint or token account.
type Extension struct {
	Type ExtensionType
	Data []byte
}

// Mint is the token mint record, including any TLV extension tail.
//
// Reference: https://github.com/solana-program/token-2022/blob/main/program/src/state.rs
type Mint struct {
	// MintAuthority is the authority that can mint tokens, or nil if the
	// supply is fixed.
	MintAuthority ed25519.PublicKey

	Supply        uint64
	Decimals      uint8
	IsInitialized bool

	// FreezeAuthority is the authority that can freeze token accounts, or
	// nil if freezing is disabled.
	FreezeAuthority ed25519.PublicKey

	Extensions []Extension
}

func (m *Mint) Marshal() []byte {
	b := make([]byte, m.marshaledSize())

	var offset int
	putOptionPrefixedKey(b, m.MintAuthority, &offset)
	bin.PutUint64(b[offset:], m.Supply, &offset)
	bin.PutUint8(b[offset:], m.Decimals, &offset)
	if m.IsInitialized {
		b[offset] = 1
	}
	offset++
	putOptionPrefixedKey(b, m.FreezeAuthority, &offset)

	if len(m.Extensions) > 0 {
		b[BaseAccountSize] = byte(AccountTypeMint)
		marshalExtensions(b[BaseAccountSize+accountTypeSize:], m.Extensions)
	}

	return b
}

func (m *Mint) marshaledSize() int {
	if len(m.Extensions) == 0 {
		return BaseMintSize
	}

	size := BaseAccountSize + accountTypeSize
	for _, e := range m.Extensions {
		size += tlvHeaderSize + len(e.Data)
	}
	return size
}

func (m *Mint) Unmarshal(b []byte) error {
	if len(b) < BaseMintSize {
		return errors.Errorf("invalid mint data size: %d", len(b))
	}

	var offset int
	getOptionPrefixedKey(b, &m.MintAuthority, &offset)
	bin.GetUint64(b[offset:], &m.Supply, &offset)
	bin.GetUint8(b[offset:], &m.Decimals, &offset)
	m.IsInitialized = b[offset] == 1
	offset++
	getOptionPrefixedKey(b, &m.FreezeAuthority, &offset)

	extensions, err := unmarshalExtensions(b, AccountTypeMint)
	if err != nil {
		return err
	}
	m.Extensions = extensions

	return nil
}

// GetExtension returns the raw payload of the TLV entry of the provided
// type, if present.
func (m *Mint) GetExtension(t ExtensionType) ([]byte, bool) {
	return getExtension(m.Extensions, t)
}

// SetExtension replaces the payload of the TLV entry of the provided type,
// appending a new entry if none exists.
func (m *Mint) SetExtension(t ExtensionType, data []byte) {
	m.Extensions = setExtension(m.Extensions, t, data)
}

// Account is the token account record, including any TLV extension tail.
type Account struct {
	Mint   ed25519.PublicKey
	Owner  ed25519.PublicKey
	Amount uint64

	Delegate        ed25519.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  ed25519.PublicKey

	Extensions []Extension
}

func (a *Account) Marshal() []byte {
	b := make([]byte, a.marshaledSize())

	var offset int
	bin.PutKey32(b[offset:], a.Mint, &offset)
	bin.PutKey32(b[offset:], a.Owner, &offset)
	bin.PutUint64(b[offset:], a.Amount, &offset)
	putOptionPrefixedKey(b, a.Delegate, &offset)
	bin.PutUint8(b[offset:], uint8(a.State), &offset)
	bin.PutOptionalUint64(b[offset:], a.IsNative, &offset, optionSize)
	bin.PutUint64(b[offset:], a.DelegatedAmount, &offset)
	putOptionPrefixedKey(b, a.CloseAuthority, &offset)

	if len(a.Extensions) > 0 {
		b[BaseAccountSize] = byte(AccountTypeAccount)
		marshalExtensions(b[BaseAccountSize+accountTypeSize:], a.Extensions)
	}

	return b
}

func (a *Account) marshaledSize() int {
	size := BaseAccountSize
	if len(a.Extensions) > 0 {
		size += accountTypeSize
		for _, e := range a.Extensions {
			size += tlvHeaderSize + len(e.Data)
		}
	}
	return size
}

func (a *Account) Unmarshal(b []byte) error {
	if len(b) < BaseAccountSize {
		return errors.Errorf("invalid token account data size: %d", len(b))
	}

	var offset int
	bin.GetKey32(b[offset:], &a.Mint, &offset)
	bin.GetKey32(b[offset:], &a.Owner, &offset)
	bin.GetUint64(b[offset:], &a.Amount, &offset)
	getOptionPrefixedKey(b, &a.Delegate, &offset)

	var state uint8
	bin.GetUint8(b[offset:], &state, &offset)
	a.State = AccountState(state)

	bin.GetOptionalUint64(b[offset:], &a.IsNative, &offset, optionSize)
	bin.GetUint64(b[offset:], &a.DelegatedAmount, &offset)
	getOptionPrefixedKey(b, &a.CloseAuthority, &offset)

	extensions, err := unmarshalExtensions(b, AccountTypeAccount)
	if err != nil {
		return err
	}
	a.Extensions = extensions

	return nil
}

func (a *Account) GetExtension(t ExtensionType) ([]byte, bool) {
	return getExtension(a.Extensions, t)
}

func (a *Account) SetExtension(t ExtensionType, data []byte) {
	a.Extensions = setExtension(a.Extensions, t, data)
}

func putOptionPrefixedKey(dst []byte, key ed25519.PublicKey, offset *int) {
	if len(key) > 0 {
		binary.LittleEndian.PutUint32(dst[*offset:], 1)
		copy(dst[*offset+optionSize:], key)
	}
	*offset += optionSize + ed25519.PublicKeySize
}

func getOptionPrefixedKey(src []byte, dst *ed25519.PublicKey, offset *int) {
	if binary.LittleEndian.Uint32(src[*offset:]) == 1 {
		*dst = make([]byte, ed25519.PublicKeySize)
		copy(*dst, src[*offset+optionSize:])
	} else {
		*dst = nil
	}
	*offset += optionSize + ed25519.PublicKeySize
}

func marshalExtensions(dst []byte, extensions []Extension) {
	var offset int
	for _, e := range extensions {
		bin.PutUint16(dst[offset:], uint16(e.Type), &offset)
		bin.PutUint16(dst[offset:], uint16(len(e.Data)), &offset)
		copy(dst[offset:], e.Data)
		offset += len(e.Data)
	}
}

// unmarshalExtensions walks the TLV tail of an account, if one exists. An
// entry of type zero terminates the walk, since allocated but uninitialized
// tail space is zero-filled.
func unmarshalExtensions(b []byte, expected AccountType) ([]Extension, error) {
	if len(b) <= BaseAccountSize {
		return nil, nil
	}

	accountType := AccountType(b[BaseAccountSize])
	if accountType == AccountTypeUninitialized {
		return nil, nil
	}
	if accountType != expected {
		return nil, errors.Errorf("unexpected account type: %d", accountType)
	}

	var extensions []Extension

	offset := BaseAccountSize + accountTypeSize
	for offset+tlvHeaderSize <= len(b) {
		t := ExtensionType(binary.LittleEndian.Uint16(b[offset:]))
		if t == ExtensionTypeUninitialized {
			break
		}

		length := int(binary.LittleEndian.Uint16(b[offset+2:]))
		offset += tlvHeaderSize

		if offset+length > len(b) {
			return nil, errors.Errorf("extension %d overflows account data", t)
		}

		data := make([]byte, length)
		copy(data, b[offset:offset+length])
		offset += length

		extensions = append(extensions, Extension{Type: t, Data: data})
	}

	return extensions, nil
}

func getExtension(extensions []Extension, t ExtensionType) ([]byte, bool) {
	for _, e := range extensions {
		if e.Type == t {
			return e.Data, true
		}
	}
	return nil, false
}

func setExtension(extensions []Extension, t ExtensionType, data []byte) []Extension {
	for i, e := range extensions {
		if e.Type == t {
			extensions[i].Data = data
			return extensions
		}
	}
	return append(extensions, Extension{Type: t, Data: data})
}
