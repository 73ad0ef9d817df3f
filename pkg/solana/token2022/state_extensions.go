package token2022

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	bin "github.com/code-payments/token-extensions/pkg/solana/binary"
)

// The extension states below mirror the on-chain POD layouts. Authorities
// that encode "not set" as an all-zero key are represented as nil.
//
// Reference: https://github.com/solana-program/token-2022/tree/main/program/src/extension

type TransferFee struct {
	Epoch                  uint64
	MaximumFee             uint64
	TransferFeeBasisPoints uint16
}

type TransferFeeConfig struct {
	TransferFeeConfigAuthority ed25519.PublicKey
	WithdrawWithheldAuthority  ed25519.PublicKey
	WithheldAmount             uint64
	OlderTransferFee           TransferFee
	NewerTransferFee           TransferFee
}

func (c *TransferFeeConfig) Marshal() []byte {
	b := make([]byte, 108)

	var offset int
	putNonZeroKey(b, c.TransferFeeConfigAuthority, &offset)
	putNonZeroKey(b, c.WithdrawWithheldAuthority, &offset)
	bin.PutUint64(b[offset:], c.WithheldAmount, &offset)
	putTransferFee(b, c.OlderTransferFee, &offset)
	putTransferFee(b, c.NewerTransferFee, &offset)

	return b
}

func (c *TransferFeeConfig) Unmarshal(b []byte) error {
	if len(b) != 108 {
		return errors.Errorf("invalid transfer fee config size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &c.TransferFeeConfigAuthority, &offset)
	bin.GetNonZeroKey32(b[offset:], &c.WithdrawWithheldAuthority, &offset)
	bin.GetUint64(b[offset:], &c.WithheldAmount, &offset)
	getTransferFee(b, &c.OlderTransferFee, &offset)
	getTransferFee(b, &c.NewerTransferFee, &offset)

	return nil
}

func putTransferFee(dst []byte, fee TransferFee, offset *int) {
	bin.PutUint64(dst[*offset:], fee.Epoch, offset)
	bin.PutUint64(dst[*offset:], fee.MaximumFee, offset)
	bin.PutUint16(dst[*offset:], fee.TransferFeeBasisPoints, offset)
}

func getTransferFee(src []byte, fee *TransferFee, offset *int) {
	bin.GetUint64(src[*offset:], &fee.Epoch, offset)
	bin.GetUint64(src[*offset:], &fee.MaximumFee, offset)
	bin.GetUint16(src[*offset:], &fee.TransferFeeBasisPoints, offset)
}

type TransferFeeAmount struct {
	WithheldAmount uint64
}

func (a *TransferFeeAmount) Marshal() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, a.WithheldAmount)
	return b
}

func (a *TransferFeeAmount) Unmarshal(b []byte) error {
	if len(b) != 8 {
		return errors.Errorf("invalid transfer fee amount size: %d", len(b))
	}
	a.WithheldAmount = binary.LittleEndian.Uint64(b)
	return nil
}

type MintCloseAuthority struct {
	CloseAuthority ed25519.PublicKey
}

func (m *MintCloseAuthority) Marshal() []byte {
	b := make([]byte, 32)
	var offset int
	putNonZeroKey(b, m.CloseAuthority, &offset)
	return b
}

func (m *MintCloseAuthority) Unmarshal(b []byte) error {
	if len(b) != 32 {
		return errors.Errorf("invalid mint close authority size: %d", len(b))
	}
	var offset int
	bin.GetNonZeroKey32(b, &m.CloseAuthority, &offset)
	return nil
}

type DefaultAccountState struct {
	State AccountState
}

func (s *DefaultAccountState) Marshal() []byte {
	return []byte{byte(s.State)}
}

func (s *DefaultAccountState) Unmarshal(b []byte) error {
	if len(b) != 1 {
		return errors.Errorf("invalid default account state size: %d", len(b))
	}
	s.State = AccountState(b[0])
	return nil
}

type MemoTransfer struct {
	RequireIncomingTransferMemos bool
}

func (m *MemoTransfer) Marshal() []byte {
	return []byte{boolByte(m.RequireIncomingTransferMemos)}
}

func (m *MemoTransfer) Unmarshal(b []byte) error {
	if len(b) != 1 {
		return errors.Errorf("invalid memo transfer size: %d", len(b))
	}
	m.RequireIncomingTransferMemos = b[0] == 1
	return nil
}

type InterestBearingConfig struct {
	RateAuthority           ed25519.PublicKey
	InitializationTimestamp int64
	PreUpdateAverageRate    int16
	LastUpdateTimestamp     int64
	CurrentRate             int16
}

func (c *InterestBearingConfig) Marshal() []byte {
	b := make([]byte, 52)

	var offset int
	putNonZeroKey(b, c.RateAuthority, &offset)
	bin.PutInt64(b[offset:], c.InitializationTimestamp, &offset)
	bin.PutInt16(b[offset:], c.PreUpdateAverageRate, &offset)
	bin.PutInt64(b[offset:], c.LastUpdateTimestamp, &offset)
	bin.PutInt16(b[offset:], c.CurrentRate, &offset)

	return b
}

func (c *InterestBearingConfig) Unmarshal(b []byte) error {
	if len(b) != 52 {
		return errors.Errorf("invalid interest bearing config size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &c.RateAuthority, &offset)
	bin.GetInt64(b[offset:], &c.InitializationTimestamp, &offset)
	bin.GetInt16(b[offset:], &c.PreUpdateAverageRate, &offset)
	bin.GetInt64(b[offset:], &c.LastUpdateTimestamp, &offset)
	bin.GetInt16(b[offset:], &c.CurrentRate, &offset)

	return nil
}

type CpiGuard struct {
	LockCpi bool
}

func (g *CpiGuard) Marshal() []byte {
	return []byte{boolByte(g.LockCpi)}
}

func (g *CpiGuard) Unmarshal(b []byte) error {
	if len(b) != 1 {
		return errors.Errorf("invalid cpi guard size: %d", len(b))
	}
	g.LockCpi = b[0] == 1
	return nil
}

type PermanentDelegate struct {
	Delegate ed25519.PublicKey
}

func (d *PermanentDelegate) Marshal() []byte {
	b := make([]byte, 32)
	var offset int
	putNonZeroKey(b, d.Delegate, &offset)
	return b
}

func (d *PermanentDelegate) Unmarshal(b []byte) error {
	if len(b) != 32 {
		return errors.Errorf("invalid permanent delegate size: %d", len(b))
	}
	var offset int
	bin.GetNonZeroKey32(b, &d.Delegate, &offset)
	return nil
}

type TransferHook struct {
	Authority ed25519.PublicKey
	ProgramId ed25519.PublicKey
}

func (h *TransferHook) Marshal() []byte {
	b := make([]byte, 64)

	var offset int
	putNonZeroKey(b, h.Authority, &offset)
	putNonZeroKey(b, h.ProgramId, &offset)

	return b
}

func (h *TransferHook) Unmarshal(b []byte) error {
	if len(b) != 64 {
		return errors.Errorf("invalid transfer hook size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &h.Authority, &offset)
	bin.GetNonZeroKey32(b[offset:], &h.ProgramId, &offset)

	return nil
}

type TransferHookAccount struct {
	Transferring bool
}

func (a *TransferHookAccount) Marshal() []byte {
	return []byte{boolByte(a.Transferring)}
}

func (a *TransferHookAccount) Unmarshal(b []byte) error {
	if len(b) != 1 {
		return errors.Errorf("invalid transfer hook account size: %d", len(b))
	}
	a.Transferring = b[0] == 1
	return nil
}

type MetadataPointer struct {
	Authority       ed25519.PublicKey
	MetadataAddress ed25519.PublicKey
}

func (p *MetadataPointer) Marshal() []byte {
	b := make([]byte, 64)

	var offset int
	putNonZeroKey(b, p.Authority, &offset)
	putNonZeroKey(b, p.MetadataAddress, &offset)

	return b
}

func (p *MetadataPointer) Unmarshal(b []byte) error {
	if len(b) != 64 {
		return errors.Errorf("invalid metadata pointer size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &p.Authority, &offset)
	bin.GetNonZeroKey32(b[offset:], &p.MetadataAddress, &offset)

	return nil
}

type GroupPointer struct {
	Authority    ed25519.PublicKey
	GroupAddress ed25519.PublicKey
}

func (p *GroupPointer) Marshal() []byte {
	b := make([]byte, 64)

	var offset int
	putNonZeroKey(b, p.Authority, &offset)
	putNonZeroKey(b, p.GroupAddress, &offset)

	return b
}

func (p *GroupPointer) Unmarshal(b []byte) error {
	if len(b) != 64 {
		return errors.Errorf("invalid group pointer size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &p.Authority, &offset)
	bin.GetNonZeroKey32(b[offset:], &p.GroupAddress, &offset)

	return nil
}

type GroupMemberPointer struct {
	Authority     ed25519.PublicKey
	MemberAddress ed25519.PublicKey
}

func (p *GroupMemberPointer) Marshal() []byte {
	b := make([]byte, 64)

	var offset int
	putNonZeroKey(b, p.Authority, &offset)
	putNonZeroKey(b, p.MemberAddress, &offset)

	return b
}

func (p *GroupMemberPointer) Unmarshal(b []byte) error {
	if len(b) != 64 {
		return errors.Errorf("invalid group member pointer size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &p.Authority, &offset)
	bin.GetNonZeroKey32(b[offset:], &p.MemberAddress, &offset)

	return nil
}

type TokenGroup struct {
	UpdateAuthority ed25519.PublicKey
	Mint            ed25519.PublicKey
	Size            uint64
	MaxSize         uint64
}

func (g *TokenGroup) Marshal() []byte {
	b := make([]byte, 80)

	var offset int
	putNonZeroKey(b, g.UpdateAuthority, &offset)
	bin.PutKey32(b[offset:], g.Mint, &offset)
	bin.PutUint64(b[offset:], g.Size, &offset)
	bin.PutUint64(b[offset:], g.MaxSize, &offset)

	return b
}

func (g *TokenGroup) Unmarshal(b []byte) error {
	if len(b) != 80 {
		return errors.Errorf("invalid token group size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &g.UpdateAuthority, &offset)
	bin.GetKey32(b[offset:], &g.Mint, &offset)
	bin.GetUint64(b[offset:], &g.Size, &offset)
	bin.GetUint64(b[offset:], &g.MaxSize, &offset)

	return nil
}

type TokenGroupMember struct {
	Mint         ed25519.PublicKey
	Group        ed25519.PublicKey
	MemberNumber uint64
}

func (m *TokenGroupMember) Marshal() []byte {
	b := make([]byte, 72)

	var offset int
	bin.PutKey32(b[offset:], m.Mint, &offset)
	bin.PutKey32(b[offset:], m.Group, &offset)
	bin.PutUint64(b[offset:], m.MemberNumber, &offset)

	return b
}

func (m *TokenGroupMember) Unmarshal(b []byte) error {
	if len(b) != 72 {
		return errors.Errorf("invalid token group member size: %d", len(b))
	}

	var offset int
	bin.GetKey32(b[offset:], &m.Mint, &offset)
	bin.GetKey32(b[offset:], &m.Group, &offset)
	bin.GetUint64(b[offset:], &m.MemberNumber, &offset)

	return nil
}

type ScaledUiAmountConfig struct {
	Authority                       ed25519.PublicKey
	Multiplier                      float64
	NewMultiplierEffectiveTimestamp int64
	NewMultiplier                   float64
}

func (c *ScaledUiAmountConfig) Marshal() []byte {
	b := make([]byte, 56)

	var offset int
	putNonZeroKey(b, c.Authority, &offset)
	bin.PutFloat64(b[offset:], c.Multiplier, &offset)
	bin.PutInt64(b[offset:], c.NewMultiplierEffectiveTimestamp, &offset)
	bin.PutFloat64(b[offset:], c.NewMultiplier, &offset)

	return b
}

func (c *ScaledUiAmountConfig) Unmarshal(b []byte) error {
	if len(b) != 56 {
		return errors.Errorf("invalid scaled ui amount config size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &c.Authority, &offset)
	bin.GetFloat64(b[offset:], &c.Multiplier, &offset)
	bin.GetInt64(b[offset:], &c.NewMultiplierEffectiveTimestamp, &offset)
	bin.GetFloat64(b[offset:], &c.NewMultiplier, &offset)

	return nil
}

type PausableConfig struct {
	Authority ed25519.PublicKey
	Paused    bool
}

func (c *PausableConfig) Marshal() []byte {
	b := make([]byte, 33)

	var offset int
	putNonZeroKey(b, c.Authority, &offset)
	b[offset] = boolByte(c.Paused)

	return b
}

func (c *PausableConfig) Unmarshal(b []byte) error {
	if len(b) != 33 {
		return errors.Errorf("invalid pausable config size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &c.Authority, &offset)
	c.Paused = b[offset] == 1

	return nil
}

// TokenMetadata is the variable-length metadata payload. Strings are
// length-prefixed with a little-endian u32, and the additional metadata is a
// length-prefixed vec of key/value string pairs.
//
// Reference: https://github.com/solana-program/token-metadata/blob/main/interface/src/state.rs
type TokenMetadata struct {
	UpdateAuthority    ed25519.PublicKey
	Mint               ed25519.PublicKey
	Name               string
	Symbol             string
	Uri                string
	AdditionalMetadata [][2]string
}

func (m *TokenMetadata) Marshal() []byte {
	size := 64 + 4 + len(m.Name) + 4 + len(m.Symbol) + 4 + len(m.Uri) + 4
	for _, kv := range m.AdditionalMetadata {
		size += 4 + len(kv[0]) + 4 + len(kv[1])
	}

	b := make([]byte, size)

	var offset int
	putNonZeroKey(b, m.UpdateAuthority, &offset)
	bin.PutKey32(b[offset:], m.Mint, &offset)
	putString(b, m.Name, &offset)
	putString(b, m.Symbol, &offset)
	putString(b, m.Uri, &offset)

	bin.PutUint32(b[offset:], uint32(len(m.AdditionalMetadata)), &offset)
	for _, kv := range m.AdditionalMetadata {
		putString(b, kv[0], &offset)
		putString(b, kv[1], &offset)
	}

	return b
}

func (m *TokenMetadata) Unmarshal(b []byte) error {
	if len(b) < 64+3*4+4 {
		return errors.Errorf("invalid token metadata size: %d", len(b))
	}

	var offset int
	bin.GetNonZeroKey32(b[offset:], &m.UpdateAuthority, &offset)
	bin.GetKey32(b[offset:], &m.Mint, &offset)

	var err error
	if m.Name, err = getString(b, &offset); err != nil {
		return err
	}
	if m.Symbol, err = getString(b, &offset); err != nil {
		return err
	}
	if m.Uri, err = getString(b, &offset); err != nil {
		return err
	}

	if offset+4 > len(b) {
		return errors.New("token metadata truncated")
	}
	var count uint32
	bin.GetUint32(b[offset:], &count, &offset)

	m.AdditionalMetadata = nil
	for i := uint32(0); i < count; i++ {
		var kv [2]string
		if kv[0], err = getString(b, &offset); err != nil {
			return err
		}
		if kv[1], err = getString(b, &offset); err != nil {
			return err
		}
		m.AdditionalMetadata = append(m.AdditionalMetadata, kv)
	}

	return nil
}

// GetField returns the value of a metadata field by its wire name. The three
// reserved names address the fixed fields; anything else is looked up in the
// additional metadata.
func (m *TokenMetadata) GetField(key string) (string, bool) {
	switch key {
	case "name":
		return m.Name, true
	case "symbol":
		return m.Symbol, true
	case "uri":
		return m.Uri, true
	}

	for _, kv := range m.AdditionalMetadata {
		if kv[0] == key {
			return kv[1], true
		}
	}
	return "", false
}

// SetField updates a metadata field by its wire name, appending to the
// additional metadata for non-reserved names.
func (m *TokenMetadata) SetField(key, value string) {
	switch key {
	case "name":
		m.Name = value
		return
	case "symbol":
		m.Symbol = value
		return
	case "uri":
		m.Uri = value
		return
	}

	for i, kv := range m.AdditionalMetadata {
		if kv[0] == key {
			m.AdditionalMetadata[i][1] = value
			return
		}
	}
	m.AdditionalMetadata = append(m.AdditionalMetadata, [2]string{key, value})
}

// RemoveKey deletes a non-reserved key from the additional metadata,
// reporting whether it was present.
func (m *TokenMetadata) RemoveKey(key string) bool {
	for i, kv := range m.AdditionalMetadata {
		if kv[0] == key {
			m.AdditionalMetadata = append(m.AdditionalMetadata[:i], m.AdditionalMetadata[i+1:]...)
			return true
		}
	}
	return false
}

func putNonZeroKey(dst []byte, key ed25519.PublicKey, offset *int) {
	copy(dst[*offset:], key)
	*offset += ed25519.PublicKeySize
}

func putString(dst []byte, s string, offset *int) {
	bin.PutUint32(dst[*offset:], uint32(len(s)), offset)
	copy(dst[*offset:], s)
	*offset += len(s)
}

func getString(src []byte, offset *int) (string, error) {
	if *offset+4 > len(src) {
		return "", errors.New("string length truncated")
	}

	var length uint32
	bin.GetUint32(src[*offset:], &length, offset)

	if *offset+int(length) > len(src) {
		return "", errors.New("string data truncated")
	}

	s := string(src[*offset : *offset+int(length)])
	*offset += int(length)

	return s, nil
}
