package tokenext

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// The metadata and group interface instructions are addressed by 8 byte
// namespaced discriminators rather than a command byte.
var (
	discMetadataInitialize      = []byte{210, 225, 30, 162, 88, 184, 77, 141}
	discMetadataUpdateField     = []byte{221, 233, 49, 45, 181, 202, 220, 200}
	discMetadataRemoveKey       = []byte{234, 18, 32, 56, 89, 141, 37, 181}
	discMetadataUpdateAuthority = []byte{215, 228, 166, 228, 84, 100, 86, 123}
	discMetadataEmit            = []byte{250, 166, 180, 250, 13, 12, 184, 70}

	discGroupInitialize       = []byte{121, 113, 108, 39, 54, 51, 0, 4}
	discGroupUpdateMaxSize    = []byte{108, 37, 171, 143, 248, 30, 18, 110}
	discGroupUpdateAuthority  = []byte{161, 105, 88, 1, 237, 221, 216, 203}
	discGroupInitializeMember = []byte{152, 32, 222, 176, 223, 237, 116, 134}
)

func (l *fakeLedger) executeTokenInterface(txn solana.Transaction, ci solana.CompiledInstruction) (bool, error) {
	disc := ci.Data[:8]

	switch {
	case bytes.Equal(disc, discMetadataInitialize):
		return true, l.initializeMetadata(txn, ci)
	case bytes.Equal(disc, discMetadataUpdateField):
		return true, l.updateMetadataField(txn, ci)
	case bytes.Equal(disc, discMetadataRemoveKey):
		return true, l.removeMetadataKey(txn, ci)
	case bytes.Equal(disc, discMetadataUpdateAuthority):
		return true, l.updateMetadataAuthority(txn, ci)
	case bytes.Equal(disc, discMetadataEmit):
		return true, nil
	case bytes.Equal(disc, discGroupInitialize):
		return true, l.initializeGroup(txn, ci)
	case bytes.Equal(disc, discGroupUpdateMaxSize):
		return true, l.updateGroupMaxSize(txn, ci)
	case bytes.Equal(disc, discGroupUpdateAuthority):
		return true, l.updateGroupAuthority(txn, ci)
	case bytes.Equal(disc, discGroupInitializeMember):
		return true, l.initializeGroupMember(txn, ci)
	default:
		return false, nil
	}
}

func (l *fakeLedger) initializeMetadata(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil || a.mint == nil || !a.mint.IsInitialized {
		return token2022.ErrorInvalidMint
	}

	// The mint's metadata pointer must already reference the metadata
	// account being written.
	data, ok := a.mint.GetExtension(token2022.ExtensionTypeMetadataPointer)
	if !ok {
		return token2022.ErrorInvalidExtensionCombination
	}
	var pointer token2022.MetadataPointer
	if err := pointer.Unmarshal(data); err != nil || !bytes.Equal(pointer.MetadataAddress, l.keyAt(txn, ci, 0)) {
		return token2022.ErrorInvalidExtensionCombination
	}

	if !l.signedAt(txn, ci, 3) || !bytes.Equal(a.mint.MintAuthority, l.keyAt(txn, ci, 3)) {
		return token2022.ErrorOwnerMismatch
	}
	if _, ok := a.mint.GetExtension(token2022.ExtensionTypeTokenMetadata); ok {
		return token2022.ErrorAlreadyInUse
	}

	offset := 8
	metadata := token2022.TokenMetadata{
		UpdateAuthority: readNonZeroKey(l.keyAt(txn, ci, 1), 0),
		Mint:            l.keyAt(txn, ci, 2),
		Name:            readString(ci.Data, &offset),
		Symbol:          readString(ci.Data, &offset),
		Uri:             readString(ci.Data, &offset),
	}

	a.mint.SetExtension(token2022.ExtensionTypeTokenMetadata, metadata.Marshal())
	return l.growMint(a)
}

func (l *fakeLedger) updateMetadataField(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a, metadata, err := l.metadataAt(txn, ci)
	if err != nil {
		return err
	}
	if err := l.checkMetadataAuthority(txn, ci, metadata); err != nil {
		return err
	}

	offset := 8
	var key string
	switch ci.Data[offset] {
	case 0:
		key = "name"
		offset++
	case 1:
		key = "symbol"
		offset++
	case 2:
		key = "uri"
		offset++
	default:
		offset++
		key = readString(ci.Data, &offset)
	}
	value := readString(ci.Data, &offset)

	metadata.SetField(key, value)
	a.mint.SetExtension(token2022.ExtensionTypeTokenMetadata, metadata.Marshal())
	return l.growMint(a)
}

func (l *fakeLedger) removeMetadataKey(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a, metadata, err := l.metadataAt(txn, ci)
	if err != nil {
		return err
	}
	if err := l.checkMetadataAuthority(txn, ci, metadata); err != nil {
		return err
	}

	offset := 8
	idempotent := ci.Data[offset] == 1
	offset++
	key := readString(ci.Data, &offset)

	switch key {
	case "name", "symbol", "uri":
		return errors.New(string(solana.InstructionErrorInvalidArgument))
	}

	if !metadata.RemoveKey(key) && !idempotent {
		return errors.New(string(solana.InstructionErrorInvalidArgument))
	}

	a.mint.SetExtension(token2022.ExtensionTypeTokenMetadata, metadata.Marshal())
	return nil
}

func (l *fakeLedger) updateMetadataAuthority(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a, metadata, err := l.metadataAt(txn, ci)
	if err != nil {
		return err
	}
	if err := l.checkMetadataAuthority(txn, ci, metadata); err != nil {
		return err
	}

	metadata.UpdateAuthority = readNonZeroKey(ci.Data, 8)
	a.mint.SetExtension(token2022.ExtensionTypeTokenMetadata, metadata.Marshal())
	return nil
}

func (l *fakeLedger) metadataAt(txn solana.Transaction, ci solana.CompiledInstruction) (*ledgerAccount, *token2022.TokenMetadata, error) {
	a := l.accountAt(txn, ci, 0)
	if a == nil || a.mint == nil || !a.mint.IsInitialized {
		return nil, nil, token2022.ErrorInvalidMint
	}

	data, ok := a.mint.GetExtension(token2022.ExtensionTypeTokenMetadata)
	if !ok {
		return nil, nil, token2022.ErrorExtensionNotFoundInAccount
	}

	var metadata token2022.TokenMetadata
	if err := metadata.Unmarshal(data); err != nil {
		return nil, nil, token2022.ErrorInvalidState
	}
	return a, &metadata, nil
}

func (l *fakeLedger) checkMetadataAuthority(txn solana.Transaction, ci solana.CompiledInstruction, metadata *token2022.TokenMetadata) error {
	if metadata.UpdateAuthority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(metadata.UpdateAuthority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}
	return nil
}

func (l *fakeLedger) initializeGroup(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil || a.mint == nil || !a.mint.IsInitialized {
		return token2022.ErrorInvalidMint
	}

	data, ok := a.mint.GetExtension(token2022.ExtensionTypeGroupPointer)
	if !ok {
		return token2022.ErrorInvalidExtensionCombination
	}
	var pointer token2022.GroupPointer
	if err := pointer.Unmarshal(data); err != nil || !bytes.Equal(pointer.GroupAddress, l.keyAt(txn, ci, 0)) {
		return token2022.ErrorInvalidExtensionCombination
	}

	if !l.signedAt(txn, ci, 2) || !bytes.Equal(a.mint.MintAuthority, l.keyAt(txn, ci, 2)) {
		return token2022.ErrorOwnerMismatch
	}
	if _, ok := a.mint.GetExtension(token2022.ExtensionTypeTokenGroup); ok {
		return token2022.ErrorAlreadyInUse
	}

	group := token2022.TokenGroup{
		UpdateAuthority: readNonZeroKey(ci.Data, 8),
		Mint:            l.keyAt(txn, ci, 1),
		MaxSize:         binary.LittleEndian.Uint64(ci.Data[40:]),
	}

	a.mint.SetExtension(token2022.ExtensionTypeTokenGroup, group.Marshal())
	return l.growMint(a)
}

func (l *fakeLedger) updateGroupMaxSize(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a, group, err := l.groupAt(txn, ci, 0)
	if err != nil {
		return err
	}
	if err := l.checkGroupAuthority(txn, ci, 1, group); err != nil {
		return err
	}

	maxSize := binary.LittleEndian.Uint64(ci.Data[8:])
	if maxSize < group.Size {
		return errors.New(string(solana.InstructionErrorInvalidArgument))
	}

	group.MaxSize = maxSize
	a.mint.SetExtension(token2022.ExtensionTypeTokenGroup, group.Marshal())
	return nil
}

func (l *fakeLedger) updateGroupAuthority(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a, group, err := l.groupAt(txn, ci, 0)
	if err != nil {
		return err
	}
	if err := l.checkGroupAuthority(txn, ci, 1, group); err != nil {
		return err
	}

	group.UpdateAuthority = readNonZeroKey(ci.Data, 8)
	a.mint.SetExtension(token2022.ExtensionTypeTokenGroup, group.Marshal())
	return nil
}

func (l *fakeLedger) initializeGroupMember(txn solana.Transaction, ci solana.CompiledInstruction) error {
	member := l.accountAt(txn, ci, 0)
	if member == nil || member.mint == nil || !member.mint.IsInitialized {
		return token2022.ErrorInvalidMint
	}

	data, ok := member.mint.GetExtension(token2022.ExtensionTypeGroupMemberPointer)
	if !ok {
		return token2022.ErrorInvalidExtensionCombination
	}
	var pointer token2022.GroupMemberPointer
	if err := pointer.Unmarshal(data); err != nil || !bytes.Equal(pointer.MemberAddress, l.keyAt(txn, ci, 0)) {
		return token2022.ErrorInvalidExtensionCombination
	}

	if !l.signedAt(txn, ci, 2) || !bytes.Equal(member.mint.MintAuthority, l.keyAt(txn, ci, 2)) {
		return token2022.ErrorOwnerMismatch
	}
	if _, ok := member.mint.GetExtension(token2022.ExtensionTypeTokenGroupMember); ok {
		return token2022.ErrorAlreadyInUse
	}

	groupAccount, group, err := l.groupAt(txn, ci, 3)
	if err != nil {
		return err
	}
	if err := l.checkGroupAuthority(txn, ci, 4, group); err != nil {
		return err
	}
	if group.Size >= group.MaxSize {
		return errors.New(string(solana.InstructionErrorInvalidArgument))
	}

	group.Size++
	groupAccount.mint.SetExtension(token2022.ExtensionTypeTokenGroup, group.Marshal())

	member.mint.SetExtension(token2022.ExtensionTypeTokenGroupMember, (&token2022.TokenGroupMember{
		Mint:         l.keyAt(txn, ci, 0),
		Group:        l.keyAt(txn, ci, 3),
		MemberNumber: group.Size,
	}).Marshal())
	return l.growMint(member)
}

func (l *fakeLedger) groupAt(txn solana.Transaction, ci solana.CompiledInstruction, i int) (*ledgerAccount, *token2022.TokenGroup, error) {
	a := l.accountAt(txn, ci, i)
	if a == nil || a.mint == nil || !a.mint.IsInitialized {
		return nil, nil, token2022.ErrorInvalidMint
	}

	data, ok := a.mint.GetExtension(token2022.ExtensionTypeTokenGroup)
	if !ok {
		return nil, nil, token2022.ErrorExtensionNotFoundInAccount
	}

	var group token2022.TokenGroup
	if err := group.Unmarshal(data); err != nil {
		return nil, nil, token2022.ErrorInvalidState
	}
	return a, &group, nil
}

func (l *fakeLedger) checkGroupAuthority(txn solana.Transaction, ci solana.CompiledInstruction, i int, group *token2022.TokenGroup) error {
	if group.UpdateAuthority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, i) || !bytes.Equal(group.UpdateAuthority, l.keyAt(txn, ci, i)) {
		return token2022.ErrorOwnerMismatch
	}
	return nil
}

// growMint commits an in-place reallocation after a post-base payload write.
func (l *fakeLedger) growMint(a *ledgerAccount) error {
	newLen := len(a.mint.Marshal())
	if a.lamports < rentFor(newLen) {
		return token2022.ErrorNotRentExempt
	}
	if newLen > a.size {
		a.size = newLen
	}
	return nil
}

func readString(data []byte, offset *int) string {
	length := int(binary.LittleEndian.Uint32(data[*offset:]))
	*offset += 4
	s := string(data[*offset : *offset+length])
	*offset += length
	return s
}
