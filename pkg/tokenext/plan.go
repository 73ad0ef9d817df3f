package tokenext

import (
	"crypto/ed25519"
	"math"
	"sort"

	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// Extension is one requested extension plus its initialization parameters.
// Concrete types exist for every supported kind; a set of them is turned
// into an ordered, size-computed Plan by NewMintPlan or NewAccountPlan.
type Extension interface {
	extensionType() token2022.ExtensionType
	validate() error
}

// Plan is a validated, ordered extension set for one new account, along
// with its computed byte sizes. Plans are deterministic: the same requested
// set always yields the same order and sizes.
type Plan struct {
	accountType token2022.AccountType
	preBase     []Extension
	postBase    []Extension

	allocationSize int
	fundedSize     int
}

// NewMintPlan validates and orders a requested extension set for a new mint.
func NewMintPlan(extensions ...Extension) (*Plan, error) {
	return newPlan(token2022.AccountTypeMint, extensions)
}

// NewAccountPlan validates and orders a requested extension set for a new
// token account.
func NewAccountPlan(extensions ...Extension) (*Plan, error) {
	return newPlan(token2022.AccountTypeAccount, extensions)
}

func newPlan(accountType token2022.AccountType, extensions []Extension) (*Plan, error) {
	p := &Plan{
		accountType: accountType,
	}

	seen := make(map[token2022.ExtensionType]struct{}, len(extensions))
	var allocated []token2022.ExtensionType

	for _, ext := range extensions {
		t := ext.extensionType()

		forMint := token2022.IsMintExtension(t)
		forAccount := token2022.IsAccountExtension(t)
		if accountType == token2022.AccountTypeMint && !forMint {
			return nil, ErrInvalidExtensionType
		}
		if accountType == token2022.AccountTypeAccount && !forAccount {
			return nil, ErrInvalidExtensionType
		}

		if _, ok := seen[t]; ok {
			return nil, ErrExtensionAlreadyInitialized
		}
		seen[t] = struct{}{}

		if err := ext.validate(); err != nil {
			return nil, err
		}

		// Mint side post-base payloads (metadata, group, member) are
		// written by the program itself at initialize time, growing the
		// account; they are funded below rather than allocated. Account
		// side post-base toggles flip a bit in place and need their
		// space up front.
		if accountType != token2022.AccountTypeMint || !token2022.IsPostBaseExtension(t) {
			allocated = append(allocated, t)
		}

		if token2022.IsPostBaseExtension(t) {
			p.postBase = append(p.postBase, ext)
		} else {
			p.preBase = append(p.preBase, ext)
		}
	}

	// Payload extensions stored in the account's own tail require their
	// pointer extension in the same plan.
	if err := checkPointerPairs(seen); err != nil {
		return nil, err
	}

	// Catalog tag order within each ordering class keeps plans
	// deterministic regardless of how the caller listed the extensions.
	sortByType(p.preBase)
	sortByType(p.postBase)

	size, err := token2022.CalculateAccountLen(accountType, allocated)
	if err != nil {
		return nil, ErrInvalidExtensionType
	}
	p.allocationSize = size

	// Post-base mint payloads grow the account when the program writes
	// them, so they are funded but not allocated.
	p.fundedSize = size
	if accountType == token2022.AccountTypeMint {
		for _, ext := range p.postBase {
			t := ext.extensionType()

			if m, ok := ext.(*MetadataExtension); ok {
				p.fundedSize += 4 + token2022.TokenMetadataLen(m.Name, m.Symbol, m.Uri)
				continue
			}

			length, err := token2022.TypeLen(t)
			if err != nil {
				return nil, ErrInvalidExtensionType
			}
			p.fundedSize += 4 + length
		}
	}

	return p, nil
}

func checkPointerPairs(seen map[token2022.ExtensionType]struct{}) error {
	pairs := []struct {
		payload token2022.ExtensionType
		pointer token2022.ExtensionType
		err     error
	}{
		{token2022.ExtensionTypeTokenMetadata, token2022.ExtensionTypeMetadataPointer, ErrInvalidMetadata},
		{token2022.ExtensionTypeTokenGroup, token2022.ExtensionTypeGroupPointer, ErrInvalidGroupConfig},
		{token2022.ExtensionTypeTokenGroupMember, token2022.ExtensionTypeGroupMemberPointer, ErrInvalidMemberConfig},
	}

	for _, pair := range pairs {
		if _, ok := seen[pair.payload]; !ok {
			continue
		}
		if _, ok := seen[pair.pointer]; !ok {
			return pair.err
		}
	}

	return nil
}

func sortByType(extensions []Extension) {
	sort.SliceStable(extensions, func(i, j int) bool {
		return extensions[i].extensionType() < extensions[j].extensionType()
	})
}

// AllocationSize is the exact byte length the account is created with.
func (p *Plan) AllocationSize() int {
	return p.allocationSize
}

// FundedSize is the byte length the account must be rent exempt for,
// including space the program allocates later for variable length tails.
func (p *Plan) FundedSize() int {
	return p.fundedSize
}

// Extensions returns the planned extensions in initialization order. The
// base record initialize sits between the two classes.
func (p *Plan) Extensions() (preBase, postBase []Extension) {
	return p.preBase, p.postBase
}

func (p *Plan) contains(t token2022.ExtensionType) bool {
	for _, ext := range p.preBase {
		if ext.extensionType() == t {
			return true
		}
	}
	for _, ext := range p.postBase {
		if ext.extensionType() == t {
			return true
		}
	}
	return false
}

// Mint extension parameters. Authorities follow the program's conventions:
// a nil authority means the capability is unset (where the program allows
// it), and nil self-referential pointer targets resolve to the new account.

type MintCloseAuthorityExtension struct {
	CloseAuthority ed25519.PublicKey
}

func (e *MintCloseAuthorityExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeMintCloseAuthority
}

func (e *MintCloseAuthorityExtension) validate() error {
	if len(e.CloseAuthority) == 0 {
		return ErrInvalidCloseAuthority
	}
	return nil
}

type TransferFeeExtension struct {
	ConfigAuthority           ed25519.PublicKey
	WithdrawWithheldAuthority ed25519.PublicKey
	BasisPoints               uint16
	MaximumFee                uint64
}

func (e *TransferFeeExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeTransferFeeConfig
}

func (e *TransferFeeExtension) validate() error {
	if e.BasisPoints > maxFeeBasisPoints {
		return ErrInvalidTransferFeeConfig
	}
	return nil
}

type DefaultAccountStateExtension struct {
	State token2022.AccountState
}

func (e *DefaultAccountStateExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeDefaultAccountState
}

func (e *DefaultAccountStateExtension) validate() error {
	if e.State > token2022.AccountStateFrozen {
		return ErrInvalidDefaultAccountState
	}
	return nil
}

type NonTransferableExtension struct {
}

func (e *NonTransferableExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeNonTransferable
}

func (e *NonTransferableExtension) validate() error {
	return nil
}

type InterestBearingExtension struct {
	RateAuthority ed25519.PublicKey
	Rate          int16
}

func (e *InterestBearingExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeInterestBearingConfig
}

func (e *InterestBearingExtension) validate() error {
	if e.Rate < -maxFeeBasisPoints {
		return ErrInvalidInterestRate
	}
	return nil
}

type PermanentDelegateExtension struct {
	Delegate ed25519.PublicKey
}

func (e *PermanentDelegateExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypePermanentDelegate
}

func (e *PermanentDelegateExtension) validate() error {
	if len(e.Delegate) == 0 {
		return ErrInvalidDelegate
	}
	return nil
}

type TransferHookExtension struct {
	Authority   ed25519.PublicKey
	HookProgram ed25519.PublicKey
}

func (e *TransferHookExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeTransferHook
}

func (e *TransferHookExtension) validate() error {
	if len(e.HookProgram) == 0 {
		return ErrTransferHookProgramNotFound
	}
	return nil
}

// MetadataPointerExtension points a mint at its metadata account. A nil
// MetadataAddress is self-referential: the metadata lives in the new mint's
// own tail.
type MetadataPointerExtension struct {
	Authority       ed25519.PublicKey
	MetadataAddress ed25519.PublicKey
}

func (e *MetadataPointerExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeMetadataPointer
}

func (e *MetadataPointerExtension) validate() error {
	return nil
}

type MetadataExtension struct {
	UpdateAuthority ed25519.PublicKey
	Name            string
	Symbol          string
	Uri             string
}

func (e *MetadataExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeTokenMetadata
}

func (e *MetadataExtension) validate() error {
	if e.Name == "" || e.Symbol == "" {
		return ErrInvalidMetadata
	}
	return nil
}

type GroupPointerExtension struct {
	Authority    ed25519.PublicKey
	GroupAddress ed25519.PublicKey
}

func (e *GroupPointerExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeGroupPointer
}

func (e *GroupPointerExtension) validate() error {
	return nil
}

type GroupExtension struct {
	UpdateAuthority ed25519.PublicKey
	MaxSize         uint64
}

func (e *GroupExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeTokenGroup
}

func (e *GroupExtension) validate() error {
	if e.MaxSize == 0 {
		return ErrInvalidGroupConfig
	}
	return nil
}

type GroupMemberPointerExtension struct {
	Authority     ed25519.PublicKey
	MemberAddress ed25519.PublicKey
}

func (e *GroupMemberPointerExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeGroupMemberPointer
}

func (e *GroupMemberPointerExtension) validate() error {
	return nil
}

// GroupMemberExtension joins the new mint to an existing group. The group
// update authority must co-sign the creation.
type GroupMemberExtension struct {
	Group                ed25519.PublicKey
	GroupUpdateAuthority ed25519.PublicKey
}

func (e *GroupMemberExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeTokenGroupMember
}

func (e *GroupMemberExtension) validate() error {
	if len(e.Group) == 0 || len(e.GroupUpdateAuthority) == 0 {
		return ErrInvalidMemberConfig
	}
	return nil
}

type ScaledUiAmountExtension struct {
	Authority  ed25519.PublicKey
	Multiplier float64
}

func (e *ScaledUiAmountExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeScaledUiAmount
}

func (e *ScaledUiAmountExtension) validate() error {
	if err := validateMultiplier(e.Multiplier); err != nil {
		return err
	}
	return nil
}

type PausableExtension struct {
	Authority ed25519.PublicKey
}

func (e *PausableExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypePausable
}

func (e *PausableExtension) validate() error {
	if len(e.Authority) == 0 {
		return ErrInvalidAuthority
	}
	return nil
}

// Token account extension parameters.

type ImmutableOwnerExtension struct {
}

func (e *ImmutableOwnerExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeImmutableOwner
}

func (e *ImmutableOwnerExtension) validate() error {
	return nil
}

// RequiredMemoExtension enables required incoming transfer memos on the new
// token account. The enable runs after the base initialize, signed by the
// account owner.
type RequiredMemoExtension struct {
}

func (e *RequiredMemoExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeMemoTransfer
}

func (e *RequiredMemoExtension) validate() error {
	return nil
}

type CpiGuardExtension struct {
}

func (e *CpiGuardExtension) extensionType() token2022.ExtensionType {
	return token2022.ExtensionTypeCpiGuard
}

func (e *CpiGuardExtension) validate() error {
	return nil
}

func validateMultiplier(multiplier float64) error {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return ErrInvalidUiAmountMultiplier
	}
	return nil
}
