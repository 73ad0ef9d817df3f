package tokenext

import (
	"crypto/ed25519"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// One exported creation operation per supported extension composition.
// Arbitrary legal combinations go through CreateMint/CreateAccount with a
// caller-built plan.

func (c *Creator) CreateMintWithCloseAuthority(creation MintCreation, closeAuthority ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &MintCloseAuthorityExtension{
		CloseAuthority: closeAuthority,
	})
}

func (c *Creator) CreateMintWithTransferFee(creation MintCreation, configAuthority, withdrawWithheldAuthority ed25519.PublicKey, basisPoints uint16, maximumFee uint64) (solana.Signature, error) {
	return c.createMintWith(creation, &TransferFeeExtension{
		ConfigAuthority:           configAuthority,
		WithdrawWithheldAuthority: withdrawWithheldAuthority,
		BasisPoints:               basisPoints,
		MaximumFee:                maximumFee,
	})
}

func (c *Creator) CreateMintWithDefaultState(creation MintCreation, state token2022.AccountState) (solana.Signature, error) {
	return c.createMintWith(creation, &DefaultAccountStateExtension{
		State: state,
	})
}

func (c *Creator) CreateInterestBearingMint(creation MintCreation, rateAuthority ed25519.PublicKey, rate int16) (solana.Signature, error) {
	return c.createMintWith(creation, &InterestBearingExtension{
		RateAuthority: rateAuthority,
		Rate:          rate,
	})
}

func (c *Creator) CreateMintWithPermanentDelegate(creation MintCreation, delegate ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &PermanentDelegateExtension{
		Delegate: delegate,
	})
}

func (c *Creator) CreateMintWithTransferHook(creation MintCreation, authority, hookProgram ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &TransferHookExtension{
		Authority:   authority,
		HookProgram: hookProgram,
	})
}

func (c *Creator) CreateMintWithMetadataPointer(creation MintCreation, authority, metadataAddress ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &MetadataPointerExtension{
		Authority:       authority,
		MetadataAddress: metadataAddress,
	})
}

// CreateMintWithMetadata stores the metadata in the new mint's own tail
// behind a self-referential metadata pointer.
func (c *Creator) CreateMintWithMetadata(creation MintCreation, updateAuthority ed25519.PublicKey, name, symbol, uri string) (solana.Signature, error) {
	return c.createMintWith(creation,
		&MetadataPointerExtension{Authority: updateAuthority},
		&MetadataExtension{
			UpdateAuthority: updateAuthority,
			Name:            name,
			Symbol:          symbol,
			Uri:             uri,
		},
	)
}

func (c *Creator) CreateMintWithGroupPointer(creation MintCreation, authority, groupAddress ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &GroupPointerExtension{
		Authority:    authority,
		GroupAddress: groupAddress,
	})
}

// CreateMintWithGroup makes the new mint a group account with a
// self-referential group pointer.
func (c *Creator) CreateMintWithGroup(creation MintCreation, updateAuthority ed25519.PublicKey, maxSize uint64) (solana.Signature, error) {
	return c.createMintWith(creation,
		&GroupPointerExtension{Authority: updateAuthority},
		&GroupExtension{
			UpdateAuthority: updateAuthority,
			MaxSize:         maxSize,
		},
	)
}

func (c *Creator) CreateMintWithMemberPointer(creation MintCreation, authority, memberAddress ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &GroupMemberPointerExtension{
		Authority:     authority,
		MemberAddress: memberAddress,
	})
}

// CreateMintWithMember creates a mint that joins an existing group. The
// group's update authority co-signs the creation.
func (c *Creator) CreateMintWithMember(creation MintCreation, group ed25519.PublicKey, groupUpdateAuthority ed25519.PrivateKey) (solana.Signature, error) {
	creation.AdditionalSigners = append(creation.AdditionalSigners, groupUpdateAuthority)

	return c.createMintWith(creation,
		&GroupMemberPointerExtension{Authority: groupUpdateAuthority.Public().(ed25519.PublicKey)},
		&GroupMemberExtension{
			Group:                group,
			GroupUpdateAuthority: groupUpdateAuthority.Public().(ed25519.PublicKey),
		},
	)
}

func (c *Creator) CreateMintWithScaledUiAmount(creation MintCreation, authority ed25519.PublicKey, multiplier float64) (solana.Signature, error) {
	return c.createMintWith(creation, &ScaledUiAmountExtension{
		Authority:  authority,
		Multiplier: multiplier,
	})
}

func (c *Creator) CreatePausableMint(creation MintCreation, pauseAuthority ed25519.PublicKey) (solana.Signature, error) {
	return c.createMintWith(creation, &PausableExtension{
		Authority: pauseAuthority,
	})
}

func (c *Creator) CreateNonTransferableMint(creation MintCreation) (solana.Signature, error) {
	return c.createMintWith(creation, &NonTransferableExtension{})
}

func (c *Creator) CreateAccountWithImmutableOwner(creation AccountCreation) (solana.Signature, error) {
	return c.createAccountWith(creation, &ImmutableOwnerExtension{})
}

func (c *Creator) CreateAccountWithRequiredMemo(creation AccountCreation) (solana.Signature, error) {
	return c.createAccountWith(creation, &RequiredMemoExtension{})
}

func (c *Creator) CreateAccountWithCpiGuard(creation AccountCreation) (solana.Signature, error) {
	return c.createAccountWith(creation, &CpiGuardExtension{})
}

func (c *Creator) createMintWith(creation MintCreation, extensions ...Extension) (solana.Signature, error) {
	plan, err := NewMintPlan(extensions...)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.CreateMint(creation, plan)
}

func (c *Creator) createAccountWith(creation AccountCreation, extensions ...Extension) (solana.Signature, error) {
	plan, err := NewAccountPlan(extensions...)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.CreateAccount(creation, plan)
}
