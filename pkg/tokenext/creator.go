package tokenext

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// Creator assembles and submits the atomic creation sequence for a planned
// mint or token account: provision, pre-base extension initializes in plan
// order, base record initialize, then the post-base payload initializes.
// The whole sequence is one submission, so it either fully applies or the
// ledger records nothing.
type Creator struct {
	log         *logrus.Entry
	client      solana.Client
	provisioner *Provisioner
}

func NewCreator(client solana.Client) *Creator {
	return &Creator{
		log:         logrus.StandardLogger().WithField("type", "tokenext/creator"),
		client:      client,
		provisioner: NewProvisioner(client),
	}
}

// MintCreation holds the identities of a new mint. The mint authority must
// be a private key because post-base extensions (metadata, groups) require
// its signature during creation.
type MintCreation struct {
	Payer           ed25519.PrivateKey
	Mint            ed25519.PrivateKey
	MintAuthority   ed25519.PrivateKey
	FreezeAuthority ed25519.PublicKey
	Decimals        uint8

	// AdditionalSigners co-sign the creation, e.g. the group update
	// authority when the new mint joins a group.
	AdditionalSigners []ed25519.PrivateKey
}

// AccountCreation holds the identities of a new token account. The owner
// must be a private key because post-base enables (required memo, cpi
// guard) require its signature during creation.
type AccountCreation struct {
	Payer   ed25519.PrivateKey
	Account ed25519.PrivateKey
	Owner   ed25519.PrivateKey
	Mint    ed25519.PublicKey
}

// CreateMint provisions and initializes a mint for an arbitrary legal plan.
func (c *Creator) CreateMint(creation MintCreation, plan *Plan) (solana.Signature, error) {
	if plan.accountType != token2022.AccountTypeMint {
		return solana.Signature{}, ErrInvalidExtensionType
	}

	mint := creation.Mint.Public().(ed25519.PublicKey)
	mintAuthority := creation.MintAuthority.Public().(ed25519.PublicKey)

	log := c.log.WithFields(logrus.Fields{
		"method": "CreateMint",
		"mint":   base58.Encode(mint),
	})

	// A member join is validated against the group's current occupancy up
	// front; the interface would reject it anyway, but this surfaces the
	// typed error without spending the submission.
	for _, ext := range plan.postBase {
		member, ok := ext.(*GroupMemberExtension)
		if !ok {
			continue
		}

		group, err := loadMint(c.client, member.Group)
		if err != nil {
			return solana.Signature{}, ErrInvalidMemberConfig
		}

		data, ok := group.GetExtension(token2022.ExtensionTypeTokenGroup)
		if !ok {
			return solana.Signature{}, ErrInvalidGroupConfig
		}

		var state token2022.TokenGroup
		if err := state.Unmarshal(data); err != nil {
			return solana.Signature{}, ErrInvalidGroupConfig
		}
		if state.Size >= state.MaxSize {
			return solana.Signature{}, ErrGroupSizeLimitExceeded
		}
	}

	target := creationTarget{
		address:       mint,
		mintAuthority: mintAuthority,
	}

	provision, err := c.provisioner.ProvisionInstruction(creation.Payer.Public().(ed25519.PublicKey), mint, plan)
	if err != nil {
		return solana.Signature{}, err
	}

	instructions := []solana.Instruction{provision}
	for _, ext := range plan.preBase {
		instructions = append(instructions, extensionInstruction(ext, target))
	}
	instructions = append(instructions, token2022.InitializeMint2(mint, creation.Decimals, mintAuthority, creation.FreezeAuthority))
	for _, ext := range plan.postBase {
		instructions = append(instructions, extensionInstruction(ext, target))
	}

	signers := []ed25519.PrivateKey{creation.Payer, creation.Mint}
	if len(plan.postBase) > 0 {
		signers = append(signers, creation.MintAuthority)
	}
	signers = append(signers, creation.AdditionalSigners...)

	sig, err := c.submit(creation.Payer, signers, instructions)
	if err != nil {
		return sig, err
	}

	log.WithField("signature", base58.Encode(sig[:])).Debug("mint created")
	return sig, nil
}

// CreateAccount provisions and initializes a token account for an
// arbitrary legal plan.
func (c *Creator) CreateAccount(creation AccountCreation, plan *Plan) (solana.Signature, error) {
	if plan.accountType != token2022.AccountTypeAccount {
		return solana.Signature{}, ErrInvalidExtensionType
	}

	account := creation.Account.Public().(ed25519.PublicKey)
	owner := creation.Owner.Public().(ed25519.PublicKey)

	log := c.log.WithFields(logrus.Fields{
		"method":  "CreateAccount",
		"account": base58.Encode(account),
	})

	target := creationTarget{
		address: account,
		owner:   owner,
	}

	// The program initializes additional account extensions itself based on
	// the mint (withheld fee amounts, transfer hook flags, ...); the
	// allocation must include their space on top of what the caller asked
	// for.
	mintState, err := loadMint(c.client, creation.Mint)
	if err != nil {
		return solana.Signature{}, err
	}

	types := make([]token2022.ExtensionType, 0, len(plan.preBase)+len(plan.postBase))
	for _, ext := range plan.preBase {
		types = append(types, ext.extensionType())
	}
	for _, ext := range plan.postBase {
		types = append(types, ext.extensionType())
	}
	types = append(types, token2022.RequiredAccountExtensions(mintState)...)

	size, err := token2022.CalculateAccountLen(token2022.AccountTypeAccount, types)
	if err != nil {
		return solana.Signature{}, ErrInvalidExtensionType
	}

	sized := *plan
	sized.allocationSize = size
	sized.fundedSize = size
	plan = &sized

	provision, err := c.provisioner.ProvisionInstruction(creation.Payer.Public().(ed25519.PublicKey), account, plan)
	if err != nil {
		return solana.Signature{}, err
	}

	instructions := []solana.Instruction{provision}
	for _, ext := range plan.preBase {
		instructions = append(instructions, extensionInstruction(ext, target))
	}
	instructions = append(instructions, token2022.InitializeAccount3(account, creation.Mint, owner))
	for _, ext := range plan.postBase {
		instructions = append(instructions, extensionInstruction(ext, target))
	}

	signers := []ed25519.PrivateKey{creation.Payer, creation.Account}
	if len(plan.postBase) > 0 {
		signers = append(signers, creation.Owner)
	}

	sig, err := c.submit(creation.Payer, signers, instructions)
	if err != nil {
		return sig, err
	}

	log.WithField("signature", base58.Encode(sig[:])).Debug("token account created")
	return sig, nil
}

func (c *Creator) submit(payer ed25519.PrivateKey, signers []ed25519.PrivateKey, instructions []solana.Instruction) (solana.Signature, error) {
	txn := solana.NewTransaction(payer.Public().(ed25519.PublicKey), instructions...)

	blockhash, err := c.client.GetLatestBlockhash()
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	if err := txn.Sign(signers...); err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return sig, translateError(err)
	}

	return sig, nil
}

// creationTarget resolves self-referential pointer targets and provides the
// signing identities extension initializes reference.
type creationTarget struct {
	address       ed25519.PublicKey
	mintAuthority ed25519.PublicKey
	owner         ed25519.PublicKey
}

func (t creationTarget) resolve(address ed25519.PublicKey) ed25519.PublicKey {
	if len(address) == 0 {
		return t.address
	}
	return address
}

func extensionInstruction(ext Extension, target creationTarget) solana.Instruction {
	switch e := ext.(type) {
	case *MintCloseAuthorityExtension:
		return token2022.InitializeMintCloseAuthority(target.address, e.CloseAuthority)
	case *TransferFeeExtension:
		return token2022.InitializeTransferFeeConfig(target.address, e.ConfigAuthority, e.WithdrawWithheldAuthority, e.BasisPoints, e.MaximumFee)
	case *DefaultAccountStateExtension:
		return token2022.InitializeDefaultAccountState(target.address, e.State)
	case *NonTransferableExtension:
		return token2022.InitializeNonTransferableMint(target.address)
	case *InterestBearingExtension:
		return token2022.InitializeInterestBearingMint(target.address, e.RateAuthority, e.Rate)
	case *PermanentDelegateExtension:
		return token2022.InitializePermanentDelegate(target.address, e.Delegate)
	case *TransferHookExtension:
		return token2022.InitializeTransferHook(target.address, e.Authority, e.HookProgram)
	case *MetadataPointerExtension:
		return token2022.InitializeMetadataPointer(target.address, e.Authority, target.resolve(e.MetadataAddress))
	case *MetadataExtension:
		return token2022.InitializeTokenMetadata(target.address, e.UpdateAuthority, target.address, target.mintAuthority, e.Name, e.Symbol, e.Uri)
	case *GroupPointerExtension:
		return token2022.InitializeGroupPointer(target.address, e.Authority, target.resolve(e.GroupAddress))
	case *GroupExtension:
		return token2022.InitializeTokenGroup(target.address, target.address, target.mintAuthority, e.UpdateAuthority, e.MaxSize)
	case *GroupMemberPointerExtension:
		return token2022.InitializeGroupMemberPointer(target.address, e.Authority, target.resolve(e.MemberAddress))
	case *GroupMemberExtension:
		return token2022.InitializeTokenGroupMember(target.address, target.address, target.mintAuthority, e.Group, e.GroupUpdateAuthority)
	case *ScaledUiAmountExtension:
		return token2022.InitializeScaledUiAmount(target.address, e.Authority, e.Multiplier)
	case *PausableExtension:
		return token2022.InitializePausableConfig(target.address, e.Authority)
	case *ImmutableOwnerExtension:
		return token2022.InitializeImmutableOwner(target.address)
	case *RequiredMemoExtension:
		return token2022.EnableRequiredMemoTransfers(target.address, target.owner)
	case *CpiGuardExtension:
		return token2022.EnableCpiGuard(target.address, target.owner)
	}

	// Unreachable for plans built through NewMintPlan/NewAccountPlan.
	panic(errors.Errorf("unhandled extension type: %d", ext.extensionType()))
}
