package tokenext

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/memo"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// Dispatcher submits authority gated mutations against initialized mints
// and token accounts. Every operation loads the current on-chain state and
// fails fast on the first unmet precondition: lifecycle state, extension
// presence, authority match, then the operation's domain rules. Nothing is
// retried; a failed submission leaves state untouched and the caller
// resubmits with corrected parameters.
type Dispatcher struct {
	log    *logrus.Entry
	client solana.Client
}

func NewDispatcher(client solana.Client) *Dispatcher {
	return &Dispatcher{
		log:    logrus.StandardLogger().WithField("type", "tokenext/dispatcher"),
		client: client,
	}
}

// CloseMint closes a zero supply mint carrying the close authority
// extension, returning its lamports to dest.
func (d *Dispatcher) CloseMint(payer ed25519.PrivateKey, mint, dest ed25519.PublicKey, closeAuthority ed25519.PrivateKey) (solana.Signature, error) {
	state, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeMintCloseAuthority)
	if !ok {
		return solana.Signature{}, ErrInvalidCloseAuthority
	}

	var extension token2022.MintCloseAuthority
	if err := extension.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}
	if !bytes.Equal(extension.CloseAuthority, closeAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	if state.Supply != 0 {
		return solana.Signature{}, ErrMintSupplyNotZero
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, closeAuthority},
		token2022.CloseAccount(mint, dest, closeAuthority.Public().(ed25519.PublicKey)),
	)
}

// MintTo mints new supply to a token account.
func (d *Dispatcher) MintTo(payer ed25519.PrivateKey, mint, dest ed25519.PublicKey, mintAuthority ed25519.PrivateKey, amount uint64) (solana.Signature, error) {
	state, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := checkNotPaused(state); err != nil {
		return solana.Signature{}, err
	}
	if !bytes.Equal(state.MintAuthority, mintAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, mintAuthority},
		token2022.MintTo(mint, dest, mintAuthority.Public().(ed25519.PublicKey), amount),
	)
}

// TransferWithFee transfers amount against a fee bearing mint. The caller
// declares the fee it expects to be withheld; a declaration that diverges
// from the fee the extension's parameters compute is rejected before
// submission, guarding against calculation drift between client and chain.
func (d *Dispatcher) TransferWithFee(payer ed25519.PrivateKey, source, mint, dest ed25519.PublicKey, owner ed25519.PrivateKey, amount, expectedFee uint64) (solana.Signature, error) {
	mintState, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := checkTransferable(mintState); err != nil {
		return solana.Signature{}, err
	}

	data, ok := mintState.GetExtension(token2022.ExtensionTypeTransferFeeConfig)
	if !ok {
		return solana.Signature{}, ErrInvalidTransferFeeConfig
	}

	var config token2022.TransferFeeConfig
	if err := config.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}

	fee, err := CalculateTransferFee(config.NewerTransferFee, amount)
	if err != nil {
		return solana.Signature{}, err
	}
	if fee != expectedFee {
		return solana.Signature{}, ErrTransferFeeCalculationError
	}

	sourceState, err := loadAccount(d.client, source)
	if err != nil {
		return solana.Signature{}, err
	}
	if sourceState.State == token2022.AccountStateFrozen {
		return solana.Signature{}, ErrAccountFrozen
	}
	if sourceState.Amount < amount {
		return solana.Signature{}, ErrInsufficientFundsForFee
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, owner},
		token2022.TransferCheckedWithFee(source, mint, dest, owner.Public().(ed25519.PublicKey), amount, mintState.Decimals, fee),
	)
}

// Transfer moves tokens, attaching a memo when one is provided. A
// destination that requires incoming transfer memos rejects a memo-less
// transfer before submission.
func (d *Dispatcher) Transfer(payer ed25519.PrivateKey, source, mint, dest ed25519.PublicKey, owner ed25519.PrivateKey, amount uint64, transferMemo string) (solana.Signature, error) {
	mintState, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := checkTransferable(mintState); err != nil {
		return solana.Signature{}, err
	}

	destState, err := loadAccount(d.client, dest)
	if err != nil {
		return solana.Signature{}, err
	}

	if data, ok := destState.GetExtension(token2022.ExtensionTypeMemoTransfer); ok {
		var required token2022.MemoTransfer
		if err := required.Unmarshal(data); err != nil {
			return solana.Signature{}, err
		}
		if required.RequireIncomingTransferMemos && transferMemo == "" {
			return solana.Signature{}, ErrMemoRequiredForTransfer
		}
	}

	ownerPub := owner.Public().(ed25519.PublicKey)

	var instructions []solana.Instruction
	if transferMemo != "" {
		if len(transferMemo) > solana.MaxTransactionSize/2 {
			return solana.Signature{}, ErrInvalidMemo
		}
		instructions = append(instructions, memo.Instruction(transferMemo, ownerPub))
	}
	instructions = append(instructions, token2022.TransferChecked(source, mint, dest, ownerPub, amount, mintState.Decimals))

	return d.submit(payer, []ed25519.PrivateKey{payer, owner}, instructions...)
}

// WithdrawWithheldTokens collects withheld transfer fees into dest. With no
// sources, fees previously harvested to the mint itself are withdrawn;
// otherwise the listed token accounts are drained directly.
func (d *Dispatcher) WithdrawWithheldTokens(payer ed25519.PrivateKey, mint, dest ed25519.PublicKey, withdrawAuthority ed25519.PrivateKey, sources []ed25519.PublicKey) (solana.Signature, error) {
	state, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeTransferFeeConfig)
	if !ok {
		return solana.Signature{}, ErrInvalidTransferFeeConfig
	}

	var config token2022.TransferFeeConfig
	if err := config.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}

	authority := withdrawAuthority.Public().(ed25519.PublicKey)
	if !bytes.Equal(config.WithdrawWithheldAuthority, authority) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	instruction := token2022.WithdrawWithheldTokensFromMint(mint, dest, authority)
	if len(sources) > 0 {
		instruction = token2022.WithdrawWithheldTokensFromAccounts(mint, dest, authority, sources)
	}

	return d.submit(payer, []ed25519.PrivateKey{payer, withdrawAuthority}, instruction)
}

// UpdateDefaultAccountState changes the state new token accounts of the
// mint are created in. Only the freeze authority may update it.
func (d *Dispatcher) UpdateDefaultAccountState(payer ed25519.PrivateKey, mint ed25519.PublicKey, freezeAuthority ed25519.PrivateKey, state token2022.AccountState) (solana.Signature, error) {
	if state > token2022.AccountStateFrozen {
		return solana.Signature{}, ErrInvalidDefaultAccountState
	}

	mintState, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}
	if _, ok := mintState.GetExtension(token2022.ExtensionTypeDefaultAccountState); !ok {
		return solana.Signature{}, ErrInvalidExtensionType
	}
	if !bytes.Equal(mintState.FreezeAuthority, freezeAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, freezeAuthority},
		token2022.UpdateDefaultAccountState(mint, freezeAuthority.Public().(ed25519.PublicKey), state),
	)
}

func (d *Dispatcher) EnableCpiGuard(payer ed25519.PrivateKey, account ed25519.PublicKey, owner ed25519.PrivateKey) (solana.Signature, error) {
	return d.toggleAccountExtension(payer, account, owner, token2022.EnableCpiGuard)
}

func (d *Dispatcher) DisableCpiGuard(payer ed25519.PrivateKey, account ed25519.PublicKey, owner ed25519.PrivateKey) (solana.Signature, error) {
	return d.toggleAccountExtension(payer, account, owner, token2022.DisableCpiGuard)
}

func (d *Dispatcher) EnableRequiredMemoTransfers(payer ed25519.PrivateKey, account ed25519.PublicKey, owner ed25519.PrivateKey) (solana.Signature, error) {
	return d.toggleAccountExtension(payer, account, owner, token2022.EnableRequiredMemoTransfers)
}

func (d *Dispatcher) DisableRequiredMemoTransfers(payer ed25519.PrivateKey, account ed25519.PublicKey, owner ed25519.PrivateKey) (solana.Signature, error) {
	return d.toggleAccountExtension(payer, account, owner, token2022.DisableRequiredMemoTransfers)
}

// toggleAccountExtension covers the owner signed enable/disable pairs on
// token account extensions. Extension space is validated by the program
// against the account's allocation; only the owner may toggle.
func (d *Dispatcher) toggleAccountExtension(
	payer ed25519.PrivateKey,
	account ed25519.PublicKey,
	owner ed25519.PrivateKey,
	build func(account, owner ed25519.PublicKey) solana.Instruction,
) (solana.Signature, error) {
	state, err := loadAccount(d.client, account)
	if err != nil {
		return solana.Signature{}, err
	}
	if !bytes.Equal(state.Owner, owner.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, owner},
		build(account, owner.Public().(ed25519.PublicKey)),
	)
}

// UpdateInterestRate sets a new accrual rate on an interest bearing mint.
func (d *Dispatcher) UpdateInterestRate(payer ed25519.PrivateKey, mint ed25519.PublicKey, rateAuthority ed25519.PrivateKey, rate int16) (solana.Signature, error) {
	if rate < -maxFeeBasisPoints {
		return solana.Signature{}, ErrInvalidInterestRate
	}

	state, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeInterestBearingConfig)
	if !ok {
		return solana.Signature{}, ErrInvalidExtensionType
	}

	var config token2022.InterestBearingConfig
	if err := config.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}
	if config.RateAuthority == nil {
		return solana.Signature{}, ErrInterestRateUpdateNotAllowed
	}
	if !bytes.Equal(config.RateAuthority, rateAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, rateAuthority},
		token2022.UpdateInterestRate(mint, rateAuthority.Public().(ed25519.PublicKey), rate),
	)
}

// UpdateTransferHookProgram repoints the mint's transfer hook. The new
// program must exist on the ledger as an executable account.
func (d *Dispatcher) UpdateTransferHookProgram(payer ed25519.PrivateKey, mint ed25519.PublicKey, authority ed25519.PrivateKey, hookProgram ed25519.PublicKey) (solana.Signature, error) {
	state, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeTransferHook)
	if !ok {
		return solana.Signature{}, ErrInvalidExtensionType
	}

	var hook token2022.TransferHook
	if err := hook.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}
	if hook.Authority == nil || !bytes.Equal(hook.Authority, authority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	if len(hookProgram) > 0 {
		info, err := d.client.GetAccountInfo(hookProgram, solana.CommitmentConfirmed)
		if err != nil || !info.Executable {
			return solana.Signature{}, ErrTransferHookProgramNotFound
		}
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, authority},
		token2022.UpdateTransferHook(mint, authority.Public().(ed25519.PublicKey), hookProgram),
	)
}

// UpdateMetadataField sets a metadata field by its wire name ("name",
// "symbol", "uri", or a custom key).
func (d *Dispatcher) UpdateMetadataField(payer ed25519.PrivateKey, mint ed25519.PublicKey, updateAuthority ed25519.PrivateKey, key, value string) (solana.Signature, error) {
	if key == "" {
		return solana.Signature{}, ErrInvalidMetadata
	}

	metadata, err := d.loadMetadata(mint)
	if err != nil {
		return solana.Signature{}, err
	}
	if metadata.UpdateAuthority == nil || !bytes.Equal(metadata.UpdateAuthority, updateAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, updateAuthority},
		token2022.UpdateTokenMetadataField(mint, updateAuthority.Public().(ed25519.PublicKey), key, value),
	)
}

// RemoveMetadataKey deletes a custom metadata key. Reserved fields cannot
// be removed.
func (d *Dispatcher) RemoveMetadataKey(payer ed25519.PrivateKey, mint ed25519.PublicKey, updateAuthority ed25519.PrivateKey, key string) (solana.Signature, error) {
	switch key {
	case "", "name", "symbol", "uri":
		return solana.Signature{}, ErrInvalidMetadata
	}

	metadata, err := d.loadMetadata(mint)
	if err != nil {
		return solana.Signature{}, err
	}
	if metadata.UpdateAuthority == nil || !bytes.Equal(metadata.UpdateAuthority, updateAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}
	if _, ok := metadata.GetField(key); !ok {
		return solana.Signature{}, ErrMetadataFieldNotFound
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, updateAuthority},
		token2022.RemoveTokenMetadataKey(mint, updateAuthority.Public().(ed25519.PublicKey), key, false),
	)
}

// UpdateGroupMaxSize resizes a group's member bound. The bound cannot fall
// below the current occupancy.
func (d *Dispatcher) UpdateGroupMaxSize(payer ed25519.PrivateKey, group ed25519.PublicKey, updateAuthority ed25519.PrivateKey, maxSize uint64) (solana.Signature, error) {
	state, err := loadMint(d.client, group)
	if err != nil {
		return solana.Signature{}, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeTokenGroup)
	if !ok {
		return solana.Signature{}, ErrInvalidGroupConfig
	}

	var groupState token2022.TokenGroup
	if err := groupState.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}
	if groupState.UpdateAuthority == nil || !bytes.Equal(groupState.UpdateAuthority, updateAuthority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}
	if maxSize < groupState.Size {
		return solana.Signature{}, ErrInvalidGroupConfig
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, updateAuthority},
		token2022.UpdateTokenGroupMaxSize(group, updateAuthority.Public().(ed25519.PublicKey), maxSize),
	)
}

// MemberNumber resolves the member number a mint was assigned when it
// joined the provided group.
func (d *Dispatcher) MemberNumber(group, member ed25519.PublicKey) (uint64, error) {
	state, err := loadMint(d.client, member)
	if err != nil {
		return 0, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeTokenGroupMember)
	if !ok {
		return 0, ErrMemberNotFoundInGroup
	}

	var memberState token2022.TokenGroupMember
	if err := memberState.Unmarshal(data); err != nil {
		return 0, err
	}
	if !bytes.Equal(memberState.Group, group) {
		return 0, ErrMemberNotFoundInGroup
	}

	return memberState.MemberNumber, nil
}

// UpdateUiAmountMultiplier schedules a new display multiplier, effective at
// the provided unix timestamp (immediately if zero).
func (d *Dispatcher) UpdateUiAmountMultiplier(payer ed25519.PrivateKey, mint ed25519.PublicKey, authority ed25519.PrivateKey, multiplier float64, effectiveTimestamp int64) (solana.Signature, error) {
	if err := validateMultiplier(multiplier); err != nil {
		return solana.Signature{}, err
	}

	state, err := loadMint(d.client, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeScaledUiAmount)
	if !ok {
		return solana.Signature{}, ErrInvalidExtensionType
	}

	var config token2022.ScaledUiAmountConfig
	if err := config.Unmarshal(data); err != nil {
		return solana.Signature{}, err
	}
	if config.Authority == nil || !bytes.Equal(config.Authority, authority.Public().(ed25519.PublicKey)) {
		return solana.Signature{}, ErrInvalidAuthority
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, authority},
		token2022.UpdateUiAmountMultiplier(mint, authority.Public().(ed25519.PublicKey), multiplier, effectiveTimestamp),
	)
}

// PauseMint halts minting, burning and transfers on a pausable mint.
func (d *Dispatcher) PauseMint(payer ed25519.PrivateKey, mint ed25519.PublicKey, pauseAuthority ed25519.PrivateKey) (solana.Signature, error) {
	if err := d.checkPauseAuthority(mint, pauseAuthority); err != nil {
		return solana.Signature{}, err
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, pauseAuthority},
		token2022.Pause(mint, pauseAuthority.Public().(ed25519.PublicKey)),
	)
}

// ResumeMint lifts a pause.
func (d *Dispatcher) ResumeMint(payer ed25519.PrivateKey, mint ed25519.PublicKey, pauseAuthority ed25519.PrivateKey) (solana.Signature, error) {
	if err := d.checkPauseAuthority(mint, pauseAuthority); err != nil {
		return solana.Signature{}, err
	}

	return d.submit(payer,
		[]ed25519.PrivateKey{payer, pauseAuthority},
		token2022.Resume(mint, pauseAuthority.Public().(ed25519.PublicKey)),
	)
}

func (d *Dispatcher) checkPauseAuthority(mint ed25519.PublicKey, pauseAuthority ed25519.PrivateKey) error {
	state, err := loadMint(d.client, mint)
	if err != nil {
		return err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypePausable)
	if !ok {
		return ErrInvalidExtensionType
	}

	var config token2022.PausableConfig
	if err := config.Unmarshal(data); err != nil {
		return err
	}
	if config.Authority == nil || !bytes.Equal(config.Authority, pauseAuthority.Public().(ed25519.PublicKey)) {
		return ErrInvalidAuthority
	}

	return nil
}

func (d *Dispatcher) loadMetadata(mint ed25519.PublicKey) (*token2022.TokenMetadata, error) {
	state, err := loadMint(d.client, mint)
	if err != nil {
		return nil, err
	}

	data, ok := state.GetExtension(token2022.ExtensionTypeTokenMetadata)
	if !ok {
		return nil, ErrInvalidMetadata
	}

	var metadata token2022.TokenMetadata
	if err := metadata.Unmarshal(data); err != nil {
		return nil, err
	}

	return &metadata, nil
}

func (d *Dispatcher) submit(payer ed25519.PrivateKey, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	txn := solana.NewTransaction(payer.Public().(ed25519.PublicKey), instructions...)

	blockhash, err := d.client.GetLatestBlockhash()
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	if err := txn.Sign(signers...); err != nil {
		return solana.Signature{}, err
	}

	sig, err := d.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return sig, translateError(err)
	}

	return sig, nil
}

func checkNotPaused(mint *token2022.Mint) error {
	data, ok := mint.GetExtension(token2022.ExtensionTypePausable)
	if !ok {
		return nil
	}

	var config token2022.PausableConfig
	if err := config.Unmarshal(data); err != nil {
		return err
	}
	if config.Paused {
		return ErrMintPaused
	}

	return nil
}

func checkTransferable(mint *token2022.Mint) error {
	if _, ok := mint.GetExtension(token2022.ExtensionTypeNonTransferable); ok {
		return ErrNonTransferableToken
	}
	return checkNotPaused(mint)
}

func loadMint(client solana.Client, key ed25519.PublicKey) (*token2022.Mint, error) {
	info, err := client.GetAccountInfo(key, solana.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load mint")
	}
	if !bytes.Equal(info.Owner, token2022.ProgramKey) {
		return nil, errors.New("account is not owned by the token program")
	}

	var mint token2022.Mint
	if err := mint.Unmarshal(info.Data); err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, errors.New("mint is not initialized")
	}

	return &mint, nil
}

func loadAccount(client solana.Client, key ed25519.PublicKey) (*token2022.Account, error) {
	info, err := client.GetAccountInfo(key, solana.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load token account")
	}
	if !bytes.Equal(info.Owner, token2022.ProgramKey) {
		return nil, errors.New("account is not owned by the token program")
	}

	var account token2022.Account
	if err := account.Unmarshal(info.Data); err != nil {
		return nil, err
	}
	if account.State == token2022.AccountStateUninitialized {
		return nil, errors.New("token account is not initialized")
	}

	return &account, nil
}
