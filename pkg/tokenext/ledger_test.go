package tokenext

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/memo"
	"github.com/code-payments/token-extensions/pkg/solana/system"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// fakeLedger implements solana.Client against in-memory account state. It
// interprets the system, memo and token program instructions the library
// emits, enforcing the same ordering, sizing and authority rules the
// programs do, and surfaces failures as instruction errors carrying the
// token program's custom error codes. Submissions are atomic: a failed
// instruction rolls back the whole transaction.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[string]*ledgerAccount
}

const lamportsPerByte = 10

func rentFor(size int) uint64 {
	return uint64(size) * lamportsPerByte
}

type ledgerAccount struct {
	lamports   uint64
	owner      ed25519.PublicKey
	size       int
	executable bool

	mint  *token2022.Mint
	token *token2022.Account
}

func (a *ledgerAccount) data() []byte {
	var data []byte
	switch {
	case a.mint != nil:
		data = a.mint.Marshal()
	case a.token != nil:
		data = a.token.Marshal()
	}

	if len(data) < a.size {
		padded := make([]byte, a.size)
		copy(padded, data)
		data = padded
	}
	return data
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: make(map[string]*ledgerAccount),
	}
}

func (l *fakeLedger) fund(account ed25519.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts[string(account)] = &ledgerAccount{
		lamports: lamports,
		owner:    system.SystemAccount,
	}
}

func (l *fakeLedger) registerProgram(program ed25519.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts[string(program)] = &ledgerAccount{
		lamports:   1,
		owner:      system.SystemAccount,
		executable: true,
	}
}

func (l *fakeLedger) mint(t *testing.T, key ed25519.PublicKey) *token2022.Mint {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[string(key)]
	require.True(t, ok)
	require.NotNil(t, a.mint)
	return cloneMint(a.mint)
}

func (l *fakeLedger) tokenAccount(t *testing.T, key ed25519.PublicKey) *token2022.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[string(key)]
	require.True(t, ok)
	require.NotNil(t, a.token)
	return cloneTokenAccount(a.token)
}

func (l *fakeLedger) GetAccountInfo(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[string(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	return solana.AccountInfo{
		Data:       a.data(),
		Owner:      a.owner,
		Lamports:   a.lamports,
		Executable: a.executable,
	}, nil
}

func (l *fakeLedger) GetBalance(account ed25519.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[string(account)]
	if !ok {
		return 0, solana.ErrNoBalance
	}
	return a.lamports, nil
}

func (l *fakeLedger) GetLatestBlockhash() (solana.Blockhash, error) {
	var bh solana.Blockhash
	bh[0] = 1
	return bh, nil
}

func (l *fakeLedger) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return rentFor(int(size)), nil
}

func (l *fakeLedger) GetSignatureStatus(solana.Signature, solana.Commitment) (*solana.SignatureStatus, error) {
	return &solana.SignatureStatus{ConfirmationStatus: "confirmed"}, nil
}

func (l *fakeLedger) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i := range statuses {
		statuses[i] = &solana.SignatureStatus{ConfirmationStatus: "confirmed"}
	}
	return statuses, nil
}

func (l *fakeLedger) RequestAirdrop(account ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	l.fund(account, lamports)

	var sig solana.Signature
	_, _ = rand.Read(sig[:])
	return sig, nil
}

func (l *fakeLedger) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := l.snapshot()

	var memoSeen bool
	for i := range txn.Message.Instructions {
		if err := l.execute(txn, i, &memoSeen); err != nil {
			l.accounts = snapshot
			return txn.Signatures[0], &solana.InstructionError{
				Index: i,
				Err:   err,
			}
		}
	}

	return txn.Signatures[0], nil
}

func (l *fakeLedger) snapshot() map[string]*ledgerAccount {
	snapshot := make(map[string]*ledgerAccount, len(l.accounts))
	for k, v := range l.accounts {
		c := *v
		c.mint = cloneMint(v.mint)
		c.token = cloneTokenAccount(v.token)
		snapshot[k] = &c
	}
	return snapshot
}

func cloneMint(m *token2022.Mint) *token2022.Mint {
	if m == nil {
		return nil
	}
	c := *m
	c.Extensions = cloneExtensions(m.Extensions)
	return &c
}

func cloneTokenAccount(a *token2022.Account) *token2022.Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Extensions = cloneExtensions(a.Extensions)
	return &c
}

func cloneExtensions(extensions []token2022.Extension) []token2022.Extension {
	cloned := make([]token2022.Extension, 0, len(extensions))
	for _, e := range extensions {
		cloned = append(cloned, token2022.Extension{
			Type: e.Type,
			Data: append([]byte(nil), e.Data...),
		})
	}
	return cloned
}

func (l *fakeLedger) execute(txn solana.Transaction, index int, memoSeen *bool) error {
	ci := txn.Message.Instructions[index]
	program := txn.Message.Accounts[ci.ProgramIndex]

	switch {
	case bytes.Equal(program, system.ProgramKey[:]):
		return l.executeSystem(txn, ci)
	case bytes.Equal(program, memo.ProgramKey):
		*memoSeen = true
		return nil
	case bytes.Equal(program, token2022.ProgramKey):
		return l.executeToken(txn, ci, *memoSeen)
	default:
		return errors.Errorf("unknown program: %v", program)
	}
}

func (l *fakeLedger) keyAt(txn solana.Transaction, ci solana.CompiledInstruction, i int) ed25519.PublicKey {
	return txn.Message.Accounts[ci.Accounts[i]]
}

func (l *fakeLedger) accountAt(txn solana.Transaction, ci solana.CompiledInstruction, i int) *ledgerAccount {
	return l.accounts[string(l.keyAt(txn, ci, i))]
}

func (l *fakeLedger) signedAt(txn solana.Transaction, ci solana.CompiledInstruction, i int) bool {
	accountIndex := int(ci.Accounts[i])
	if accountIndex >= int(txn.Message.Header.NumSignatures) {
		return false
	}
	return txn.Signatures[accountIndex] != (solana.Signature{})
}

func (l *fakeLedger) executeSystem(txn solana.Transaction, ci solana.CompiledInstruction) error {
	switch binary.LittleEndian.Uint32(ci.Data) {
	case 0: // create account
		if !l.signedAt(txn, ci, 0) || !l.signedAt(txn, ci, 1) {
			return errors.New(string(solana.InstructionErrorMissingRequiredSignature))
		}

		funder := l.accountAt(txn, ci, 0)
		if funder == nil {
			return errors.New(string(solana.InstructionErrorAccountDataTooSmall))
		}

		lamports := binary.LittleEndian.Uint64(ci.Data[4:])
		size := binary.LittleEndian.Uint64(ci.Data[12:])
		owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(owner, ci.Data[20:])

		if existing := l.accountAt(txn, ci, 1); existing != nil {
			return errors.New(string(solana.TransactionErrorAccountInUse))
		}
		if funder.lamports < lamports {
			return errors.New(string(solana.InstructionErrorInsufficientFunds))
		}

		funder.lamports -= lamports
		l.accounts[string(l.keyAt(txn, ci, 1))] = &ledgerAccount{
			lamports: lamports,
			owner:    owner,
			size:     int(size),
		}
		return nil

	case 2: // transfer
		if !l.signedAt(txn, ci, 0) {
			return errors.New(string(solana.InstructionErrorMissingRequiredSignature))
		}

		from := l.accountAt(txn, ci, 0)
		lamports := binary.LittleEndian.Uint64(ci.Data[4:])
		if from == nil || from.lamports < lamports {
			return errors.New(string(solana.InstructionErrorInsufficientFunds))
		}

		to := l.accountAt(txn, ci, 1)
		if to == nil {
			to = &ledgerAccount{owner: system.SystemAccount}
			l.accounts[string(l.keyAt(txn, ci, 1))] = to
		}

		from.lamports -= lamports
		to.lamports += lamports
		return nil

	default:
		return errors.New(string(solana.InstructionErrorInvalidInstructionData))
	}
}

func (l *fakeLedger) executeToken(txn solana.Transaction, ci solana.CompiledInstruction, memoSeen bool) error {
	if len(ci.Data) >= 8 {
		if handled, err := l.executeTokenInterface(txn, ci); handled {
			return err
		}
	}

	switch token2022.Command(ci.Data[0]) {
	case token2022.CommandInitializeMint2:
		return l.initializeMint(txn, ci)
	case token2022.CommandInitializeAccount3:
		return l.initializeAccount(txn, ci)
	case token2022.CommandMintTo:
		return l.mintTo(txn, ci)
	case token2022.CommandTransferChecked:
		return l.transfer(txn, ci, memoSeen, nil)
	case token2022.CommandCloseAccount:
		return l.closeAccount(txn, ci)

	case token2022.CommandInitializeMintCloseAuthority:
		var offset = 1
		closeAuthority := readOptionalKey(ci.Data, &offset)
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeMintCloseAuthority,
			(&token2022.MintCloseAuthority{CloseAuthority: closeAuthority}).Marshal())

	case token2022.CommandInitializeNonTransferableMint:
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeNonTransferable, nil)

	case token2022.CommandInitializePermanentDelegate:
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypePermanentDelegate,
			(&token2022.PermanentDelegate{Delegate: readKey(ci.Data, 1)}).Marshal())

	case token2022.CommandInitializeImmutableOwner:
		return l.writeAccountExtension(txn, ci, token2022.ExtensionTypeImmutableOwner, nil)

	case token2022.CommandTransferFeeExtension:
		return l.executeTransferFee(txn, ci, memoSeen)
	case token2022.CommandDefaultAccountStateExtension:
		return l.executeDefaultAccountState(txn, ci)
	case token2022.CommandMemoTransferExtension:
		return l.toggleMemoTransfer(txn, ci)
	case token2022.CommandCpiGuardExtension:
		return l.toggleCpiGuard(txn, ci)
	case token2022.CommandInterestBearingMintExtension:
		return l.executeInterestBearing(txn, ci)
	case token2022.CommandTransferHookExtension:
		return l.executeTransferHook(txn, ci)
	case token2022.CommandMetadataPointerExtension:
		return l.executePointer(txn, ci, token2022.ExtensionTypeMetadataPointer)
	case token2022.CommandGroupPointerExtension:
		return l.executePointer(txn, ci, token2022.ExtensionTypeGroupPointer)
	case token2022.CommandGroupMemberPointerExtension:
		return l.executePointer(txn, ci, token2022.ExtensionTypeGroupMemberPointer)
	case token2022.CommandScaledUiAmountExtension:
		return l.executeScaledUiAmount(txn, ci)
	case token2022.CommandPausableExtension:
		return l.executePausable(txn, ci)

	default:
		return token2022.ErrorInvalidInstruction
	}
}

// writeMintExtension appends a TLV entry to an uninitialized mint, enforcing
// the allocation bound the program enforces.
func (l *fakeLedger) writeMintExtension(txn solana.Transaction, ci solana.CompiledInstruction, t token2022.ExtensionType, data []byte) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil || !bytes.Equal(a.owner, token2022.ProgramKey) {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if a.mint == nil {
		a.mint = &token2022.Mint{}
	}
	if a.mint.IsInitialized || a.token != nil {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if _, ok := a.mint.GetExtension(t); ok {
		return token2022.ErrorExtensionAlreadyInitialized
	}
	if data == nil {
		data = []byte{}
	}

	a.mint.SetExtension(t, data)
	if len(a.mint.Marshal()) > a.size {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	return nil
}

func (l *fakeLedger) writeAccountExtension(txn solana.Transaction, ci solana.CompiledInstruction, t token2022.ExtensionType, data []byte) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil || !bytes.Equal(a.owner, token2022.ProgramKey) {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if a.token == nil {
		a.token = &token2022.Account{}
	}
	if a.token.State != token2022.AccountStateUninitialized || a.mint != nil {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if _, ok := a.token.GetExtension(t); ok {
		return token2022.ErrorExtensionAlreadyInitialized
	}
	if data == nil {
		data = []byte{}
	}

	a.token.SetExtension(t, data)
	if len(a.token.Marshal()) > a.size {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	return nil
}

func (l *fakeLedger) initializeMint(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil || !bytes.Equal(a.owner, token2022.ProgramKey) {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if a.mint == nil {
		a.mint = &token2022.Mint{}
	}
	if a.mint.IsInitialized || a.token != nil {
		return token2022.ErrorAlreadyInUse
	}
	if a.lamports < rentFor(a.size) {
		return token2022.ErrorNotRentExempt
	}

	// The allocation must exactly match a valid length for the extensions
	// written so far. Post-base payloads are written through realloc, so
	// they never factor in here.
	written := make([]token2022.ExtensionType, 0, len(a.mint.Extensions))
	for _, e := range a.mint.Extensions {
		written = append(written, e.Type)
	}
	expected, err := token2022.CalculateAccountLen(token2022.AccountTypeMint, written)
	if err != nil || expected != a.size {
		return token2022.ErrorInvalidLengthForAlloc
	}

	a.mint.Decimals = ci.Data[1]
	a.mint.MintAuthority = readKey(ci.Data, 2)
	offset := 34
	a.mint.FreezeAuthority = readOptionalKey(ci.Data, &offset)
	a.mint.IsInitialized = true
	return nil
}

func (l *fakeLedger) initializeAccount(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil || !bytes.Equal(a.owner, token2022.ProgramKey) {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if a.token == nil {
		a.token = &token2022.Account{}
	}
	if a.token.State != token2022.AccountStateUninitialized || a.mint != nil {
		return token2022.ErrorAlreadyInUse
	}
	if a.lamports < rentFor(a.size) {
		return token2022.ErrorNotRentExempt
	}

	mintAccount := l.accountAt(txn, ci, 1)
	if mintAccount == nil || mintAccount.mint == nil || !mintAccount.mint.IsInitialized {
		return token2022.ErrorInvalidMint
	}
	mint := mintAccount.mint

	a.token.Mint = l.keyAt(txn, ci, 1)
	a.token.Owner = readKey(ci.Data, 1)
	a.token.State = token2022.AccountStateInitialized

	if data, ok := mint.GetExtension(token2022.ExtensionTypeDefaultAccountState); ok {
		var defaultState token2022.DefaultAccountState
		if err := defaultState.Unmarshal(data); err == nil && defaultState.State == token2022.AccountStateFrozen {
			a.token.State = token2022.AccountStateFrozen
		}
	}

	for _, t := range token2022.RequiredAccountExtensions(mint) {
		if _, ok := a.token.GetExtension(t); ok {
			continue
		}
		length, err := token2022.TypeLen(t)
		if err != nil {
			return token2022.ErrorInvalidState
		}
		a.token.SetExtension(t, make([]byte, length))
	}

	// The allocation must match a valid account length for the written
	// extensions, optionally leaving room for the owner toggled ones.
	written := make([]token2022.ExtensionType, 0, len(a.token.Extensions))
	for _, e := range a.token.Extensions {
		written = append(written, e.Type)
	}

	for _, extra := range [][]token2022.ExtensionType{
		nil,
		{token2022.ExtensionTypeMemoTransfer},
		{token2022.ExtensionTypeCpiGuard},
		{token2022.ExtensionTypeMemoTransfer, token2022.ExtensionTypeCpiGuard},
	} {
		combined := append(append([]token2022.ExtensionType{}, written...), extra...)
		expected, err := token2022.CalculateAccountLen(token2022.AccountTypeAccount, combined)
		if err == nil && expected == a.size {
			return nil
		}
	}
	return token2022.ErrorInvalidLengthForAlloc
}

func (l *fakeLedger) mintTo(txn solana.Transaction, ci solana.CompiledInstruction) error {
	mintAccount := l.accountAt(txn, ci, 0)
	if mintAccount == nil || mintAccount.mint == nil || !mintAccount.mint.IsInitialized {
		return token2022.ErrorInvalidMint
	}
	mint := mintAccount.mint

	if paused(mint) {
		return token2022.ErrorInvalidState
	}
	if !l.signedAt(txn, ci, 2) {
		return errors.New(string(solana.InstructionErrorMissingRequiredSignature))
	}
	if !bytes.Equal(mint.MintAuthority, l.keyAt(txn, ci, 2)) {
		return token2022.ErrorOwnerMismatch
	}

	dest := l.accountAt(txn, ci, 1)
	if dest == nil || dest.token == nil || dest.token.State == token2022.AccountStateUninitialized {
		return token2022.ErrorUninitializedState
	}
	if !bytes.Equal(dest.token.Mint, l.keyAt(txn, ci, 0)) {
		return token2022.ErrorMintMismatch
	}
	if dest.token.State == token2022.AccountStateFrozen {
		return token2022.ErrorAccountFrozen
	}

	amount := binary.LittleEndian.Uint64(ci.Data[1:])
	mint.Supply += amount
	dest.token.Amount += amount
	return nil
}

// transfer covers TransferChecked directly and the movement half of
// TransferCheckedWithFee, which passes its declared fee through.
func (l *fakeLedger) transfer(txn solana.Transaction, ci solana.CompiledInstruction, memoSeen bool, declaredFee *uint64) error {
	source := l.accountAt(txn, ci, 0)
	mintAccount := l.accountAt(txn, ci, 1)
	dest := l.accountAt(txn, ci, 2)

	if mintAccount == nil || mintAccount.mint == nil || !mintAccount.mint.IsInitialized {
		return token2022.ErrorInvalidMint
	}
	mint := mintAccount.mint

	if source == nil || source.token == nil || source.token.State == token2022.AccountStateUninitialized ||
		dest == nil || dest.token == nil || dest.token.State == token2022.AccountStateUninitialized {
		return token2022.ErrorUninitializedState
	}

	var amount uint64
	var decimals uint8
	if declaredFee != nil {
		amount = binary.LittleEndian.Uint64(ci.Data[2:])
		decimals = ci.Data[10]
	} else {
		amount = binary.LittleEndian.Uint64(ci.Data[1:])
		decimals = ci.Data[9]
	}

	if decimals != mint.Decimals {
		return token2022.ErrorMintDecimalsMismatch
	}
	if !bytes.Equal(source.token.Mint, l.keyAt(txn, ci, 1)) || !bytes.Equal(dest.token.Mint, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorMintMismatch
	}
	if _, ok := mint.GetExtension(token2022.ExtensionTypeNonTransferable); ok {
		return token2022.ErrorNonTransferable
	}
	if paused(mint) {
		return token2022.ErrorInvalidState
	}
	if source.token.State == token2022.AccountStateFrozen || dest.token.State == token2022.AccountStateFrozen {
		return token2022.ErrorAccountFrozen
	}
	if !l.signedAt(txn, ci, 3) {
		return errors.New(string(solana.InstructionErrorMissingRequiredSignature))
	}
	if !bytes.Equal(source.token.Owner, l.keyAt(txn, ci, 3)) {
		return token2022.ErrorOwnerMismatch
	}

	if data, ok := dest.token.GetExtension(token2022.ExtensionTypeMemoTransfer); ok {
		var required token2022.MemoTransfer
		if err := required.Unmarshal(data); err == nil && required.RequireIncomingTransferMemos && !memoSeen {
			return token2022.ErrorNoMemo
		}
	}

	if source.token.Amount < amount {
		return token2022.ErrorInsufficientFunds
	}

	var fee uint64
	if data, ok := mint.GetExtension(token2022.ExtensionTypeTransferFeeConfig); ok {
		var config token2022.TransferFeeConfig
		if err := config.Unmarshal(data); err != nil {
			return token2022.ErrorInvalidState
		}

		computed, err := CalculateTransferFee(config.NewerTransferFee, amount)
		if err != nil {
			return token2022.ErrorFeeParametersMismatch
		}
		if declaredFee != nil && *declaredFee != computed {
			return token2022.ErrorFeeMismatch
		}
		fee = computed
	} else if declaredFee != nil && *declaredFee != 0 {
		return token2022.ErrorFeeMismatch
	}

	source.token.Amount -= amount
	dest.token.Amount += amount - fee

	if fee > 0 {
		var withheld token2022.TransferFeeAmount
		if data, ok := dest.token.GetExtension(token2022.ExtensionTypeTransferFeeAmount); ok {
			if err := withheld.Unmarshal(data); err != nil {
				return token2022.ErrorInvalidState
			}
		}
		withheld.WithheldAmount += fee
		dest.token.SetExtension(token2022.ExtensionTypeTransferFeeAmount, withheld.Marshal())
	}
	return nil
}

func (l *fakeLedger) closeAccount(txn solana.Transaction, ci solana.CompiledInstruction) error {
	a := l.accountAt(txn, ci, 0)
	if a == nil {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	if !l.signedAt(txn, ci, 2) {
		return errors.New(string(solana.InstructionErrorMissingRequiredSignature))
	}
	authority := l.keyAt(txn, ci, 2)

	switch {
	case a.mint != nil && a.mint.IsInitialized:
		data, ok := a.mint.GetExtension(token2022.ExtensionTypeMintCloseAuthority)
		if !ok {
			return token2022.ErrorNoAuthorityExists
		}
		var closeAuthority token2022.MintCloseAuthority
		if err := closeAuthority.Unmarshal(data); err != nil {
			return token2022.ErrorInvalidState
		}
		if closeAuthority.CloseAuthority == nil || !bytes.Equal(closeAuthority.CloseAuthority, authority) {
			return token2022.ErrorOwnerMismatch
		}
		if a.mint.Supply != 0 {
			return token2022.ErrorMintHasSupply
		}

	case a.token != nil && a.token.State != token2022.AccountStateUninitialized:
		expected := a.token.Owner
		if a.token.CloseAuthority != nil {
			expected = a.token.CloseAuthority
		}
		if !bytes.Equal(expected, authority) {
			return token2022.ErrorOwnerMismatch
		}
		if a.token.Amount != 0 {
			return token2022.ErrorNonNativeHasBalance
		}

	default:
		return token2022.ErrorUninitializedState
	}

	dest := l.accountAt(txn, ci, 1)
	if dest == nil {
		dest = &ledgerAccount{owner: system.SystemAccount}
		l.accounts[string(l.keyAt(txn, ci, 1))] = dest
	}
	dest.lamports += a.lamports
	delete(l.accounts, string(l.keyAt(txn, ci, 0)))
	return nil
}

func (l *fakeLedger) executeTransferFee(txn solana.Transaction, ci solana.CompiledInstruction, memoSeen bool) error {
	switch ci.Data[1] {
	case token2022.SubCommandInitialize:
		offset := 2
		configAuthority := readOptionalKey(ci.Data, &offset)
		withdrawAuthority := readOptionalKey(ci.Data, &offset)
		basisPoints := binary.LittleEndian.Uint16(ci.Data[offset:])
		maximumFee := binary.LittleEndian.Uint64(ci.Data[offset+2:])

		if basisPoints > maxFeeBasisPoints {
			return token2022.ErrorTransferFeeExceedsMaximum
		}

		fee := token2022.TransferFee{MaximumFee: maximumFee, TransferFeeBasisPoints: basisPoints}
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeTransferFeeConfig, (&token2022.TransferFeeConfig{
			TransferFeeConfigAuthority: configAuthority,
			WithdrawWithheldAuthority:  withdrawAuthority,
			OlderTransferFee:           fee,
			NewerTransferFee:           fee,
		}).Marshal())

	case token2022.SubCommandTransferFeeTransferCheckedWithFee:
		declaredFee := binary.LittleEndian.Uint64(ci.Data[11:])
		return l.transfer(txn, ci, memoSeen, &declaredFee)

	case token2022.SubCommandTransferFeeWithdrawWithheldTokensFromMint:
		mint, config, err := l.feeConfigAt(txn, ci, 0)
		if err != nil {
			return err
		}
		if err := l.checkWithdrawAuthority(txn, ci, 2, config); err != nil {
			return err
		}

		dest := l.accountAt(txn, ci, 1)
		if dest == nil || dest.token == nil || dest.token.State == token2022.AccountStateUninitialized {
			return token2022.ErrorUninitializedState
		}

		dest.token.Amount += config.WithheldAmount
		config.WithheldAmount = 0
		mint.SetExtension(token2022.ExtensionTypeTransferFeeConfig, config.Marshal())
		return nil

	case token2022.SubCommandTransferFeeWithdrawWithheldTokensFromAccts:
		_, config, err := l.feeConfigAt(txn, ci, 0)
		if err != nil {
			return err
		}
		if err := l.checkWithdrawAuthority(txn, ci, 2, config); err != nil {
			return err
		}

		dest := l.accountAt(txn, ci, 1)
		if dest == nil || dest.token == nil || dest.token.State == token2022.AccountStateUninitialized {
			return token2022.ErrorUninitializedState
		}

		for i := 3; i < len(ci.Accounts); i++ {
			source := l.accountAt(txn, ci, i)
			if source == nil || source.token == nil {
				return token2022.ErrorUninitializedState
			}
			data, ok := source.token.GetExtension(token2022.ExtensionTypeTransferFeeAmount)
			if !ok {
				return token2022.ErrorExtensionNotFoundInAccount
			}

			var withheld token2022.TransferFeeAmount
			if err := withheld.Unmarshal(data); err != nil {
				return token2022.ErrorInvalidState
			}
			dest.token.Amount += withheld.WithheldAmount
			source.token.SetExtension(token2022.ExtensionTypeTransferFeeAmount, (&token2022.TransferFeeAmount{}).Marshal())
		}
		return nil

	case token2022.SubCommandTransferFeeHarvestWithheldTokensToMint:
		mint, config, err := l.feeConfigAt(txn, ci, 0)
		if err != nil {
			return err
		}

		for i := 1; i < len(ci.Accounts); i++ {
			source := l.accountAt(txn, ci, i)
			if source == nil || source.token == nil {
				return token2022.ErrorUninitializedState
			}
			data, ok := source.token.GetExtension(token2022.ExtensionTypeTransferFeeAmount)
			if !ok {
				return token2022.ErrorExtensionNotFoundInAccount
			}

			var withheld token2022.TransferFeeAmount
			if err := withheld.Unmarshal(data); err != nil {
				return token2022.ErrorInvalidState
			}
			config.WithheldAmount += withheld.WithheldAmount
			source.token.SetExtension(token2022.ExtensionTypeTransferFeeAmount, (&token2022.TransferFeeAmount{}).Marshal())
		}
		mint.SetExtension(token2022.ExtensionTypeTransferFeeConfig, config.Marshal())
		return nil

	case token2022.SubCommandTransferFeeSetTransferFee:
		mint, config, err := l.feeConfigAt(txn, ci, 0)
		if err != nil {
			return err
		}
		if config.TransferFeeConfigAuthority == nil {
			return token2022.ErrorNoAuthorityExists
		}
		if !l.signedAt(txn, ci, 1) || !bytes.Equal(config.TransferFeeConfigAuthority, l.keyAt(txn, ci, 1)) {
			return token2022.ErrorOwnerMismatch
		}

		basisPoints := binary.LittleEndian.Uint16(ci.Data[2:])
		if basisPoints > maxFeeBasisPoints {
			return token2022.ErrorTransferFeeExceedsMaximum
		}

		config.NewerTransferFee = token2022.TransferFee{
			MaximumFee:             binary.LittleEndian.Uint64(ci.Data[4:]),
			TransferFeeBasisPoints: basisPoints,
		}
		mint.SetExtension(token2022.ExtensionTypeTransferFeeConfig, config.Marshal())
		return nil

	default:
		return token2022.ErrorInvalidInstruction
	}
}

func (l *fakeLedger) feeConfigAt(txn solana.Transaction, ci solana.CompiledInstruction, i int) (*token2022.Mint, *token2022.TransferFeeConfig, error) {
	a := l.accountAt(txn, ci, i)
	if a == nil || a.mint == nil || !a.mint.IsInitialized {
		return nil, nil, token2022.ErrorInvalidMint
	}

	data, ok := a.mint.GetExtension(token2022.ExtensionTypeTransferFeeConfig)
	if !ok {
		return nil, nil, token2022.ErrorExtensionNotFoundInAccount
	}

	var config token2022.TransferFeeConfig
	if err := config.Unmarshal(data); err != nil {
		return nil, nil, token2022.ErrorInvalidState
	}
	return a.mint, &config, nil
}

func (l *fakeLedger) checkWithdrawAuthority(txn solana.Transaction, ci solana.CompiledInstruction, i int, config *token2022.TransferFeeConfig) error {
	if config.WithdrawWithheldAuthority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, i) || !bytes.Equal(config.WithdrawWithheldAuthority, l.keyAt(txn, ci, i)) {
		return token2022.ErrorOwnerMismatch
	}
	return nil
}

func (l *fakeLedger) executeDefaultAccountState(txn solana.Transaction, ci solana.CompiledInstruction) error {
	state := token2022.AccountState(ci.Data[2])
	if state > token2022.AccountStateFrozen {
		return token2022.ErrorInvalidState
	}

	if ci.Data[1] == token2022.SubCommandInitialize {
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeDefaultAccountState,
			(&token2022.DefaultAccountState{State: state}).Marshal())
	}

	mint, err := l.initializedMintAt(txn, ci, 0)
	if err != nil {
		return err
	}
	if _, ok := mint.GetExtension(token2022.ExtensionTypeDefaultAccountState); !ok {
		return token2022.ErrorExtensionNotFoundInAccount
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(mint.FreezeAuthority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}

	mint.SetExtension(token2022.ExtensionTypeDefaultAccountState, (&token2022.DefaultAccountState{State: state}).Marshal())
	return nil
}

// toggleMemoTransfer and toggleCpiGuard write into pre-allocated slack; the
// allocation bound is enforced the same way as any other extension write.
func (l *fakeLedger) toggleMemoTransfer(txn solana.Transaction, ci solana.CompiledInstruction) error {
	account, err := l.ownedTokenAccountAt(txn, ci)
	if err != nil {
		return err
	}

	account.token.SetExtension(token2022.ExtensionTypeMemoTransfer, (&token2022.MemoTransfer{
		RequireIncomingTransferMemos: ci.Data[1] == token2022.SubCommandMemoTransferEnable,
	}).Marshal())
	if len(account.token.Marshal()) > account.size {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	return nil
}

func (l *fakeLedger) toggleCpiGuard(txn solana.Transaction, ci solana.CompiledInstruction) error {
	account, err := l.ownedTokenAccountAt(txn, ci)
	if err != nil {
		return err
	}

	account.token.SetExtension(token2022.ExtensionTypeCpiGuard, (&token2022.CpiGuard{
		LockCpi: ci.Data[1] == token2022.SubCommandCpiGuardEnable,
	}).Marshal())
	if len(account.token.Marshal()) > account.size {
		return errors.New(string(solana.InstructionErrorInvalidAccountData))
	}
	return nil
}

func (l *fakeLedger) ownedTokenAccountAt(txn solana.Transaction, ci solana.CompiledInstruction) (*ledgerAccount, error) {
	a := l.accountAt(txn, ci, 0)
	if a == nil || a.token == nil || a.token.State == token2022.AccountStateUninitialized {
		return nil, token2022.ErrorUninitializedState
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(a.token.Owner, l.keyAt(txn, ci, 1)) {
		return nil, token2022.ErrorOwnerMismatch
	}
	return a, nil
}

func (l *fakeLedger) executeInterestBearing(txn solana.Transaction, ci solana.CompiledInstruction) error {
	if ci.Data[1] == token2022.SubCommandInitialize {
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeInterestBearingConfig,
			(&token2022.InterestBearingConfig{
				RateAuthority: readNonZeroKey(ci.Data, 2),
				CurrentRate:   int16(binary.LittleEndian.Uint16(ci.Data[34:])),
			}).Marshal())
	}

	mint, err := l.initializedMintAt(txn, ci, 0)
	if err != nil {
		return err
	}
	data, ok := mint.GetExtension(token2022.ExtensionTypeInterestBearingConfig)
	if !ok {
		return token2022.ErrorExtensionNotFoundInAccount
	}

	var config token2022.InterestBearingConfig
	if err := config.Unmarshal(data); err != nil {
		return token2022.ErrorInvalidState
	}
	if config.RateAuthority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(config.RateAuthority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}

	config.PreUpdateAverageRate = config.CurrentRate
	config.CurrentRate = int16(binary.LittleEndian.Uint16(ci.Data[2:]))
	mint.SetExtension(token2022.ExtensionTypeInterestBearingConfig, config.Marshal())
	return nil
}

func (l *fakeLedger) executeTransferHook(txn solana.Transaction, ci solana.CompiledInstruction) error {
	if ci.Data[1] == token2022.SubCommandInitialize {
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeTransferHook,
			(&token2022.TransferHook{
				Authority: readNonZeroKey(ci.Data, 2),
				ProgramId: readNonZeroKey(ci.Data, 34),
			}).Marshal())
	}

	mint, err := l.initializedMintAt(txn, ci, 0)
	if err != nil {
		return err
	}
	data, ok := mint.GetExtension(token2022.ExtensionTypeTransferHook)
	if !ok {
		return token2022.ErrorExtensionNotFoundInAccount
	}

	var hook token2022.TransferHook
	if err := hook.Unmarshal(data); err != nil {
		return token2022.ErrorInvalidState
	}
	if hook.Authority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(hook.Authority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}

	hook.ProgramId = readNonZeroKey(ci.Data, 2)
	mint.SetExtension(token2022.ExtensionTypeTransferHook, hook.Marshal())
	return nil
}

// executePointer covers the metadata, group and group member pointers, which
// share a layout.
func (l *fakeLedger) executePointer(txn solana.Transaction, ci solana.CompiledInstruction, t token2022.ExtensionType) error {
	if ci.Data[1] == token2022.SubCommandInitialize {
		return l.writeMintExtension(txn, ci, t, (&token2022.MetadataPointer{
			Authority:       readNonZeroKey(ci.Data, 2),
			MetadataAddress: readNonZeroKey(ci.Data, 34),
		}).Marshal())
	}

	mint, err := l.initializedMintAt(txn, ci, 0)
	if err != nil {
		return err
	}
	data, ok := mint.GetExtension(t)
	if !ok {
		return token2022.ErrorExtensionNotFoundInAccount
	}

	var pointer token2022.MetadataPointer
	if err := pointer.Unmarshal(data); err != nil {
		return token2022.ErrorInvalidState
	}
	if pointer.Authority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(pointer.Authority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}

	pointer.MetadataAddress = readNonZeroKey(ci.Data, 2)
	mint.SetExtension(t, pointer.Marshal())
	return nil
}

func (l *fakeLedger) executeScaledUiAmount(txn solana.Transaction, ci solana.CompiledInstruction) error {
	if ci.Data[1] == token2022.SubCommandInitialize {
		multiplier := math.Float64frombits(binary.LittleEndian.Uint64(ci.Data[34:]))
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypeScaledUiAmount,
			(&token2022.ScaledUiAmountConfig{
				Authority:     readNonZeroKey(ci.Data, 2),
				Multiplier:    multiplier,
				NewMultiplier: multiplier,
			}).Marshal())
	}

	mint, err := l.initializedMintAt(txn, ci, 0)
	if err != nil {
		return err
	}
	data, ok := mint.GetExtension(token2022.ExtensionTypeScaledUiAmount)
	if !ok {
		return token2022.ErrorExtensionNotFoundInAccount
	}

	var config token2022.ScaledUiAmountConfig
	if err := config.Unmarshal(data); err != nil {
		return token2022.ErrorInvalidState
	}
	if config.Authority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(config.Authority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}

	config.NewMultiplier = math.Float64frombits(binary.LittleEndian.Uint64(ci.Data[2:]))
	config.NewMultiplierEffectiveTimestamp = int64(binary.LittleEndian.Uint64(ci.Data[10:]))
	if config.NewMultiplierEffectiveTimestamp == 0 {
		config.Multiplier = config.NewMultiplier
	}
	mint.SetExtension(token2022.ExtensionTypeScaledUiAmount, config.Marshal())
	return nil
}

func (l *fakeLedger) executePausable(txn solana.Transaction, ci solana.CompiledInstruction) error {
	if ci.Data[1] == token2022.SubCommandInitialize {
		return l.writeMintExtension(txn, ci, token2022.ExtensionTypePausable,
			(&token2022.PausableConfig{Authority: readNonZeroKey(ci.Data, 2)}).Marshal())
	}

	mint, err := l.initializedMintAt(txn, ci, 0)
	if err != nil {
		return err
	}
	data, ok := mint.GetExtension(token2022.ExtensionTypePausable)
	if !ok {
		return token2022.ErrorExtensionNotFoundInAccount
	}

	var config token2022.PausableConfig
	if err := config.Unmarshal(data); err != nil {
		return token2022.ErrorInvalidState
	}
	if config.Authority == nil {
		return token2022.ErrorNoAuthorityExists
	}
	if !l.signedAt(txn, ci, 1) || !bytes.Equal(config.Authority, l.keyAt(txn, ci, 1)) {
		return token2022.ErrorOwnerMismatch
	}

	config.Paused = ci.Data[1] == token2022.SubCommandPausablePause
	mint.SetExtension(token2022.ExtensionTypePausable, config.Marshal())
	return nil
}

func (l *fakeLedger) initializedMintAt(txn solana.Transaction, ci solana.CompiledInstruction, i int) (*token2022.Mint, error) {
	a := l.accountAt(txn, ci, i)
	if a == nil || a.mint == nil || !a.mint.IsInitialized {
		return nil, token2022.ErrorInvalidMint
	}
	return a.mint, nil
}

func paused(mint *token2022.Mint) bool {
	data, ok := mint.GetExtension(token2022.ExtensionTypePausable)
	if !ok {
		return false
	}

	var config token2022.PausableConfig
	if err := config.Unmarshal(data); err != nil {
		return false
	}
	return config.Paused
}

func readKey(data []byte, offset int) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, data[offset:])
	return key
}

func readNonZeroKey(data []byte, offset int) ed25519.PublicKey {
	key := readKey(data, offset)
	if bytes.Equal(key, make([]byte, ed25519.PublicKeySize)) {
		return nil
	}
	return key
}

func readOptionalKey(data []byte, offset *int) ed25519.PublicKey {
	if data[*offset] == 0 {
		*offset++
		return nil
	}
	*offset++

	key := readKey(data, *offset)
	*offset += ed25519.PublicKeySize
	return key
}
