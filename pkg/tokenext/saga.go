package tokenext

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/system"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// Creation is atomic within one submission, but a caller that provisioned
// an account in an earlier submission and never completed initialization is
// left holding a funded allocation the ledger will not reclaim on its own.
// Reclaim is the cleanup path for that gap.
//
// Three cases:
//   - the account was never created: nothing to do, ErrNoAccountInfo.
//   - the funds landed but ownership never moved to the token program: the
//     lamports are swept back with a system transfer signed by the account.
//   - the token program owns the allocation and the base record was never
//     initialized: the program has no close path for uninitialized data, so
//     the lamports are unrecoverable and the failure is surfaced as such.
//
// Initialized accounts are out of scope here; they are closed through
// CloseMint with the recorded close authority.
func (d *Dispatcher) Reclaim(payer ed25519.PrivateKey, account ed25519.PrivateKey, dest ed25519.PublicKey) (solana.Signature, error) {
	address := account.Public().(ed25519.PublicKey)

	log := d.log.WithFields(logrus.Fields{
		"method":  "Reclaim",
		"account": base58.Encode(address),
	})

	info, err := d.client.GetAccountInfo(address, solana.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, err
	}

	if bytes.Equal(info.Owner, system.SystemAccount) {
		log.WithField("lamports", info.Lamports).Debug("sweeping system owned allocation")
		return d.submit(payer,
			[]ed25519.PrivateKey{payer, account},
			system.Transfer(address, dest, info.Lamports),
		)
	}

	if !bytes.Equal(info.Owner, token2022.ProgramKey) {
		return solana.Signature{}, ErrUnrecoverableAllocation
	}

	var mint token2022.Mint
	if err := mint.Unmarshal(info.Data); err == nil && mint.IsInitialized {
		return solana.Signature{}, errors.New("mint is initialized; close it through CloseMint")
	}

	var tokenAccount token2022.Account
	if err := tokenAccount.Unmarshal(info.Data); err == nil && tokenAccount.State != token2022.AccountStateUninitialized {
		return solana.Signature{}, errors.New("token account is initialized; close it with its owner")
	}

	log.Debug("allocation is program owned and uninitialized")
	return solana.Signature{}, ErrUnrecoverableAllocation
}
