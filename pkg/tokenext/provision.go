package tokenext

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-extensions/pkg/solana"
	"github.com/code-payments/token-extensions/pkg/solana/system"
	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

// Provisioner allocates new token program owned accounts sized and funded
// for a plan.
type Provisioner struct {
	log    *logrus.Entry
	client solana.Client
}

func NewProvisioner(client solana.Client) *Provisioner {
	return &Provisioner{
		log:    logrus.StandardLogger().WithField("type", "tokenext/provisioner"),
		client: client,
	}
}

// ProvisionInstruction builds the system create for the new account: exact
// allocation at the plan's size, funded for rent exemption at the plan's
// funded size. The new account must sign.
func (p *Provisioner) ProvisionInstruction(payer, address ed25519.PublicKey, plan *Plan) (solana.Instruction, error) {
	lamports, err := p.client.GetMinimumBalanceForRentExemption(uint64(plan.FundedSize()))
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to get minimum balance for rent exemption")
	}

	return system.CreateAccount(
		payer,
		address,
		token2022.ProgramKey,
		lamports,
		uint64(plan.AllocationSize()),
	), nil
}
