// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ncnrouter implements the second-tier reward router: it skims
// the operator fee and splits the remainder across vaults proportional
// to their stake weight within one NCN fee group.
package ncnrouter

import (
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Router is the per-(NCN, epoch, operator, ncn_fee_group) reward router.
type Router struct {
	Epoch            uint64
	Operator         pubkey.Key
	OperatorFeeBps   uint64
	RewardPool       uint64
	RewardsProcessed uint64
	OperatorRewards  uint64
	vaultRoutes      map[pubkey.Key]uint64
	totalCredited    uint64
}

// New creates a Router for one (operator, ncn_fee_group) pair.
func New(epoch uint64, operator pubkey.Key, operatorFeeBps uint64) *Router {
	return &Router{
		Epoch:          epoch,
		Operator:       operator,
		OperatorFeeBps: operatorFeeBps,
		vaultRoutes:    make(map[pubkey.Key]uint64),
	}
}

// Deposit records lamports newly credited from the base router.
func (r *Router) Deposit(lamports uint64) {
	r.RewardPool += lamports
	r.totalCredited += lamports
}

// VaultStake describes one vault's stake weight under this router's
// fee group, for route_ncn's proportional split.
type VaultStake struct {
	Vault       pubkey.Key
	StakeWeight amount.U128
}

// RouteNcn processes every lamport currently in reward_pool: first the
// operator fee, then a proportional split across vaults, with any
// flooring remainder credited back to the operator as residual
// claimant.
func (r *Router) RouteNcn(vaults []VaultStake, totalVaultStakeWeight amount.U128) error {
	pool := r.RewardPool
	if pool == 0 {
		return nil
	}
	moved := uint64(0)

	opCut, err := amount.ApplyBps(pool, r.OperatorFeeBps)
	if err != nil {
		return err
	}
	r.OperatorRewards += opCut
	pool -= opCut
	moved += opCut

	distributed := uint64(0)
	for _, v := range vaults {
		if v.StakeWeight.IsZero() {
			continue
		}
		share, err := amount.Share(pool, v.StakeWeight, totalVaultStakeWeight)
		if err != nil {
			return err
		}
		if share == 0 {
			continue
		}
		r.vaultRoutes[v.Vault] += share
		distributed += share
	}
	moved += distributed

	residual := pool - distributed
	r.OperatorRewards += residual
	moved += residual

	r.RewardPool -= moved
	r.RewardsProcessed += moved
	return nil
}

// VaultReward returns the amount routed to vault.
func (r *Router) VaultReward(vault pubkey.Key) uint64 { return r.vaultRoutes[vault] }

// DistributeOperatorRewards drains OperatorRewards to zero, decrementing
// RewardsProcessed by the same amount so it reaches zero only once every
// routed reward has actually been paid out (the precondition
// close_epoch_account checks), and returning the amount to transfer to
// the operator account. Fails with NoRewards if the balance is already
// zero.
func (r *Router) DistributeOperatorRewards() (uint64, error) {
	if r.OperatorRewards == 0 {
		return 0, tiprerr.New(tiprerr.ErrNoRewards)
	}
	amt := r.OperatorRewards
	r.OperatorRewards = 0
	r.RewardsProcessed -= amt
	return amt, nil
}

// DistributeVaultRewardRoute drains vaultRoutes[vault] to zero,
// decrementing RewardsProcessed by the same amount, and returning the
// amount to transfer to that vault's account.
func (r *Router) DistributeVaultRewardRoute(vault pubkey.Key) (uint64, error) {
	amt := r.vaultRoutes[vault]
	if amt == 0 {
		return 0, tiprerr.New(tiprerr.ErrNoRewards)
	}
	r.vaultRoutes[vault] = 0
	r.RewardsProcessed -= amt
	return amt, nil
}

// TotalCredited returns the lamports ever deposited into this router.
func (r *Router) TotalCredited() uint64 { return r.totalCredited }
