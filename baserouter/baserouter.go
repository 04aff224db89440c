// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package baserouter implements the first-tier reward router: it skims
// the block-engine fee, splits the active base fee groups, and then
// splits each NCN fee group across operators by stake weight.
package baserouter

import (
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Router is the per-(NCN, epoch) base reward router.
type Router struct {
	Epoch               uint64
	Fees                feeschedule.Fees
	RewardPool          uint64
	RewardsProcessed    uint64
	BaseFeeGroupRewards [feegroup.BaseFeeGroupCount]uint64
	operatorGroupRoutes map[pubkey.Key]*[feegroup.NcnFeeGroupCount]uint64
	totalCredited       uint64
	// routed is the part of RewardPool that earlier RouteBase calls have
	// already processed: the floor-rounding residual they left behind.
	routed uint64
}

// New creates a Router for the given frozen fee schedule.
func New(epoch uint64, fees feeschedule.Fees) *Router {
	return &Router{
		Epoch:               epoch,
		Fees:                fees,
		operatorGroupRoutes: make(map[pubkey.Key]*[feegroup.NcnFeeGroupCount]uint64),
	}
}

func (r *Router) routesFor(operator pubkey.Key) *[feegroup.NcnFeeGroupCount]uint64 {
	routes, ok := r.operatorGroupRoutes[operator]
	if !ok {
		routes = &[feegroup.NcnFeeGroupCount]uint64{}
		r.operatorGroupRoutes[operator] = routes
	}
	return routes
}

// NcnFeeGroupReward returns the amount routed to operator under group.
func (r *Router) NcnFeeGroupReward(operator pubkey.Key, group feegroup.NcnFeeGroup) uint64 {
	routes, ok := r.operatorGroupRoutes[operator]
	if !ok {
		return 0
	}
	return routes[group.Index()]
}

// Deposit records lamports newly credited to the router's receiver
// account (incoming balance minus rent reserve and accumulators is the
// only newly routable delta).
func (r *Router) Deposit(lamports uint64) {
	r.RewardPool += lamports
	r.totalCredited += lamports
}

// OperatorStake describes one operator's aggregate stake weight for
// route_base's per-NCN-fee-group split.
type OperatorStake struct {
	Operator    pubkey.Key
	StakeWeight amount.U128
}

// RouteBase processes the lamports in reward_pool that no earlier call
// has processed through the three routing phases, leaving any
// floor-rounding residual in reward_pool. It may be called repeatedly;
// each call processes only what Deposit has added since the previous
// call, and residual retained by earlier calls is not routed again.
func (r *Router) RouteBase(operators []OperatorStake, totalStakeWeight amount.U128) error {
	pool := r.RewardPool - r.routed
	if pool == 0 {
		return nil
	}
	moved := uint64(0)

	// Phase 1: block engine fee.
	blockEngine, err := amount.ApplyBps(pool, r.Fees.BlockEngineFeeBps)
	if err != nil {
		return err
	}
	pool -= blockEngine
	moved += blockEngine

	// Phase 2: base fee groups. Only group 0 (DAO) is active; the rest
	// are reserved and receive zero by construction.
	for _, g := range feegroup.AllBaseFeeGroups() {
		if !g.Active() {
			continue
		}
		bps := r.Fees.DaoFeeBps
		cut, err := amount.ApplyBps(pool, bps)
		if err != nil {
			return err
		}
		r.BaseFeeGroupRewards[g.Index()] += cut
		pool -= cut
		moved += cut
	}

	// Phase 3: per-operator, per-NCN-fee-group routes.
	for _, g := range feegroup.AllNcnFeeGroups() {
		bps := r.Fees.NcnFeeBps[g.Index()]
		if bps == 0 {
			continue
		}
		groupCut, err := amount.ApplyBps(pool, bps)
		if err != nil {
			return err
		}
		if groupCut == 0 {
			continue
		}

		distributed := uint64(0)
		for _, op := range operators {
			perOp, err := amount.Share(groupCut, op.StakeWeight, totalStakeWeight)
			if err != nil {
				return err
			}
			if perOp == 0 {
				continue
			}
			routes := r.routesFor(op.Operator)
			routes[g.Index()] += perOp
			distributed += perOp
		}
		// Only the amount actually distributed leaves the pool; any
		// flooring residual (group_cut - distributed) stays in
		// reward_pool rather than vanishing.
		pool -= distributed
		moved += distributed
	}

	r.RewardPool = r.routed + pool
	r.routed = r.RewardPool
	r.RewardsProcessed += moved
	return nil
}

// TotalCredited returns the lamports ever deposited into this router,
// used to check the conservation invariant RewardPool + RewardsProcessed
// == TotalCredited, which holds until a Distribute* call pays a routed
// amount out and lowers RewardsProcessed.
func (r *Router) TotalCredited() uint64 { return r.totalCredited }

// DistributeBaseFeeGroupRewards drains BaseFeeGroupRewards[g] to zero,
// decrementing RewardsProcessed by the same amount so it reaches zero
// only once every routed reward has actually been paid out (the
// precondition close_epoch_account checks), and returning the amount to
// transfer to the fee wallet. Fails with NoRewards if the balance is
// already zero.
func (r *Router) DistributeBaseFeeGroupRewards(g feegroup.BaseFeeGroup) (uint64, error) {
	amt := r.BaseFeeGroupRewards[g.Index()]
	if amt == 0 {
		return 0, tiprerr.New(tiprerr.ErrNoRewards)
	}
	r.BaseFeeGroupRewards[g.Index()] = 0
	r.RewardsProcessed -= amt
	return amt, nil
}

// DistributeBaseNcnRewardRoute drains operatorGroupRoutes[op][group] to
// zero, decrementing RewardsProcessed by the same amount, and returning
// the amount to transfer to the NcnRewardReceiver(op, group) account.
func (r *Router) DistributeBaseNcnRewardRoute(operator pubkey.Key, group feegroup.NcnFeeGroup) (uint64, error) {
	routes, ok := r.operatorGroupRoutes[operator]
	if !ok || routes[group.Index()] == 0 {
		return 0, tiprerr.New(tiprerr.ErrNoRewards)
	}
	amt := routes[group.Index()]
	routes[group.Index()] = 0
	r.RewardsProcessed -= amt
	return amt, nil
}
