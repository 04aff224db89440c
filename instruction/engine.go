// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package instruction implements the stable opcode table and an Engine
// that dispatches each opcode to the component package that owns its
// semantics, threading every per-(NCN, epoch) account through one
// instruction processor the way a real runtime would sequence them
// across one NCN's lifetime.
package instruction

import (
	"github.com/ncn-labs/tip-router-core/accountpayer"
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/ballotbox"
	"github.com/ncn-labs/tip-router-core/baserouter"
	"github.com/ncn-labs/tip-router-core/epochstate"
	"github.com/ncn-labs/tip-router-core/external"
	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/merkleproof"
	"github.com/ncn-labs/tip-router-core/ncnconfig"
	"github.com/ncn-labs/tip-router-core/ncnrouter"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/snapshot"
	"github.com/ncn-labs/tip-router-core/tiprerr"
	"github.com/ncn-labs/tip-router-core/vaultregistry"
	"github.com/ncn-labs/tip-router-core/weighttable"
)

// DefaultMaxFeedStaleSlots bounds how many slots old a switchboard feed
// reading may be before set_weight_from_feed rejects it with StaleFeed.
// Roughly one minute of slots; overridable per Engine.
const DefaultMaxFeedStaleSlots = 150

// ncnRouterKey addresses one (operator, ncn_fee_group) NCN reward router.
type ncnRouterKey struct {
	operator pubkey.Key
	group    uint8
}

// epochRecord holds every per-(NCN, epoch) account the Engine tracks,
// keyed by the epoch number the way pdaddr's seed tables key real PDAs.
type epochRecord struct {
	state       *epochstate.State
	weightTable *weighttable.Table
	snapshot    *snapshot.EpochSnapshot
	ballot      *ballotbox.BallotBox
	baseRouter  *baserouter.Router
	ncnRouters  map[ncnRouterKey]*ncnrouter.Router
	operatorIdx map[pubkey.Key]int
	nextOpIdx   int
	ncnRouted   map[ncnRouterKey]bool // base router has distributed into this (op, group) at least once
}

// Engine wires every component package into one per-NCN instruction
// processor, dispatching opcodes the way the host runtime would sequence
// them across one NCN's lifetime. It holds no
// network or storage code itself: callers persist its state through
// ledgerstore (or any other backing store) between calls.
type Engine struct {
	NCN    pubkey.Key
	Config *ncnconfig.Config
	Vaults *vaultregistry.Registry
	Payer  *accountpayer.Payer

	Restaking external.RestakingReader
	Delegs    external.VaultReader
	Feed      external.PriceFeedReader
	StakePool external.StakePoolDeposit

	MaxFeedStaleSlots uint64

	epochs map[uint64]*epochRecord
}

// NewEngine constructs an Engine for one NCN. Config and Vaults are
// initialized via InitializeConfig/InitializeVaultRegistry before any
// epoch-scoped instruction can run.
func NewEngine(ncn pubkey.Key, restaking external.RestakingReader, delegs external.VaultReader, feed external.PriceFeedReader, stakePool external.StakePoolDeposit) *Engine {
	return &Engine{
		NCN:               ncn,
		Restaking:         restaking,
		Delegs:            delegs,
		Feed:              feed,
		StakePool:         stakePool,
		MaxFeedStaleSlots: DefaultMaxFeedStaleSlots,
		epochs:            make(map[uint64]*epochRecord),
	}
}

func (e *Engine) epoch(epoch uint64) (*epochRecord, error) {
	rec, ok := e.epochs[epoch]
	if !ok {
		return nil, tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return rec, nil
}

// EpochState returns the per-epoch gate for epoch, so callers can persist
// it (e.g. via epochstate.State.Bytes) between instruction calls the same
// way they already persist Config.
func (e *Engine) EpochState(epoch uint64) (*epochstate.State, error) {
	rec, err := e.epoch(epoch)
	if err != nil {
		return nil, err
	}
	return rec.state, nil
}

// ---------------------------------------------------------------------
// Global: config and registry (OpInitializeConfig, OpInitializeVaultRegistry,
// OpRegisterVault, and the Admin family).
// ---------------------------------------------------------------------

// InitializeConfig implements OpInitializeConfig.
func (e *Engine) InitializeConfig(tieBreakerAdmin, feeAdmin pubkey.Key, startingValidEpoch, epochsBeforeStall, epochsAfterConsensusBeforeClose, validSlotsAfterConsensus uint64, initialFees feeschedule.Fees) error {
	cfg, err := ncnconfig.New(e.NCN, tieBreakerAdmin, feeAdmin, startingValidEpoch, epochsBeforeStall, epochsAfterConsensusBeforeClose, validSlotsAfterConsensus, initialFees)
	if err != nil {
		return err
	}
	e.Config = cfg
	e.Payer = accountpayer.New(e.NCN)
	return nil
}

// InitializeVaultRegistry implements OpInitializeVaultRegistry.
func (e *Engine) InitializeVaultRegistry() error {
	e.Vaults = vaultregistry.New(e.NCN)
	return nil
}

// AdminRegisterStMint implements OpAdminRegisterStMint.
func (e *Engine) AdminRegisterStMint(mint pubkey.Key, group feegroup.NcnFeeGroup, rewardMultiplierBps uint64, switchboardFeed *pubkey.Key, noFeedWeight *uint64) error {
	return e.Vaults.RegisterStMint(mint, group, rewardMultiplierBps, switchboardFeed, noFeedWeight)
}

// AdminSetStMint implements OpAdminSetStMint.
func (e *Engine) AdminSetStMint(mint pubkey.Key, group *feegroup.NcnFeeGroup, rewardMultiplierBps *uint64, switchboardFeed *pubkey.Key) error {
	return e.Vaults.SetStMint(mint, group, rewardMultiplierBps, switchboardFeed)
}

// RegisterVault implements OpRegisterVault.
func (e *Engine) RegisterVault(mint pubkey.Key, vaultIndex uint64) error {
	return e.Vaults.RegisterVault(mint, vaultIndex)
}

// AdminSetParameters implements OpAdminSetParameters.
func (e *Engine) AdminSetParameters(epochsBeforeStall, epochsAfterConsensusBeforeClose, validSlotsAfterConsensus, startingValidEpoch *uint64) error {
	return e.Config.SetParameters(epochsBeforeStall, epochsAfterConsensusBeforeClose, validSlotsAfterConsensus, startingValidEpoch)
}

// AdminSetNewAdmin implements OpAdminSetNewAdmin.
func (e *Engine) AdminSetNewAdmin(newTieBreakerAdmin, newFeeAdmin *pubkey.Key) {
	e.Config.SetNewAdmin(newTieBreakerAdmin, newFeeAdmin)
}

// ReallocVaultRegistry implements OpReallocVaultRegistry. Account growth
// is the host runtime's concern; with the registry held fully in memory
// the call only checks the registry exists.
func (e *Engine) ReallocVaultRegistry() error {
	if e.Vaults == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return nil
}

// ReallocEpochState implements OpReallocEpochState: the epoch state slot
// must already be open.
func (e *Engine) ReallocEpochState(epoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.state.Status(epochstate.SlotEpochState) != epochstate.StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return nil
}

// ReallocWeightTable implements OpReallocWeightTable: the weight table
// slot must already be open.
func (e *Engine) ReallocWeightTable(epoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.state.Status(epochstate.SlotWeightTable) != epochstate.StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return nil
}

// ReallocOperatorSnapshot implements OpReallocOperatorSnapshot: the
// operator's snapshot slot must already be open.
func (e *Engine) ReallocOperatorSnapshot(epoch uint64, operator pubkey.Key) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	idx, ok := rec.operatorIdx[operator]
	if !ok {
		return tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	if rec.state.OperatorSnapshotStatus(idx) != epochstate.StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return nil
}

// ReallocBallotBox implements OpReallocBallotBox: the ballot box slot
// must already be open.
func (e *Engine) ReallocBallotBox(epoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.state.Status(epochstate.SlotBallotBox) != epochstate.StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return nil
}

// AdminSetWeight implements OpAdminSetWeight.
func (e *Engine) AdminSetWeight(epoch uint64, mint pubkey.Key, weight uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.weightTable == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	if err := rec.weightTable.AdminSetWeight(mint, weight); err != nil {
		return err
	}
	rec.state.AdvanceProgress(epochstate.ProgressSetWeight, 0)
	return nil
}

// AdminSetTieBreaker implements OpAdminSetTieBreaker.
func (e *Engine) AdminSetTieBreaker(epoch uint64, chosenRoot [32]byte, currentEpoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.ballot == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return rec.ballot.TieBreak(ballotbox.Ballot{Root: chosenRoot}, currentEpoch, e.Config.EpochsBeforeStall)
}

// ---------------------------------------------------------------------
// Epoch setup (OpInitializeEpochState, OpInitializeWeightTable,
// OpSwitchboardSetWeight).
// ---------------------------------------------------------------------

// InitializeEpochState implements OpInitializeEpochState.
func (e *Engine) InitializeEpochState(epoch uint64) error {
	if _, exists := e.epochs[epoch]; exists {
		return tiprerr.New(tiprerr.ErrAccountAlreadyInitialized)
	}
	state := epochstate.New(epoch)
	if err := state.OpenEpochState(); err != nil {
		return err
	}
	e.epochs[epoch] = &epochRecord{
		state:       state,
		ncnRouters:  make(map[ncnRouterKey]*ncnrouter.Router),
		operatorIdx: make(map[pubkey.Key]int),
		ncnRouted:   make(map[ncnRouterKey]bool),
	}
	return nil
}

// InitializeWeightTable implements OpInitializeWeightTable.
func (e *Engine) InitializeWeightTable(epoch, currentEpoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if err := rec.state.OpenWeightTable(currentEpoch, e.Config.StartingValidEpoch); err != nil {
		return err
	}
	rec.weightTable = weighttable.New(epoch, e.Vaults)
	rec.state.AdvanceProgress(epochstate.ProgressSetWeight, uint64(len(e.Vaults.StMintEntries())))
	return nil
}

// SwitchboardSetWeight implements OpSwitchboardSetWeight: reads the
// registry's feed configuration for mint and installs a weight from
// either the switchboard feed or the registry's static fallback.
func (e *Engine) SwitchboardSetWeight(epoch uint64, mint pubkey.Key, currentSlot uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.weightTable == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	entry, err := e.Vaults.GetStMint(mint)
	if err != nil {
		return err
	}
	if entry.HasSwitchboardFeed {
		reading, err := e.Feed.Read(entry.SwitchboardFeed)
		if err != nil {
			return err
		}
		staleSlots := uint64(0)
		if currentSlot > reading.SlotStamp {
			staleSlots = currentSlot - reading.SlotStamp
		}
		if err := rec.weightTable.SetWeightFromFeed(mint, reading.Value, reading.Decimals, staleSlots, e.MaxFeedStaleSlots); err != nil {
			return err
		}
		rec.state.AdvanceProgress(epochstate.ProgressSetWeight, 0)
		return nil
	}
	if entry.HasNoFeedWeight {
		if err := rec.weightTable.SetNoFeedWeight(mint, entry.NoFeedWeight); err != nil {
			return err
		}
		rec.state.AdvanceProgress(epochstate.ProgressSetWeight, 0)
		return nil
	}
	return tiprerr.New(tiprerr.ErrNoFeedWeightOrSwitchboardFeed)
}

// ---------------------------------------------------------------------
// Snapshot (OpInitializeEpochSnapshot, OpInitializeOperatorSnapshot,
// OpSnapshotVaultOperatorDelegation).
// ---------------------------------------------------------------------

// InitializeEpochSnapshot implements OpInitializeEpochSnapshot.
func (e *Engine) InitializeEpochSnapshot(epoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.weightTable == nil {
		return tiprerr.New(tiprerr.ErrWeightTableNotFinalized)
	}
	if err := rec.state.OpenEpochSnapshot(rec.weightTable.Finalized()); err != nil {
		return err
	}
	opCount, err := e.Restaking.NcnOperatorCount(e.NCN)
	if err != nil {
		return err
	}
	rec.snapshot = snapshot.New(epoch, opCount, e.Vaults.VaultCount(), e.Config.FeeConfig.CurrentFees(epoch))
	rec.state.AdvanceProgress(epochstate.ProgressEpochSnapshot, uint64(opCount))
	return nil
}

// InitializeOperatorSnapshot implements OpInitializeOperatorSnapshot.
func (e *Engine) InitializeOperatorSnapshot(epoch uint64, operator pubkey.Key, currentSlot uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}

	if rec.snapshot == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	if _, ok := rec.operatorIdx[operator]; ok {
		return tiprerr.New(tiprerr.ErrAccountAlreadyInitialized)
	}
	if rec.nextOpIdx >= rec.snapshot.OperatorCount {
		return tiprerr.New(tiprerr.ErrListFull)
	}

	optIn, err := e.Restaking.OperatorOptIn(e.NCN, operator, currentSlot)
	if err != nil {
		return err
	}
	feeBps, err := e.Restaking.OperatorFeeBps(operator)
	if err != nil {
		return err
	}

	idx := rec.nextOpIdx
	if err := rec.state.OpenOperatorSnapshot(idx); err != nil {
		return err
	}
	opSnap := snapshot.NewOperatorSnapshot(operator, feeBps, optIn.Active(), e.Vaults.VaultCount())
	if err := rec.snapshot.RegisterOperator(opSnap); err != nil {
		return err
	}
	rec.operatorIdx[operator] = idx
	rec.nextOpIdx++
	rec.state.AdvanceProgress(epochstate.ProgressEpochSnapshot, 0)
	return nil
}

// SnapshotVaultOperatorDelegation implements OpSnapshotVaultOperatorDelegation.
func (e *Engine) SnapshotVaultOperatorDelegation(epoch uint64, operator, vault pubkey.Key) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	idx, ok := rec.operatorIdx[operator]
	if !ok {
		return tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	if rec.state.OperatorSnapshotStatus(idx) != epochstate.StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}

	opSnap, err := rec.snapshot.Operator(operator)
	if err != nil {
		return err
	}
	deleg, err := e.Delegs.Delegation(vault, operator)
	if err != nil {
		return err
	}
	entry, err := e.Vaults.GetStMint(deleg.StMint)
	if err != nil {
		return err
	}
	vaultIndex, err := e.vaultIndexForMint(deleg.StMint)
	if err != nil {
		return err
	}

	d, err := opSnap.RecordDelegation(vault, entry.Mint, vaultIndex, deleg.Delegation, e.Vaults, rec.weightTable)
	if err != nil {
		return err
	}
	return rec.snapshot.NoteDelegationRegistered(operator, d.StakeWeight)
}

// vaultIndexForMint resolves the vault_index the registry bound to
// stMint via RegisterVault. A vault's own address is never stored in the
// registry, only its mint and index.
func (e *Engine) vaultIndexForMint(stMint pubkey.Key) (uint64, error) {
	for _, v := range e.Vaults.VaultEntries() {
		if v.Mint == stMint {
			return v.VaultIndex, nil
		}
	}
	return 0, tiprerr.New(tiprerr.ErrMintEntryNotFound)
}

// ---------------------------------------------------------------------
// Vote (OpInitializeBallotBox, OpCastVote, OpSetMerkleRoot).
// ---------------------------------------------------------------------

// InitializeBallotBox implements OpInitializeBallotBox.
func (e *Engine) InitializeBallotBox(epoch uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.snapshot == nil {
		return tiprerr.New(tiprerr.ErrEpochSnapshotNotFinalized)
	}
	if err := rec.state.OpenBallotBox(rec.snapshot.Finalized()); err != nil {
		return err
	}
	rec.ballot = ballotbox.New(e.NCN, epoch)
	rec.state.AdvanceProgress(epochstate.ProgressVoting, uint64(rec.snapshot.OperatorCount))
	return nil
}

// CastVote implements OpCastVote.
func (e *Engine) CastVote(epoch uint64, operator pubkey.Key, root [32]byte, currentSlot uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.snapshot == nil || rec.ballot == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	if err := rec.state.RequireCastVoteOpen(rec.snapshot.Finalized()); err != nil {
		return err
	}
	opSnap, err := rec.snapshot.Operator(operator)
	if err != nil {
		return err
	}
	if !opSnap.IsActive {
		return tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	if err := rec.ballot.CastVote(operator, ballotbox.Ballot{Root: root}, opSnap.StakeWeightSum, currentSlot, e.Config.ValidSlotsAfterConsensus); err != nil {
		return err
	}
	hadWinner := rec.ballot.HasWinningBallot()
	rec.ballot.TallyVotes(rec.snapshot.TotalStakeWeight, currentSlot)
	rec.state.AdvanceProgress(epochstate.ProgressVoting, 0)
	if !hadWinner && rec.ballot.HasWinningBallot() {
		log.Infof("ncn %s epoch %d: consensus reached on root %x at slot %d", e.NCN, epoch, rec.ballot.WinningBallot.Ballot.Root, currentSlot)
	}
	return nil
}

// SetMerkleRoot implements OpSetMerkleRoot: verifies a per-validator root
// against the ballot box's winning meta-merkle root and, on success,
// uploads it via target.
func (e *Engine) SetMerkleRoot(epoch uint64, validator pubkey.Key, proof [][32]byte, merkleRoot [32]byte, maxTotalClaim, maxNumNodes uint64, target external.DistributionTarget) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.ballot == nil || !rec.ballot.HasWinningBallot() {
		return tiprerr.New(tiprerr.ErrConsensusNotReached)
	}
	leaf := merkleproof.Leaf{
		ValidatorTipDistributionAccount: validator,
		ValidatorMerkleRoot:             merkleRoot,
		MaxTotalClaim:                   maxTotalClaim,
		MaxNumNodes:                     maxNumNodes,
	}
	if !merkleproof.Verify(proof, leaf, rec.ballot.WinningBallot.Ballot.Root) {
		return tiprerr.New(tiprerr.ErrInvalidMerkleProof)
	}
	rec.state.AdvanceProgress(epochstate.ProgressValidation, 0)
	if err := target.UploadRoot(validator, merkleRoot, maxTotalClaim, maxNumNodes); err != nil {
		return err
	}
	rec.state.AdvanceProgress(epochstate.ProgressUpload, 0)
	return nil
}

// ---------------------------------------------------------------------
// Route/distribute (the base router's initialization is folded into the
// first RouteBase call; OpRouteBase, OpDistributeBaseFeeGroupRewards,
// OpDistributeBaseNcnRewardRoute, OpRouteNcn,
// OpDistributeOperatorRewards, OpDistributeVaultRewardRoute).
// ---------------------------------------------------------------------

func (e *Engine) ensureBaseRouter(rec *epochRecord, epoch uint64) error {
	if rec.baseRouter != nil {
		return nil
	}
	if rec.ballot == nil {
		return tiprerr.New(tiprerr.ErrConsensusNotReached)
	}
	if err := rec.state.OpenBaseRewardRouter(rec.ballot.HasWinningBallot()); err != nil {
		return err
	}
	rec.baseRouter = baserouter.New(epoch, rec.snapshot.FeeSchedule)
	return nil
}

// RouteBase implements OpRouteBase. newLamports is the incremental inflow
// observed on the BaseRewardReceiver account since the last call: the
// receiver balance minus its rent reserve and the current accumulators.
func (e *Engine) RouteBase(epoch uint64, newLamports uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if err := e.ensureBaseRouter(rec, epoch); err != nil {
		return err
	}
	if err := rec.state.RequireRouteBaseOpen(); err != nil {
		return err
	}

	operators := make([]baserouter.OperatorStake, 0, len(rec.snapshot.Operators()))
	for _, op := range rec.snapshot.Operators() {
		operators = append(operators, baserouter.OperatorStake{Operator: op.Operator, StakeWeight: op.StakeWeightSum})
	}

	rec.baseRouter.Deposit(newLamports)
	if err := rec.baseRouter.RouteBase(operators, rec.snapshot.TotalStakeWeight); err != nil {
		return err
	}
	rec.state.AdvanceProgress(epochstate.ProgressBaseDistribution, 0)
	log.Debugf("ncn %s epoch %d: routed %d newly credited lamports through the base router", e.NCN, epoch, newLamports)
	return nil
}

// DistributeBaseFeeGroupRewards implements OpDistributeBaseFeeGroupRewards,
// draining the group's routed lamports and depositing them into the fee
// wallet through the stake pool's Deposit.
func (e *Engine) DistributeBaseFeeGroupRewards(epoch uint64, group feegroup.BaseFeeGroup) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.baseRouter == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	amt, err := rec.baseRouter.DistributeBaseFeeGroupRewards(group)
	if err != nil {
		return err
	}
	return e.StakePool.Deposit(rec.snapshot.FeeSchedule.FeeWallet, amt)
}

// DistributeBaseNcnRewardRoute implements OpDistributeBaseNcnRewardRoute,
// draining the base router's per-(operator, group) route into that
// NCN router's reward pool.
func (e *Engine) DistributeBaseNcnRewardRoute(epoch uint64, operator pubkey.Key, group feegroup.NcnFeeGroup) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	if rec.baseRouter == nil {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	amt, err := rec.baseRouter.DistributeBaseNcnRewardRoute(operator, group)
	if err != nil {
		return err
	}
	router, err := e.ensureNcnRouter(rec, epoch, operator, group)
	if err != nil {
		return err
	}
	router.Deposit(amt)
	rec.ncnRouted[ncnRouterKey{operator: operator, group: group.Index()}] = true
	return nil
}

func (e *Engine) ensureNcnRouter(rec *epochRecord, epoch uint64, operator pubkey.Key, group feegroup.NcnFeeGroup) (*ncnrouter.Router, error) {
	key := ncnRouterKey{operator: operator, group: group.Index()}
	if r, ok := rec.ncnRouters[key]; ok {
		return r, nil
	}
	idx, ok := rec.operatorIdx[operator]
	if !ok {
		return nil, tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	if err := rec.state.OpenNcnRewardRouter(idx, int(group.Index())); err != nil {
		return nil, err
	}
	opSnap, err := rec.snapshot.Operator(operator)
	if err != nil {
		return nil, err
	}
	router := ncnrouter.New(epoch, operator, opSnap.OperatorFeeBps)
	rec.ncnRouters[key] = router
	return router, nil
}

// RouteNcn implements OpRouteNcn, splitting an operator's NCN fee group
// reward pool between the operator fee and that group's vaults.
func (e *Engine) RouteNcn(epoch uint64, operator pubkey.Key, group feegroup.NcnFeeGroup) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	key := ncnRouterKey{operator: operator, group: group.Index()}
	if err := rec.state.RequireRouteNcnOpen(rec.ncnRouted[key]); err != nil {
		return err
	}
	router, ok := rec.ncnRouters[key]
	if !ok {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}

	opSnap, err := rec.snapshot.Operator(operator)
	if err != nil {
		return err
	}
	var vaults []ncnrouter.VaultStake
	total := amount.U128{}
	for _, d := range opSnap.Delegations() {
		if d.NcnFeeGroup.Index() != group.Index() {
			continue
		}
		vaults = append(vaults, ncnrouter.VaultStake{Vault: d.Vault, StakeWeight: d.StakeWeight})
		sum, err := total.Add(d.StakeWeight)
		if err != nil {
			return err
		}
		total = sum
	}
	if err := router.RouteNcn(vaults, total); err != nil {
		return err
	}
	rec.state.AdvanceProgress(epochstate.ProgressTotalDistribution, 0)
	return nil
}

// DistributeOperatorRewards implements OpDistributeOperatorRewards.
func (e *Engine) DistributeOperatorRewards(epoch uint64, operator pubkey.Key, group feegroup.NcnFeeGroup) (uint64, error) {
	rec, err := e.epoch(epoch)
	if err != nil {
		return 0, err
	}
	router, ok := rec.ncnRouters[ncnRouterKey{operator: operator, group: group.Index()}]
	if !ok {
		return 0, tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return router.DistributeOperatorRewards()
}

// DistributeVaultRewardRoute implements OpDistributeVaultRewardRoute.
func (e *Engine) DistributeVaultRewardRoute(epoch uint64, operator pubkey.Key, group feegroup.NcnFeeGroup, vault pubkey.Key) (uint64, error) {
	rec, err := e.epoch(epoch)
	if err != nil {
		return 0, err
	}
	router, ok := rec.ncnRouters[ncnRouterKey{operator: operator, group: group.Index()}]
	if !ok {
		return 0, tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return router.DistributeVaultRewardRoute(vault)
}

// ---------------------------------------------------------------------
// Lifecycle (OpCloseEpochAccount).
// ---------------------------------------------------------------------

// closeableStatus projects an epochstate.Status into the CloseStatus
// accountpayer.CloseEpochAccount checks.
func closeableStatus(s epochstate.Status) accountpayer.CloseStatus {
	if s == epochstate.StatusClosed {
		return accountpayer.CloseStatusClosed
	}
	return accountpayer.CloseStatusOpen
}

// otherSlotsClosed reports whether every global/operator/NCN-router slot
// besides SlotEpochState is DNE or Closed, the precondition
// close_epoch_account applies only to the EpochState account itself.
func otherSlotsClosed(rec *epochRecord) bool {
	for _, sl := range []epochstate.Slot{epochstate.SlotWeightTable, epochstate.SlotEpochSnapshot, epochstate.SlotBallotBox, epochstate.SlotBaseRewardRouter} {
		if s := rec.state.Status(sl); s != epochstate.StatusDNE && s != epochstate.StatusClosed {
			return false
		}
	}
	for _, idx := range rec.operatorIdx {
		if s := rec.state.OperatorSnapshotStatus(idx); s != epochstate.StatusDNE && s != epochstate.StatusClosed {
			return false
		}
	}
	for key := range rec.ncnRouters {
		if s := rec.state.NcnRewardRouterStatus(rec.operatorIdx[key.operator], int(key.group)); s != epochstate.StatusDNE && s != epochstate.StatusClosed {
			return false
		}
	}
	return true
}

// CloseGlobalAccount implements OpCloseEpochAccount for one of the five
// per-epoch singleton slots. lamportBalance is the
// account's current rent balance; the reclaimed amount is folded back
// into the Payer via accountpayer.CloseEpochAccount, the same
// preconditions the per-operator and per-router closers below share.
func (e *Engine) CloseGlobalAccount(epoch uint64, slot epochstate.Slot, currentEpoch, lamportBalance uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	acc := accountpayer.Closeable{Status: closeableStatus(rec.state.Status(slot))}
	switch {
	case slot == epochstate.SlotEpochState:
		acc.IsEpochState = true
		acc.OtherSlotsClosed = otherSlotsClosed(rec)
	case slot == epochstate.SlotBaseRewardRouter && rec.baseRouter != nil:
		acc.RewardPool = rec.baseRouter.RewardPool
		acc.RewardsProcessed = rec.baseRouter.RewardsProcessed
	}
	reclaimed, err := accountpayer.CloseEpochAccount(acc, currentEpoch, epoch, e.Config.EpochsAfterConsensusBeforeClose, lamportBalance)
	if err != nil {
		return err
	}
	if err := rec.state.CloseGlobalSlot(slot, currentEpoch, e.Config.EpochsAfterConsensusBeforeClose, epoch); err != nil {
		return err
	}
	e.Payer.Reclaim(reclaimed)
	if slot == epochstate.SlotEpochState {
		delete(e.epochs, epoch)
		log.Infof("ncn %s epoch %d: epoch state closed, %d lamports reclaimed", e.NCN, epoch, reclaimed)
	}
	return nil
}

// CloseOperatorSnapshot implements OpCloseEpochAccount for one operator
// snapshot slot.
func (e *Engine) CloseOperatorSnapshot(epoch uint64, operator pubkey.Key, currentEpoch, lamportBalance uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	idx, ok := rec.operatorIdx[operator]
	if !ok {
		return tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	acc := accountpayer.Closeable{Status: closeableStatus(rec.state.OperatorSnapshotStatus(idx))}
	reclaimed, err := accountpayer.CloseEpochAccount(acc, currentEpoch, epoch, e.Config.EpochsAfterConsensusBeforeClose, lamportBalance)
	if err != nil {
		return err
	}
	if err := rec.state.CloseOperatorSlot(idx, currentEpoch, e.Config.EpochsAfterConsensusBeforeClose, epoch); err != nil {
		return err
	}
	e.Payer.Reclaim(reclaimed)
	return nil
}

// CloseNcnRewardRouter implements OpCloseEpochAccount for one (operator,
// group) NCN reward router slot. The router must have fully distributed
// its rewards before it may close.
func (e *Engine) CloseNcnRewardRouter(epoch uint64, operator pubkey.Key, group feegroup.NcnFeeGroup, currentEpoch, lamportBalance uint64) error {
	rec, err := e.epoch(epoch)
	if err != nil {
		return err
	}
	idx, ok := rec.operatorIdx[operator]
	if !ok {
		return tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	acc := accountpayer.Closeable{Status: closeableStatus(rec.state.NcnRewardRouterStatus(idx, int(group.Index())))}
	if router, ok := rec.ncnRouters[ncnRouterKey{operator: operator, group: group.Index()}]; ok {
		acc.RewardPool = router.RewardPool
		acc.RewardsProcessed = router.RewardsProcessed
	}
	reclaimed, err := accountpayer.CloseEpochAccount(acc, currentEpoch, epoch, e.Config.EpochsAfterConsensusBeforeClose, lamportBalance)
	if err != nil {
		return err
	}
	if err := rec.state.CloseNcnRouterSlot(idx, int(group.Index()), currentEpoch, e.Config.EpochsAfterConsensusBeforeClose, epoch); err != nil {
		return err
	}
	e.Payer.Reclaim(reclaimed)
	return nil
}
