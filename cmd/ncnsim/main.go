// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command ncnsim is a deterministic harness that replays one epoch's
// worth of instructions through instruction.Engine for a small,
// fixed two-operator NCN, the way a keeper daemon would drive the real
// core but against in-process stand-ins for the restaking program, the
// vault program, and the tip-distribution program. It
// exists to exercise the whole stack end to end under `go run` without
// a live ledger, and to give ledgerstore and logctx a concrete caller.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"

	"github.com/ncn-labs/tip-router-core/cmd/ncnsim/internal/logctx"
	"github.com/ncn-labs/tip-router-core/epochstate"
	"github.com/ncn-labs/tip-router-core/external"
	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/instruction"
	"github.com/ncn-labs/tip-router-core/ledgerstore"
	"github.com/ncn-labs/tip-router-core/merkleproof"
	"github.com/ncn-labs/tip-router-core/ncnconfig"
	"github.com/ncn-labs/tip-router-core/pdaddr"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

const (
	defaultDataDir    = "ncnsim-data"
	defaultLogFile    = "ncnsim.log"
	defaultDebugLevel = "info"
	defaultEpoch      = uint64(5)
)

// ncnsimProgramID stands in for the deployed core program's address,
// the first component of every pdaddr seed tuple.
var ncnsimProgramID = key(255)

// config holds ncnsim's command-line options.
type config struct {
	DataDir    string `long:"datadir" description:"Directory to persist the simulated ledger's account store and log file" default:"ncnsim-data"`
	LogFile    string `long:"logfile" description:"Name of the rotated log file, written under datadir" default:"ncnsim.log"`
	DebugLevel string `long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}" default:"info"`
	Epoch      uint64 `long:"epoch" description:"Epoch number to simulate" default:"5"`
}

func loadConfig() (*config, error) {
	cfg := config{
		DataDir:    defaultDataDir,
		LogFile:    defaultLogFile,
		DebugLevel: defaultDebugLevel,
		Epoch:      defaultEpoch,
	}
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	if err := run(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ncnsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	backend, err := logctx.New(filepath.Join(cfg.DataDir, cfg.LogFile), 10*1024, 3)
	if err != nil {
		return err
	}
	defer backend.Close()
	if err := backend.SetLevels(cfg.DebugLevel); err != nil {
		return err
	}
	log := backend.Logger("NSIM")
	instruction.UseLogger(backend.Logger("ENGN"))
	ledgerstore.UseLogger(backend.Logger("STOR"))

	store, err := ledgerstore.Open(filepath.Join(cfg.DataDir, "accounts"))
	if err != nil {
		return err
	}
	defer store.Close()

	log.Infof("simulating epoch %d", cfg.Epoch)
	result, err := runScenario(cfg.Epoch)
	if err != nil {
		return err
	}

	resolver := pdaddr.NewResolver(ncnsimProgramID, 32)
	if err := persist(store, resolver, result); err != nil {
		return fmt.Errorf("failed to persist epoch results: %w", err)
	}

	log.Infof("epoch %d settled: winning root %x, operator1 reward %d, vault1 reward %d, operator2 reward %d, vault2 reward %d",
		cfg.Epoch, result.winningRoot, result.opReward1, result.vaultReward1, result.opReward2, result.vaultReward2)
	return nil
}

// restakingStub answers the restaking-program reads from a fixed
// two-operator table: both opt-in tickets are always active.
type restakingStub struct {
	operators []pubkey.Key
	feeBps    map[pubkey.Key]uint64
}

func (r restakingStub) OperatorOptIn(ncn, operator pubkey.Key, atSlot uint64) (external.OperatorOptIn, error) {
	return external.OperatorOptIn{NcnOptedInOperator: true, OperatorOptedInNcn: true}, nil
}

func (r restakingStub) OperatorFeeBps(operator pubkey.Key) (uint64, error) {
	return r.feeBps[operator], nil
}

func (r restakingStub) NcnOperatorCount(ncn pubkey.Key) (int, error) {
	return len(r.operators), nil
}

// vaultReaderStub answers the vault-program delegation read from a
// fixed (vault, operator) table.
type vaultReaderStub struct {
	delegations map[[2]pubkey.Key]external.VaultDelegation
}

func (v vaultReaderStub) Delegation(vault, operator pubkey.Key) (external.VaultDelegation, error) {
	return v.delegations[[2]pubkey.Key{vault, operator}], nil
}

// stakePoolStub records every DAO fee-wallet deposit the base router
// issues, standing in for the external stake-pool deposit CPI.
type stakePoolStub struct {
	deposits map[pubkey.Key]uint64
}

func (s *stakePoolStub) Deposit(feeWallet pubkey.Key, lamports uint64) error {
	s.deposits[feeWallet] += lamports
	return nil
}

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

// scenarioResult carries everything runScenario settles, so main can log
// and persist it without reaching back into the Engine's private state.
type scenarioResult struct {
	ncn          pubkey.Key
	epoch        uint64
	winningRoot  [32]byte
	daoDeposit   uint64
	opReward1    uint64
	vaultReward1 uint64
	opReward2    uint64
	vaultReward2 uint64
	configBytes  []byte
	stateBytes   []byte
}

// runScenario drives a two-operator, one-mint, two-vault NCN through
// every instruction family an epoch passes through, from config
// initialization to the final NCN-router closes.
func runScenario(epoch uint64) (*scenarioResult, error) {
	ncn := key(1)
	op1, op2 := key(10), key(11)
	vault1, vault2 := key(20), key(21)
	mint := key(30)
	feeWallet := key(40)
	validator := key(50)

	restaking := restakingStub{
		operators: []pubkey.Key{op1, op2},
		feeBps:    map[pubkey.Key]uint64{op1: 1000, op2: 500},
	}
	delegs := vaultReaderStub{delegations: map[[2]pubkey.Key]external.VaultDelegation{
		{vault1, op1}: {Vault: vault1, Operator: op1, StMint: mint, Delegation: 6},
		{vault2, op2}: {Vault: vault2, Operator: op2, StMint: mint, Delegation: 4},
	}}
	stakePool := &stakePoolStub{deposits: make(map[pubkey.Key]uint64)}

	eng := instruction.NewEngine(ncn, restaking, delegs, nil, stakePool)

	fees := feeschedule.Fees{
		BlockEngineFeeBps: 100,
		DaoFeeBps:         300,
		NcnFeeBps:         [feegroup.NcnFeeGroupCount]uint64{600},
		FeeWallet:         feeWallet,
	}
	if err := eng.InitializeConfig(key(2), key(3), 0, 10, 2, 50, fees); err != nil {
		return nil, fmt.Errorf("InitializeConfig: %w", err)
	}
	if err := eng.InitializeVaultRegistry(); err != nil {
		return nil, fmt.Errorf("InitializeVaultRegistry: %w", err)
	}
	noFeedWeight := uint64(1_000_000_000_000) // WeightPrecision: stake_weight == delegation
	group0, err := feegroup.NewNcnFeeGroup(0)
	if err != nil {
		return nil, err
	}
	if err := eng.AdminRegisterStMint(mint, group0, 0, nil, &noFeedWeight); err != nil {
		return nil, fmt.Errorf("AdminRegisterStMint: %w", err)
	}
	if err := eng.RegisterVault(mint, 0); err != nil {
		return nil, fmt.Errorf("RegisterVault: %w", err)
	}

	if err := eng.InitializeEpochState(epoch); err != nil {
		return nil, fmt.Errorf("InitializeEpochState: %w", err)
	}
	if err := eng.InitializeWeightTable(epoch, epoch); err != nil {
		return nil, fmt.Errorf("InitializeWeightTable: %w", err)
	}
	if err := eng.AdminSetWeight(epoch, mint, noFeedWeight); err != nil {
		return nil, fmt.Errorf("AdminSetWeight: %w", err)
	}
	if err := eng.InitializeEpochSnapshot(epoch); err != nil {
		return nil, fmt.Errorf("InitializeEpochSnapshot: %w", err)
	}
	if err := eng.InitializeOperatorSnapshot(epoch, op1, 100); err != nil {
		return nil, fmt.Errorf("InitializeOperatorSnapshot(op1): %w", err)
	}
	if err := eng.InitializeOperatorSnapshot(epoch, op2, 100); err != nil {
		return nil, fmt.Errorf("InitializeOperatorSnapshot(op2): %w", err)
	}
	if err := eng.SnapshotVaultOperatorDelegation(epoch, op1, vault1); err != nil {
		return nil, fmt.Errorf("SnapshotVaultOperatorDelegation(op1): %w", err)
	}
	if err := eng.SnapshotVaultOperatorDelegation(epoch, op2, vault2); err != nil {
		return nil, fmt.Errorf("SnapshotVaultOperatorDelegation(op2): %w", err)
	}

	if err := eng.InitializeBallotBox(epoch); err != nil {
		return nil, fmt.Errorf("InitializeBallotBox: %w", err)
	}
	var root [32]byte
	root[0] = 0xAA
	leaf := merkleproof.Leaf{ValidatorTipDistributionAccount: validator, ValidatorMerkleRoot: root, MaxTotalClaim: 1, MaxNumNodes: 1}
	metaRoot, proofs := merkleproof.BuildTree([]merkleproof.Leaf{leaf})
	if err := eng.CastVote(epoch, op1, metaRoot, 200); err != nil {
		return nil, fmt.Errorf("CastVote(op1): %w", err)
	}
	if err := eng.CastVote(epoch, op2, metaRoot, 201); err != nil {
		return nil, fmt.Errorf("CastVote(op2): %w", err)
	}

	target := external.TipDistribution{
		ProgramID:     key(250),
		RootAuthority: key(251),
		Upload: func(pubkey.Key, [32]byte, uint64, uint64) error {
			return nil
		},
	}
	if err := eng.SetMerkleRoot(epoch, validator, proofs[0], root, 1, 1, target); err != nil {
		return nil, fmt.Errorf("SetMerkleRoot: %w", err)
	}

	if err := eng.RouteBase(epoch, 10_000); err != nil {
		return nil, fmt.Errorf("RouteBase: %w", err)
	}
	if err := eng.DistributeBaseFeeGroupRewards(epoch, feegroup.DAOFeeGroup); err != nil {
		return nil, fmt.Errorf("DistributeBaseFeeGroupRewards: %w", err)
	}
	if err := eng.DistributeBaseNcnRewardRoute(epoch, op1, group0); err != nil {
		return nil, fmt.Errorf("DistributeBaseNcnRewardRoute(op1): %w", err)
	}
	if err := eng.DistributeBaseNcnRewardRoute(epoch, op2, group0); err != nil {
		return nil, fmt.Errorf("DistributeBaseNcnRewardRoute(op2): %w", err)
	}

	if err := eng.RouteNcn(epoch, op1, group0); err != nil {
		return nil, fmt.Errorf("RouteNcn(op1): %w", err)
	}
	if err := eng.RouteNcn(epoch, op2, group0); err != nil {
		return nil, fmt.Errorf("RouteNcn(op2): %w", err)
	}

	opReward1, err := eng.DistributeOperatorRewards(epoch, op1, group0)
	if err != nil {
		return nil, fmt.Errorf("DistributeOperatorRewards(op1): %w", err)
	}
	vaultReward1, err := eng.DistributeVaultRewardRoute(epoch, op1, group0, vault1)
	if err != nil {
		return nil, fmt.Errorf("DistributeVaultRewardRoute(op1): %w", err)
	}
	opReward2, err := eng.DistributeOperatorRewards(epoch, op2, group0)
	if err != nil {
		return nil, fmt.Errorf("DistributeOperatorRewards(op2): %w", err)
	}
	vaultReward2, err := eng.DistributeVaultRewardRoute(epoch, op2, group0, vault2)
	if err != nil {
		return nil, fmt.Errorf("DistributeVaultRewardRoute(op2): %w", err)
	}

	if err := eng.CloseNcnRewardRouter(epoch, op1, group0, epoch+2, 0); err != nil {
		return nil, fmt.Errorf("CloseNcnRewardRouter(op1): %w", err)
	}
	if err := eng.CloseNcnRewardRouter(epoch, op2, group0, epoch+2, 0); err != nil {
		return nil, fmt.Errorf("CloseNcnRewardRouter(op2): %w", err)
	}

	configBytes, err := eng.Config.Bytes()
	if err != nil {
		return nil, fmt.Errorf("Config.Bytes: %w", err)
	}
	state, err := eng.EpochState(epoch)
	if err != nil {
		return nil, fmt.Errorf("EpochState: %w", err)
	}
	stateBytes, err := state.Bytes()
	if err != nil {
		return nil, fmt.Errorf("State.Bytes: %w", err)
	}

	return &scenarioResult{
		ncn:          ncn,
		epoch:        epoch,
		winningRoot:  metaRoot,
		daoDeposit:   stakePool.deposits[feeWallet],
		opReward1:    opReward1,
		vaultReward1: vaultReward1,
		opReward2:    opReward2,
		vaultReward2: vaultReward2,
		configBytes:  configBytes,
		stateBytes:   stateBytes,
	}, nil
}

// epochSummary is the JSON-serialized blob persisted under the
// BallotBox account address, the deterministic snapshot a keeper
// dashboard would read back out of the ledger once an epoch settles.
type epochSummary struct {
	Epoch        uint64 `json:"epoch"`
	WinningRoot  string `json:"winning_root"`
	DaoDeposit   uint64 `json:"dao_deposit"`
	OpReward1    uint64 `json:"operator1_reward"`
	VaultReward1 uint64 `json:"vault1_reward"`
	OpReward2    uint64 `json:"operator2_reward"`
	VaultReward2 uint64 `json:"vault2_reward"`
}

// persist writes result's settled totals into the account store under
// the epoch's BallotBox address, the way the real ledger would hold the
// account's final bytes after an epoch finishes routing. It also writes
// the Config and EpochState accounts
// under their own PDAs in their fixed-layout wire form (reserved padding
// included), then reads each back through its Load function so a
// corrupted reserved region would be caught the same way a live loader
// would catch it.
func persist(store *ledgerstore.Store, resolver *pdaddr.Resolver, result *scenarioResult) error {
	addr := resolver.Address(pdaddr.BallotBoxSeeds(result.ncn, result.epoch))
	blob, err := json.Marshal(epochSummary{
		Epoch:        result.epoch,
		WinningRoot:  fmt.Sprintf("%x", result.winningRoot),
		DaoDeposit:   result.daoDeposit,
		OpReward1:    result.opReward1,
		VaultReward1: result.vaultReward1,
		OpReward2:    result.opReward2,
		VaultReward2: result.vaultReward2,
	})
	if err != nil {
		return err
	}
	if err := store.Put(addr, blob); err != nil {
		return err
	}

	configAddr := resolver.Address(pdaddr.ConfigSeeds(result.ncn))
	if err := store.Put(configAddr, result.configBytes); err != nil {
		return err
	}
	stored, err := store.Get(configAddr)
	if err != nil {
		return err
	}
	if _, err := ncnconfig.LoadConfig(stored); err != nil {
		return fmt.Errorf("Config reserved-region check on reload: %w", err)
	}

	stateAddr := resolver.Address(pdaddr.EpochStateSeeds(result.ncn, result.epoch))
	if err := store.Put(stateAddr, result.stateBytes); err != nil {
		return err
	}
	stored, err = store.Get(stateAddr)
	if err != nil {
		return err
	}
	if _, err := epochstate.Load(stored); err != nil {
		return fmt.Errorf("EpochState reserved-region check on reload: %w", err)
	}
	return nil
}
