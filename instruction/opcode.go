// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package instruction implements the stable opcode table and an Engine
// that dispatches each opcode to the component package that owns its
// semantics, wiring Config, VaultRegistry, EpochState, WeightTable,
// snapshots, BallotBox and the two routers together the way the host
// runtime would sequence them across one NCN's lifetime.
package instruction

// Opcode identifies one ABI-stable instruction. Values are assigned once
// in this single table and never reordered.
type Opcode byte

const (
	OpInitializeConfig Opcode = iota
	OpInitializeVaultRegistry
	OpReallocVaultRegistry
	OpRegisterVault

	OpInitializeEpochState
	OpReallocEpochState
	OpInitializeWeightTable
	OpReallocWeightTable
	OpSwitchboardSetWeight

	OpInitializeEpochSnapshot
	OpInitializeOperatorSnapshot
	OpReallocOperatorSnapshot
	OpSnapshotVaultOperatorDelegation

	OpInitializeBallotBox
	OpReallocBallotBox
	OpCastVote
	OpSetMerkleRoot

	OpCloseEpochAccount
	OpRouteBase
	OpDistributeBaseFeeGroupRewards
	OpDistributeBaseNcnRewardRoute
	OpRouteNcn
	OpDistributeOperatorRewards
	OpDistributeVaultRewardRoute

	OpAdminSetParameters
	OpAdminSetNewAdmin
	OpAdminSetTieBreaker
	OpAdminSetWeight
	OpAdminRegisterStMint
	OpAdminSetStMint
)

// String names an opcode for logging and error messages.
func (o Opcode) String() string {
	names := [...]string{
		"InitializeConfig", "InitializeVaultRegistry", "ReallocVaultRegistry", "RegisterVault",
		"InitializeEpochState", "ReallocEpochState", "InitializeWeightTable", "ReallocWeightTable", "SwitchboardSetWeight",
		"InitializeEpochSnapshot", "InitializeOperatorSnapshot", "ReallocOperatorSnapshot", "SnapshotVaultOperatorDelegation",
		"InitializeBallotBox", "ReallocBallotBox", "CastVote", "SetMerkleRoot",
		"CloseEpochAccount", "RouteBase", "DistributeBaseFeeGroupRewards", "DistributeBaseNcnRewardRoute",
		"RouteNcn", "DistributeOperatorRewards", "DistributeVaultRewardRoute",
		"AdminSetParameters", "AdminSetNewAdmin", "AdminSetTieBreaker", "AdminSetWeight",
		"AdminRegisterStMint", "AdminSetStMint",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}
