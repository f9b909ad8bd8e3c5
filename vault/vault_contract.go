package vault

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/relayvault/vault-contract/common"
)

type (
	// Relay is a ledger record of a single vault participant. Relays are
	// created on the first deposit and are never removed, even after
	// withdrawing down to zero balance.
	Relay struct {
		// Once set, stays set forever.
		Registered bool
		// Internal balance allocated to the relay by the owner.
		Balance int
	}

	// Withdrawal is a request to release assets out of the vault custody
	// that is cooling down until the exit timelock elapses.
	Withdrawal struct {
		Amount int
		// Block timestamp (ms) from which the release is allowed.
		UnlockAt int
	}
)

const (
	ownerKey = "vaultOwner"
	// Must not collide with relayPrefix and withdrawalPrefix scanned by
	// storage.Find.
	assetKey         = "custodyAsset"
	feePercentageKey = "feePercentage"
	exitDelayKey     = "exitDelay"

	totalVaultKey = "totalVault"
	poolKey       = "unallocatedPool"
	feesKey       = "feesCollected"
)

var (
	relayPrefix      = []byte{'a'}
	withdrawalPrefix = []byte{'w'}
)

func _deploy(data interface{}, isUpdate bool) {
	ctx := storage.GetContext()
	if isUpdate {
		args := data.([]interface{})
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	args := data.(struct {
		owner         interop.Hash160
		asset         interop.Hash160
		feePercentage int
		exitDelay     int
	})

	if len(args.owner) != interop.Hash160Len || len(args.asset) != interop.Hash160Len {
		panic("incorrect length of account script hash")
	}
	if args.feePercentage < 0 || args.exitDelay < 0 {
		panic("negative configuration parameter")
	}

	storage.Put(ctx, ownerKey, args.owner)
	storage.Put(ctx, assetKey, args.asset)
	storage.Put(ctx, feePercentageKey, args.feePercentage)
	storage.Put(ctx, exitDelayKey, args.exitDelay)
	storage.Put(ctx, totalVaultKey, 0)
	storage.Put(ctx, poolKey, 0)
	storage.Put(ctx, feesKey, 0)

	runtime.Log("vault contract initialized")
}

// Update method updates contract source code and manifest. Can be invoked
// only by the vault owner.
func Update(script []byte, manifest []byte, data interface{}) {
	ctx := storage.GetReadOnlyContext()
	if !runtime.CheckWitness(storage.Get(ctx, ownerKey).(interop.Hash160)) {
		panic(common.ErrUnauthorized)
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, script, manifest, common.AppendVersion(data))
	runtime.Log("vault contract updated")
}

// OnNEP17Payment is a callback for the NEP-17 contract configured as the
// custodied asset. Deposits are initiated by Register, the callback only
// verifies that the incoming payment is made in that asset.
func OnNEP17Payment(from interop.Hash160, amount int, data interface{}) {
	ctx := storage.GetReadOnlyContext()
	asset := storage.Get(ctx, assetKey).(interop.Hash160)
	if !common.BytesEqual(runtime.GetCallingScriptHash(), asset) {
		common.AbortWithMessage("vault accepts the configured asset only")
	}
}

// Configure rewrites all adjustable vault parameters at once: the NEP-17
// asset held in custody, the reserved transfer fee percentage and the exit
// timelock in milliseconds. There is no partial update. Can be invoked only
// by the vault owner; ownership is re-asserted to the caller.
func Configure(caller interop.Hash160, asset interop.Hash160, feePercentage, exitDelay int) {
	ctx := storage.GetContext()
	assertOwner(ctx, caller)

	if len(asset) != interop.Hash160Len {
		panic("incorrect length of asset script hash")
	}
	if feePercentage < 0 || exitDelay < 0 {
		panic("negative configuration parameter")
	}

	storage.Put(ctx, ownerKey, caller)
	storage.Put(ctx, assetKey, asset)
	storage.Put(ctx, feePercentageKey, feePercentage)
	storage.Put(ctx, exitDelayKey, exitDelay)

	runtime.Log("vault parameters updated")
}

// Register deposits amount of the configured asset from the caller into the
// vault custody and marks the caller as a registered relay. Deposited funds
// are credited to the unallocated pool, not to the caller's own balance:
// the owner decides allocation later via Send. Can be invoked only by the
// account being registered.
func Register(caller interop.Hash160, amount int) {
	common.CheckWitness(caller)

	if amount <= 0 {
		panic("non positive amount")
	}

	ctx := storage.GetContext()
	asset := storage.Get(ctx, assetKey).(interop.Hash160)

	transferred := contract.Call(asset, "transfer", contract.All,
		caller, runtime.GetExecutingScriptHash(), amount, nil).(bool)
	if !transferred {
		panic(common.ErrTransferFailed)
	}

	acc := getRelay(ctx, caller)
	acc.Registered = true
	setRelay(ctx, caller, acc)

	storage.Put(ctx, totalVaultKey, totalBalance(ctx)+amount)
	storage.Put(ctx, poolKey, poolBalance(ctx)+amount)

	runtime.Log("relay registered")
}

// Send is an owner-mediated transfer of internal balance. When from is the
// vault account itself, amount is allocated to the receiver out of the
// unallocated deposit pool, otherwise it is moved between relay balances.
// The receiver must be a registered relay. Custody total is not affected.
//
// Produces Sent notification.
func Send(caller interop.Hash160, amount int, from, to interop.Hash160) {
	ctx := storage.GetContext()
	assertOwner(ctx, caller)

	if amount <= 0 {
		panic("non positive amount")
	}

	if !getRelay(ctx, to).Registered {
		panic(common.ErrNotRegistered)
	}

	if common.BytesEqual(from, runtime.GetExecutingScriptHash()) {
		pool := poolBalance(ctx)
		if pool < amount {
			panic(common.ErrInsufficientBalance)
		}
		storage.Put(ctx, poolKey, pool-amount)
	} else {
		accFrom := getRelay(ctx, from)
		if !accFrom.Registered {
			panic(common.ErrNotRegistered)
		}
		if accFrom.Balance < amount {
			panic(common.ErrInsufficientBalance)
		}
		accFrom.Balance = accFrom.Balance - amount
		setRelay(ctx, from, accFrom)
	}

	// from may equal to, so the receiver is re-read after the debit.
	accTo := getRelay(ctx, to)
	accTo.Balance = accTo.Balance + amount
	setRelay(ctx, to, accTo)

	runtime.Notify("Sent", to, amount)
}

// Withdraw debits amount from the caller's relay balance and removes it
// from the vault total. With a zero exit timelock the assets are released
// to the caller at once, otherwise a pending withdrawal is recorded and the
// release is completed via CompleteWithdraw after the timelock elapses.
// Only one withdrawal per relay can cool down at a time. Can be invoked
// only by a registered relay with sufficient balance.
//
// Produces WithdrawRequest notification, or Withdrawn one when the release
// happens immediately.
func Withdraw(caller interop.Hash160, amount int) {
	common.CheckWitness(caller)

	if amount <= 0 {
		panic("non positive amount")
	}

	ctx := storage.GetContext()

	acc := getRelay(ctx, caller)
	if !acc.Registered {
		panic(common.ErrNotRegistered)
	}
	if acc.Balance < amount {
		panic(common.ErrInsufficientBalance)
	}
	if pendingWithdrawal(ctx, caller).Amount != 0 {
		panic("withdrawal is already pending")
	}

	delay := storage.Get(ctx, exitDelayKey).(int)
	if delay == 0 {
		// External call goes first, internal state is committed only
		// after the asset contract confirms the transfer.
		releaseAssets(ctx, caller, amount)
	}

	acc.Balance = acc.Balance - amount
	setRelay(ctx, caller, acc)
	storage.Put(ctx, totalVaultKey, totalBalance(ctx)-amount)

	if delay == 0 {
		runtime.Notify("Withdrawn", caller, amount)
		return
	}

	unlockAt := runtime.GetTime() + delay
	common.SetSerialized(ctx, withdrawalKey(caller), Withdrawal{
		Amount:   amount,
		UnlockAt: unlockAt,
	})

	runtime.Notify("WithdrawRequest", caller, amount, unlockAt)
}

// CompleteWithdraw releases the caller's pending withdrawal out of the
// vault custody once the exit timelock has elapsed. Can be invoked only by
// the relay that requested the withdrawal.
//
// Produces Withdrawn notification.
func CompleteWithdraw(caller interop.Hash160) {
	common.CheckWitness(caller)

	ctx := storage.GetContext()

	w := pendingWithdrawal(ctx, caller)
	if w.Amount == 0 {
		panic("no pending withdrawal")
	}
	if runtime.GetTime() < w.UnlockAt {
		panic("withdrawal is timelocked")
	}

	releaseAssets(ctx, caller, w.Amount)
	storage.Delete(ctx, withdrawalKey(caller))

	runtime.Notify("Withdrawn", caller, w.Amount)
}

// TotalBalance returns the total amount of assets under the vault custody.
func TotalBalance() int {
	ctx := storage.GetReadOnlyContext()
	return totalBalance(ctx)
}

// FinancerBalance returns the internal balance of the specified registered
// relay.
func FinancerBalance(account interop.Hash160) int {
	ctx := storage.GetReadOnlyContext()
	acc := getRelay(ctx, account)
	if !acc.Registered {
		panic(common.ErrNotRegistered)
	}
	return acc.Balance
}

// PendingWithdrawal returns the withdrawal of the specified account that
// awaits the exit timelock. Zero structure is returned when there is none.
func PendingWithdrawal(account interop.Hash160) Withdrawal {
	ctx := storage.GetReadOnlyContext()
	return pendingWithdrawal(ctx, account)
}

// Relays returns an iterator over script hashes of all registered relay
// accounts.
func Relays() iterator.Iterator {
	ctx := storage.GetReadOnlyContext()
	return storage.Find(ctx, relayPrefix, storage.KeysOnly|storage.RemovePrefix)
}

// Owner returns the vault administrator account.
func Owner() interop.Hash160 {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, ownerKey).(interop.Hash160)
}

// Asset returns script hash of the NEP-17 contract whose token is held in
// custody.
func Asset() interop.Hash160 {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, assetKey).(interop.Hash160)
}

// FeePercentage returns the configured transfer fee percentage. The current
// operation set does not charge it, the parameter is reserved.
func FeePercentage() int {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, feePercentageKey).(int)
}

// ExitDelay returns the withdrawal timelock in milliseconds.
func ExitDelay() int {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, exitDelayKey).(int)
}

// FeesCollected returns the total of fees withheld by the vault. Reserved,
// stays zero until fee logic is activated.
func FeesCollected() int {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, feesKey).(int)
}

// Version returns version of the contract.
func Version() int {
	return common.Version
}

// assertOwner checks that caller is the stored vault owner and the
// invocation carries its witness. Panics with ErrUnauthorized otherwise.
func assertOwner(ctx storage.Context, caller interop.Hash160) {
	owner := storage.Get(ctx, ownerKey).(interop.Hash160)
	if !common.BytesEqual(caller, owner) || !runtime.CheckWitness(caller) {
		panic(common.ErrUnauthorized)
	}
}

// releaseAssets transfers amount of the configured asset from the vault
// account to the specified one. Panics with ErrTransferFailed if the asset
// contract does not confirm the transfer.
func releaseAssets(ctx storage.Context, to interop.Hash160, amount int) {
	asset := storage.Get(ctx, assetKey).(interop.Hash160)

	transferred := contract.Call(asset, "transfer", contract.All,
		runtime.GetExecutingScriptHash(), to, amount, nil).(bool)
	if !transferred {
		panic(common.ErrTransferFailed)
	}
}

func relayKey(account interop.Hash160) []byte {
	return append(relayPrefix, account...)
}

func withdrawalKey(account interop.Hash160) []byte {
	return append(withdrawalPrefix, account...)
}

func getRelay(ctx storage.Context, account interop.Hash160) Relay {
	if len(account) != interop.Hash160Len {
		panic("incorrect length of account script hash")
	}

	data := storage.Get(ctx, relayKey(account))
	if data != nil {
		return std.Deserialize(data.([]byte)).(Relay)
	}

	return Relay{}
}

func setRelay(ctx storage.Context, account interop.Hash160, acc Relay) {
	common.SetSerialized(ctx, relayKey(account), acc)
}

func pendingWithdrawal(ctx storage.Context, account interop.Hash160) Withdrawal {
	data := storage.Get(ctx, withdrawalKey(account))
	if data != nil {
		return std.Deserialize(data.([]byte)).(Withdrawal)
	}

	return Withdrawal{}
}

func totalBalance(ctx storage.Context) int {
	total := storage.Get(ctx, totalVaultKey)
	if total != nil {
		return total.(int)
	}

	return 0
}

func poolBalance(ctx storage.Context) int {
	pool := storage.Get(ctx, poolKey)
	if pool != nil {
		return pool.(int)
	}

	return 0
}
