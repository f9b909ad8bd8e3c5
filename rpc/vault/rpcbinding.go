// Package vault contains RPC wrappers for Relay Vault contract.
package vault

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"math/big"
)

// VaultWithdrawal is a contract-specific vault.Withdrawal type used by its methods.
type VaultWithdrawal struct {
	Amount *big.Int
	UnlockAt *big.Int
}

// SentEvent represents "Sent" event emitted by the contract.
type SentEvent struct {
	RelayTo util.Uint160
	Amount *big.Int
}

// WithdrawRequestEvent represents "WithdrawRequest" event emitted by the contract.
type WithdrawRequestEvent struct {
	Relay util.Uint160
	Amount *big.Int
	UnlockAt *big.Int
}

// WithdrawnEvent represents "Withdrawn" event emitted by the contract.
type WithdrawnEvent struct {
	Relay util.Uint160
	Amount *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
	CallAndExpandIterator(contract util.Uint160, method string, maxItems int, params ...any) (*result.Invoke, error)
	TerminateSession(sessionID uuid.UUID) error
	TraverseIterator(sessionID uuid.UUID, iterator *result.Iterator, num int) ([]stackitem.Item, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// Asset invokes `asset` method of contract.
func (c *ContractReader) Asset() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "asset"))
}

// ExitDelay invokes `exitDelay` method of contract.
func (c *ContractReader) ExitDelay() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "exitDelay"))
}

// FeePercentage invokes `feePercentage` method of contract.
func (c *ContractReader) FeePercentage() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "feePercentage"))
}

// FeesCollected invokes `feesCollected` method of contract.
func (c *ContractReader) FeesCollected() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "feesCollected"))
}

// FinancerBalance invokes `financerBalance` method of contract.
func (c *ContractReader) FinancerBalance(account util.Uint160) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "financerBalance", account))
}

// Owner invokes `owner` method of contract.
func (c *ContractReader) Owner() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "owner"))
}

// PendingWithdrawal invokes `pendingWithdrawal` method of contract.
func (c *ContractReader) PendingWithdrawal(account util.Uint160) (*VaultWithdrawal, error) {
	return itemToVaultWithdrawal(unwrap.Item(c.invoker.Call(c.hash, "pendingWithdrawal", account)))
}

// Relays invokes `relays` method of contract.
func (c *ContractReader) Relays() (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "relays"))
}

// RelaysExpanded is similar to Relays (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators. It creates a script that will get the specified
// number of result items from the iterator right in the VM and return them to
// you. It's only limited by VM stack and GAS available for RPC invocations.
func (c *ContractReader) RelaysExpanded(_numOfIteratorItems int) ([]stackitem.Item, error) {
	return unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "relays", _numOfIteratorItems))
}

// TotalBalance invokes `totalBalance` method of contract.
func (c *ContractReader) TotalBalance() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "totalBalance"))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// CompleteWithdraw creates a transaction invoking `completeWithdraw` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) CompleteWithdraw(caller util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "completeWithdraw", caller)
}

// CompleteWithdrawTransaction creates a transaction invoking `completeWithdraw` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) CompleteWithdrawTransaction(caller util.Uint160) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "completeWithdraw", caller)
}

// CompleteWithdrawUnsigned creates a transaction invoking `completeWithdraw` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) CompleteWithdrawUnsigned(caller util.Uint160) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "completeWithdraw", nil, caller)
}

// Configure creates a transaction invoking `configure` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Configure(caller util.Uint160, asset util.Uint160, feePercentage *big.Int, exitDelay *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "configure", caller, asset, feePercentage, exitDelay)
}

// ConfigureTransaction creates a transaction invoking `configure` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) ConfigureTransaction(caller util.Uint160, asset util.Uint160, feePercentage *big.Int, exitDelay *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "configure", caller, asset, feePercentage, exitDelay)
}

// ConfigureUnsigned creates a transaction invoking `configure` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) ConfigureUnsigned(caller util.Uint160, asset util.Uint160, feePercentage *big.Int, exitDelay *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "configure", nil, caller, asset, feePercentage, exitDelay)
}

// Register creates a transaction invoking `register` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Register(caller util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "register", caller, amount)
}

// RegisterTransaction creates a transaction invoking `register` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) RegisterTransaction(caller util.Uint160, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "register", caller, amount)
}

// RegisterUnsigned creates a transaction invoking `register` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) RegisterUnsigned(caller util.Uint160, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "register", nil, caller, amount)
}

// Send creates a transaction invoking `send` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Send(caller util.Uint160, amount *big.Int, from util.Uint160, to util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "send", caller, amount, from, to)
}

// SendTransaction creates a transaction invoking `send` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SendTransaction(caller util.Uint160, amount *big.Int, from util.Uint160, to util.Uint160) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "send", caller, amount, from, to)
}

// SendUnsigned creates a transaction invoking `send` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) SendUnsigned(caller util.Uint160, amount *big.Int, from util.Uint160, to util.Uint160) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "send", nil, caller, amount, from, to)
}

// Update creates a transaction invoking `update` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Update(script []byte, manifest []byte, data any) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "update", script, manifest, data)
}

// UpdateTransaction creates a transaction invoking `update` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdateTransaction(script []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "update", script, manifest, data)
}

// UpdateUnsigned creates a transaction invoking `update` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) UpdateUnsigned(script []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "update", nil, script, manifest, data)
}

// Withdraw creates a transaction invoking `withdraw` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Withdraw(caller util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "withdraw", caller, amount)
}

// WithdrawTransaction creates a transaction invoking `withdraw` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) WithdrawTransaction(caller util.Uint160, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "withdraw", caller, amount)
}

// WithdrawUnsigned creates a transaction invoking `withdraw` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) WithdrawUnsigned(caller util.Uint160, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "withdraw", nil, caller, amount)
}

// itemToVaultWithdrawal converts stack item into *VaultWithdrawal.
func itemToVaultWithdrawal(item stackitem.Item, err error) (*VaultWithdrawal, error) {
	if err != nil {
		return nil, err
	}
	var res = new(VaultWithdrawal)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of VaultWithdrawal from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *VaultWithdrawal) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	res.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	index++
	res.UnlockAt, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field UnlockAt: %w", err)
	}

	return nil
}

// SentEventsFromApplicationLog retrieves a set of all emitted events
// with "Sent" name from the provided [result.ApplicationLog].
func SentEventsFromApplicationLog(log *result.ApplicationLog) ([]*SentEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*SentEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Sent" {
				continue
			}
			event := new(SentEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize SentEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to SentEvent or
// returns an error if it's not possible to do to so.
func (e *SentEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.RelayTo, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field RelayTo: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}

// WithdrawRequestEventsFromApplicationLog retrieves a set of all emitted events
// with "WithdrawRequest" name from the provided [result.ApplicationLog].
func WithdrawRequestEventsFromApplicationLog(log *result.ApplicationLog) ([]*WithdrawRequestEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*WithdrawRequestEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "WithdrawRequest" {
				continue
			}
			event := new(WithdrawRequestEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize WithdrawRequestEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to WithdrawRequestEvent or
// returns an error if it's not possible to do to so.
func (e *WithdrawRequestEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.Relay, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Relay: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	index++
	e.UnlockAt, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field UnlockAt: %w", err)
	}

	return nil
}

// WithdrawnEventsFromApplicationLog retrieves a set of all emitted events
// with "Withdrawn" name from the provided [result.ApplicationLog].
func WithdrawnEventsFromApplicationLog(log *result.ApplicationLog) ([]*WithdrawnEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*WithdrawnEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Withdrawn" {
				continue
			}
			event := new(WithdrawnEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize WithdrawnEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to WithdrawnEvent or
// returns an error if it's not possible to do to so.
func (e *WithdrawnEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.Relay, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Relay: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}
