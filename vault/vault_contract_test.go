package vault_test

import (
	"math/big"
	"path"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

const vaultPath = "."

// hourMS is long enough for a withdrawal to stay timelocked for the whole
// test, no matter how block timestamps advance.
const hourMS = 3600 * 1000

func newExecutor(t *testing.T) *neotest.Executor {
	bc, acc := chain.NewSingle(t)
	return neotest.NewExecutor(t, bc, acc, acc)
}

// deployVault deploys the vault owned by the committee with native GAS
// serving as the custodied asset.
func deployVault(t *testing.T, e *neotest.Executor, feePercentage, exitDelay int64) util.Uint160 {
	ctr := neotest.CompileFile(t, e.CommitteeHash, vaultPath, path.Join(vaultPath, "config.yml"))
	gasHash := e.NativeHash(t, nativenames.Gas)

	e.DeployContract(t, ctr, []any{e.CommitteeHash, gasHash, feePercentage, exitDelay})
	return ctr.Hash
}

func newVaultInvoker(t *testing.T, feePercentage, exitDelay int64) *neotest.ContractInvoker {
	e := newExecutor(t)
	h := deployVault(t, e, feePercentage, exitDelay)
	return e.CommitteeInvoker(h)
}

func TestVaultViews(t *testing.T) {
	c := newVaultInvoker(t, 2, hourMS)
	gasHash := c.NativeHash(t, nativenames.Gas)

	c.Invoke(t, stackitem.Make(0), "totalBalance")
	c.Invoke(t, stackitem.Make(2), "feePercentage")
	c.Invoke(t, stackitem.Make(hourMS), "exitDelay")
	c.Invoke(t, stackitem.Make(0), "feesCollected")
	c.Invoke(t, stackitem.NewBuffer(c.CommitteeHash.BytesBE()), "owner")
	c.Invoke(t, stackitem.NewBuffer(gasHash.BytesBE()), "asset")
}

func TestConfigure(t *testing.T) {
	c := newVaultInvoker(t, 2, hourMS)
	gasHash := c.NativeHash(t, nativenames.Gas)

	stranger := c.NewAccount(t)
	cStranger := c.WithSigners(stranger)

	cStranger.InvokeFail(t, "unauthorized", "configure", stranger.ScriptHash(), gasHash, 5, 0)
	// Claiming to be the owner without the owner witness doesn't help.
	cStranger.InvokeFail(t, "unauthorized", "configure", c.CommitteeHash, gasHash, 5, 0)

	c.Invoke(t, stackitem.Null{}, "configure", c.CommitteeHash, gasHash, 5, 1000)
	c.Invoke(t, stackitem.Make(5), "feePercentage")
	c.Invoke(t, stackitem.Make(1000), "exitDelay")
	c.Invoke(t, stackitem.NewBuffer(c.CommitteeHash.BytesBE()), "owner")

	c.InvokeFail(t, "negative configuration parameter", "configure", c.CommitteeHash, gasHash, -1, 0)
	c.InvokeFail(t, "incorrect length of asset script hash", "configure", c.CommitteeHash, []byte{1, 2, 3}, 5, 0)
}

func TestRegister(t *testing.T) {
	c := newVaultInvoker(t, 0, hourMS)

	relay := c.NewAccount(t)
	cRelay := c.WithSigners(relay)
	relayHash := relay.ScriptHash()

	cRelay.InvokeFail(t, "non positive amount", "register", relayHash, 0)
	cRelay.InvokeFail(t, "witness check failed", "register", c.CommitteeHash, 100)
	c.InvokeFail(t, "relay is not registered", "financerBalance", relayHash)

	cRelay.Invoke(t, stackitem.Null{}, "register", relayHash, 1000)

	c.Invoke(t, stackitem.Make(1000), "totalBalance")
	// Deposits go to the unallocated pool, not to the depositor.
	c.Invoke(t, stackitem.Make(0), "financerBalance", relayHash)
	require.Equal(t, big.NewInt(1000), c.Chain.GetUtilityTokenBalance(c.Hash))

	cRelay.Invoke(t, stackitem.Null{}, "register", relayHash, 500)
	c.Invoke(t, stackitem.Make(1500), "totalBalance")
	c.Invoke(t, stackitem.Make(0), "financerBalance", relayHash)

	// Asset contract rejects a deposit exceeding the external balance.
	cRelay.InvokeFail(t, "failed to transfer assets", "register", relayHash, 1_000_0000_0000)
	c.Invoke(t, stackitem.Make(1500), "totalBalance")
}

func TestSend(t *testing.T) {
	c := newVaultInvoker(t, 0, hourMS)

	relayA := c.NewAccount(t)
	relayB := c.NewAccount(t)
	hashA := relayA.ScriptHash()
	hashB := relayB.ScriptHash()

	c.WithSigners(relayA).Invoke(t, stackitem.Null{}, "register", hashA, 1000)

	c.WithSigners(relayA).InvokeFail(t, "unauthorized", "send", hashA, 100, c.Hash, hashA)
	c.InvokeFail(t, "relay is not registered", "send", c.CommitteeHash, 100, c.Hash, hashB)
	c.InvokeFail(t, "insufficient balance", "send", c.CommitteeHash, 5000, c.Hash, hashA)
	c.InvokeFail(t, "non positive amount", "send", c.CommitteeHash, 0, c.Hash, hashA)

	txSend := c.Invoke(t, stackitem.Null{}, "send", c.CommitteeHash, 400, c.Hash, hashA)
	c.CheckTxNotificationEvent(t, txSend, 0, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "Sent",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(hashA.BytesBE()),
			stackitem.Make(400),
		}),
	})

	c.Invoke(t, stackitem.Make(400), "financerBalance", hashA)
	// Custody total is not affected by internal reallocation.
	c.Invoke(t, stackitem.Make(1000), "totalBalance")

	c.WithSigners(relayB).Invoke(t, stackitem.Null{}, "register", hashB, 200)
	c.Invoke(t, stackitem.Null{}, "send", c.CommitteeHash, 150, hashA, hashB)
	c.Invoke(t, stackitem.Make(250), "financerBalance", hashA)
	c.Invoke(t, stackitem.Make(150), "financerBalance", hashB)

	c.InvokeFail(t, "insufficient balance", "send", c.CommitteeHash, 251, hashA, hashB)

	stranger := c.NewAccount(t)
	c.InvokeFail(t, "relay is not registered", "send", c.CommitteeHash, 10, stranger.ScriptHash(), hashB)

	// Self-transfer must not create balance out of thin air.
	c.Invoke(t, stackitem.Null{}, "send", c.CommitteeHash, 50, hashA, hashA)
	c.Invoke(t, stackitem.Make(250), "financerBalance", hashA)

	// 400 of the 1200 deposited is allocated by now.
	c.InvokeFail(t, "insufficient balance", "send", c.CommitteeHash, 801, c.Hash, hashB)
	c.Invoke(t, stackitem.Make(1200), "totalBalance")
}

func TestWithdraw(t *testing.T) {
	c := newVaultInvoker(t, 0, hourMS)

	relay := c.NewAccount(t)
	cRelay := c.WithSigners(relay)
	relayHash := relay.ScriptHash()

	cRelay.InvokeFail(t, "relay is not registered", "withdraw", relayHash, 100)

	cRelay.Invoke(t, stackitem.Null{}, "register", relayHash, 1000)
	c.Invoke(t, stackitem.Null{}, "send", c.CommitteeHash, 400, c.Hash, relayHash)

	cRelay.InvokeFail(t, "insufficient balance", "withdraw", relayHash, 401)
	cRelay.InvokeFail(t, "non positive amount", "withdraw", relayHash, 0)
	cRelay.InvokeFail(t, "witness check failed", "withdraw", c.CommitteeHash, 100)

	txReq := cRelay.Invoke(t, stackitem.Null{}, "withdraw", relayHash, 300)
	unlockAt := int64(c.TopBlock(t).Timestamp) + hourMS

	c.CheckTxNotificationEvent(t, txReq, 0, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "WithdrawRequest",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(relayHash.BytesBE()),
			stackitem.Make(300),
			stackitem.Make(unlockAt),
		}),
	})

	// Balance is debited at request time, assets stay in custody.
	c.Invoke(t, stackitem.Make(100), "financerBalance", relayHash)
	c.Invoke(t, stackitem.Make(700), "totalBalance")
	require.Equal(t, big.NewInt(1000), c.Chain.GetUtilityTokenBalance(c.Hash))

	c.Invoke(t, stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(300),
		stackitem.Make(unlockAt),
	}), "pendingWithdrawal", relayHash)

	cRelay.InvokeFail(t, "withdrawal is timelocked", "completeWithdraw", relayHash)
	cRelay.InvokeFail(t, "withdrawal is already pending", "withdraw", relayHash, 100)

	// Exact-balance withdrawal is not possible while another one cools
	// down, but the sufficiency check itself is inclusive.
	require.Equal(t, big.NewInt(1000), c.Chain.GetUtilityTokenBalance(c.Hash))
}

func TestWithdrawRelease(t *testing.T) {
	c := newVaultInvoker(t, 0, 1)

	relay := c.NewAccount(t)
	cRelay := c.WithSigners(relay)
	relayHash := relay.ScriptHash()

	cRelay.InvokeFail(t, "no pending withdrawal", "completeWithdraw", relayHash)

	cRelay.Invoke(t, stackitem.Null{}, "register", relayHash, 500)
	c.Invoke(t, stackitem.Null{}, "send", c.CommitteeHash, 200, c.Hash, relayHash)

	// Full balance may be withdrawn.
	cRelay.Invoke(t, stackitem.Null{}, "withdraw", relayHash, 200)

	c.AddNewBlock(t)
	c.AddNewBlock(t)

	txDone := cRelay.Invoke(t, stackitem.Null{}, "completeWithdraw", relayHash)
	// Index 0 is the GAS Transfer produced by the release itself.
	c.CheckTxNotificationEvent(t, txDone, 1, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "Withdrawn",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(relayHash.BytesBE()),
			stackitem.Make(200),
		}),
	})

	require.Equal(t, big.NewInt(300), c.Chain.GetUtilityTokenBalance(c.Hash))
	c.Invoke(t, stackitem.Make(300), "totalBalance")
	c.Invoke(t, stackitem.Make(0), "financerBalance", relayHash)
	c.Invoke(t, stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(0),
		stackitem.Make(0),
	}), "pendingWithdrawal", relayHash)

	cRelay.InvokeFail(t, "no pending withdrawal", "completeWithdraw", relayHash)
}

func TestWithdrawImmediate(t *testing.T) {
	c := newVaultInvoker(t, 0, 0)

	relay := c.NewAccount(t)
	cRelay := c.WithSigners(relay)
	relayHash := relay.ScriptHash()

	cRelay.Invoke(t, stackitem.Null{}, "register", relayHash, 500)
	c.Invoke(t, stackitem.Null{}, "send", c.CommitteeHash, 200, c.Hash, relayHash)

	txW := cRelay.Invoke(t, stackitem.Null{}, "withdraw", relayHash, 200)
	c.CheckTxNotificationEvent(t, txW, 1, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "Withdrawn",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(relayHash.BytesBE()),
			stackitem.Make(200),
		}),
	})

	require.Equal(t, big.NewInt(300), c.Chain.GetUtilityTokenBalance(c.Hash))
	c.Invoke(t, stackitem.Make(300), "totalBalance")
	c.Invoke(t, stackitem.Make(0), "financerBalance", relayHash)
	c.Invoke(t, stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(0),
		stackitem.Make(0),
	}), "pendingWithdrawal", relayHash)
}

func TestRelays(t *testing.T) {
	c := newVaultInvoker(t, 0, hourMS)

	relayA := c.NewAccount(t)
	relayB := c.NewAccount(t)

	c.WithSigners(relayA).Invoke(t, stackitem.Null{}, "register", relayA.ScriptHash(), 1)
	c.WithSigners(relayB).Invoke(t, stackitem.Null{}, "register", relayB.ScriptHash(), 1)

	s, err := c.TestInvoke(t, "relays")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	iter, ok := s.Pop().Value().(*storage.Iterator)
	require.True(t, ok)

	var accounts [][]byte
	for iter.Next() {
		b, err := iter.Value().TryBytes()
		require.NoError(t, err)
		accounts = append(accounts, b)
	}

	require.ElementsMatch(t, [][]byte{
		relayA.ScriptHash().BytesBE(),
		relayB.ScriptHash().BytesBE(),
	}, accounts)
}

func TestOnNEP17Payment(t *testing.T) {
	c := newVaultInvoker(t, 0, hourMS)
	gasHash := c.NativeHash(t, nativenames.Gas)
	neoHash := c.NativeHash(t, nativenames.Neo)

	// Payment in the configured asset is accepted.
	gasInvoker := c.CommitteeInvoker(gasHash)
	gasInvoker.Invoke(t, stackitem.NewBool(true), "transfer",
		c.CommitteeHash, c.Hash, 10, nil)
	require.Equal(t, big.NewInt(10), c.Chain.GetUtilityTokenBalance(c.Hash))

	// Payment in any other token is aborted.
	neoInvoker := c.CommitteeInvoker(neoHash)
	neoInvoker.InvokeFail(t, "ABORT", "transfer",
		c.CommitteeHash, c.Hash, 1, nil)
}

func TestUpdateUnauthorized(t *testing.T) {
	c := newVaultInvoker(t, 0, 0)

	stranger := c.NewAccount(t)
	c.WithSigners(stranger).InvokeFail(t, "unauthorized", "update", []byte{1, 2, 3}, []byte{4, 5, 6}, nil)
}
