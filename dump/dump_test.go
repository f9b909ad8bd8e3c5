package dump_test

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/relayvault/vault-contract/dump"
	"github.com/stretchr/testify/require"
)

func TestCreatorReader(t *testing.T) {
	dir := t.TempDir()
	id := dump.ID{Label: "unittest", Block: 42}

	c, err := dump.NewCreator(dir, id)
	require.NoError(t, err)

	var st state.Contract
	st.Hash = util.Uint160{1, 2, 3}

	require.NoError(t, c.SetContract(st))
	require.NoError(t, c.Write([]byte("totalVault"), []byte{0x0a}))
	require.NoError(t, c.Write([]byte{'a', 0xff}, []byte{0x01}))
	require.NoError(t, c.Flush())
	c.Close()

	// Second dump with the same ID must be rejected.
	_, err = dump.NewCreator(dir, id)
	require.Error(t, err)

	var read int
	err = dump.IterateDumps(dir, func(gotID dump.ID, r *dump.Reader) {
		read++
		require.Equal(t, id, gotID)
		require.Equal(t, st.Hash, r.ContractState().Hash)

		var items [][2][]byte
		require.NoError(t, r.IterateStorage(func(key, value []byte) {
			items = append(items, [2][]byte{key, value})
		}))
		require.Len(t, items, 2)
		require.Equal(t, []byte("totalVault"), items[0][0])
		require.Equal(t, []byte{0x0a}, items[0][1])
	})
	require.NoError(t, err)
	require.Equal(t, 1, read)
}
