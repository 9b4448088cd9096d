package types_test

import (
	"testing"

	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/stretchr/testify/require"
)

func TestSubscriberItemMap(t *testing.T) {
	t.Run("preserves insertion order within a key", func(t *testing.T) {
		m := types.NewSubscriberItemMap[int]()
		calls := make([]string, 0)

		first := m.Add("balance", func(int) { calls = append(calls, "first") })
		second := m.Add("balance", func(int) { calls = append(calls, "second") })

		items := m.Items("balance")
		require.Len(t, items, 2)
		require.Equal(t, first, items[0].UID)
		require.Equal(t, second, items[1].UID)

		require.Equal(t, 2, m.Notify("balance", 1))
		require.Equal(t, []string{"first", "second"}, calls)
	})

	t.Run("preserves key order", func(t *testing.T) {
		m := types.NewSubscriberItemMap[int]()
		m.Add("b", func(int) {})
		m.Add("a", func(int) {})
		m.Add("b", func(int) {})
		require.Equal(t, []string{"b", "a"}, m.Keys())
	})

	t.Run("prunes empty keys", func(t *testing.T) {
		m := types.NewSubscriberItemMap[string]()
		uid := m.Add("utxo-change", func(string) {})
		other := m.Add("daa-score-change", func(string) {})

		key, ok := m.Remove(uid)
		require.True(t, ok)
		require.Equal(t, "utxo-change", key)
		require.False(t, m.Has("utxo-change"))
		require.Equal(t, 1, m.Len())

		_, ok = m.Remove(uid)
		require.False(t, ok)

		_, ok = m.Remove(other)
		require.True(t, ok)
		require.Zero(t, m.Len())
		require.Empty(t, m.Keys())
	})

	t.Run("keeps remaining items ordered after removal", func(t *testing.T) {
		m := types.NewSubscriberItemMap[int]()
		a := m.Add("k", func(int) {})
		b := m.Add("k", func(int) {})
		c := m.Add("k", func(int) {})

		_, ok := m.Remove(b)
		require.True(t, ok)

		items := m.Items("k")
		require.Len(t, items, 2)
		require.Equal(t, a, items[0].UID)
		require.Equal(t, c, items[1].UID)
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var m types.SubscriberItemMap[int]
		require.Zero(t, m.Notify("missing", 0))
		require.Nil(t, m.Items("missing"))

		m.Put("k", types.SubscriberItem[int]{UID: "uid", Callback: func(int) {}})
		require.True(t, m.Has("k"))
	})
}

func TestUtxoMaturity(t *testing.T) {
	tests := []struct {
		name     string
		utxo     types.Utxo
		daaScore uint64
		mature   bool
	}{
		{
			name:     "regular below threshold",
			utxo:     types.Utxo{BlockDaaScore: 100},
			daaScore: 109,
			mature:   false,
		},
		{
			name:     "regular at threshold",
			utxo:     types.Utxo{BlockDaaScore: 100},
			daaScore: 110,
			mature:   true,
		},
		{
			name:     "coinbase needs more confirmations",
			utxo:     types.Utxo{BlockDaaScore: 100, IsCoinbase: true},
			daaScore: 150,
			mature:   false,
		},
		{
			name:     "coinbase at threshold",
			utxo:     types.Utxo{BlockDaaScore: 100, IsCoinbase: true},
			daaScore: 200,
			mature:   true,
		},
		{
			name:     "score behind block",
			utxo:     types.Utxo{BlockDaaScore: 100},
			daaScore: 50,
			mature:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.mature, tt.utxo.IsMature(tt.daaScore, 10, 100))
		})
	}
}
