package cryptixwallet_test

import (
	"reflect"
	"testing"

	cryptixwallet "github.com/cryptix-network/cryptix-wallet-go"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func TestExports(t *testing.T) {
	typeOf := func(ptr any) reflect.Type { return reflect.TypeOf(ptr).Elem() }
	fixtures := []struct {
		name string
		typ  reflect.Type
		kind reflect.Kind
	}{
		{name: "Wallet", typ: typeOf((*cryptixwallet.Wallet)(nil)), kind: reflect.Struct},
		{name: "Core", typ: typeOf((*cryptixwallet.Core)(nil)), kind: reflect.Struct},
		{name: "Storage", typ: typeOf((*cryptixwallet.Storage)(nil)), kind: reflect.Interface},
		{name: "Log", typ: reflect.TypeOf(cryptixwallet.Log), kind: reflect.Ptr},
		{name: "WorkerLog", typ: reflect.TypeOf(cryptixwallet.WorkerLog), kind: reflect.Ptr},
		{name: "InitCryptixFramework", typ: reflect.TypeOf(cryptixwallet.InitCryptixFramework), kind: reflect.Func},
		{name: "Helper", typ: reflect.TypeOf(cryptixwallet.Helper), kind: reflect.Struct},
		{name: "ConfirmationCount", typ: reflect.TypeOf(cryptixwallet.ConfirmationCount), kind: reflect.Int},
		{name: "CoinbaseCfmCount", typ: reflect.TypeOf(cryptixwallet.CoinbaseCfmCount), kind: reflect.Int},
		{name: "RPCClient", typ: typeOf((*cryptixwallet.RPCClient)(nil)), kind: reflect.Interface},
		{name: "Transaction", typ: typeOf((*cryptixwallet.Transaction)(nil)), kind: reflect.Struct},
		{name: "SubscriberItem", typ: typeOf((*cryptixwallet.SubscriberItem[int])(nil)), kind: reflect.Struct},
		{name: "SubscriberItemMap", typ: typeOf((*cryptixwallet.SubscriberItemMap[int])(nil)), kind: reflect.Struct},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			require.Equal(t, f.kind, f.typ.Kind())
		})
	}

	require.NotNil(t, cryptixwallet.Log)
	require.NotNil(t, cryptixwallet.WorkerLog)
	require.NotEqual(t,
		typeOf((*cryptixwallet.Wallet)(nil)), typeOf((*cryptixwallet.Core)(nil)))

	cb := typeOf((*cryptixwallet.Callback[string])(nil))
	require.Equal(t, reflect.Func, cb.Kind())
	require.Equal(t, 1, cb.NumIn())
	require.Equal(t, reflect.String, cb.In(0).Kind())
	require.Zero(t, cb.NumOut())

	require.Equal(t, "cryptix-wallet", cryptixwallet.Log.Data["module"])
	require.NotContains(t, cryptixwallet.Log.Data, "worker")
	require.Equal(t, "cryptix-wallet-worker", cryptixwallet.WorkerLog.Data["worker"])
}

func TestConfirmationCounts(t *testing.T) {
	require.Positive(t, cryptixwallet.ConfirmationCount)
	require.GreaterOrEqual(t, cryptixwallet.CoinbaseCfmCount, cryptixwallet.ConfirmationCount)
}

func TestSubscriberItemMap(t *testing.T) {
	m := cryptixwallet.SubscriberItemMap[string]{}
	var got []string
	first := m.Add("balance", func(p string) { got = append(got, "first:"+p) })
	m.Add("balance", func(p string) { got = append(got, "second:"+p) })

	require.Equal(t, 2, m.Notify("balance", "x"))
	require.Equal(t, []string{"first:x", "second:x"}, got)

	items := m.Items("balance")
	require.Len(t, items, 2)
	require.Equal(t, first, items[0].UID)

	for _, item := range items {
		key, ok := m.Remove(item.UID)
		require.True(t, ok)
		require.Equal(t, "balance", key)
	}
	require.False(t, m.Has("balance"))
	require.Zero(t, m.Len())
}

func TestWalletIsAdapted(t *testing.T) {
	cryptixwallet.ShutdownCryptixFramework()
	w, err := cryptixwallet.FromMnemonic(testMnemonic, cryptixwallet.Mainnet)
	require.ErrorIs(t, err, cryptixwallet.ErrFrameworkNotInitialized)
	require.Nil(t, w)

	require.NoError(t, cryptixwallet.InitCryptixFramework(cryptixwallet.FrameworkConfig{Workers: 1}))
	t.Cleanup(cryptixwallet.ShutdownCryptixFramework)

	w, err = cryptixwallet.FromMnemonic(testMnemonic, cryptixwallet.Mainnet)
	require.NoError(t, err)
	defer w.Close()
	require.Same(t, cryptixwallet.WorkerLog, w.Logger())
	require.Equal(t, "cryptix-wallet-worker", w.Logger().Data["worker"])

	raw, err := cryptixwallet.CoreFromMnemonic(testMnemonic, cryptixwallet.Mainnet)
	require.NoError(t, err)
	defer raw.Close()
	require.Same(t, cryptixwallet.Log, raw.Logger())
	require.NotContains(t, raw.Logger().Data, "worker")
	require.Equal(t, w.ReceiveAddress(), raw.ReceiveAddress())

	apis := map[string]cryptixwallet.WalletAPI{"wallet": w, "core": raw}
	for name, api := range apis {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, cryptixwallet.Mainnet.Name, api.Network().Name)
			require.NotEmpty(t, api.Addresses())
		})
	}
}
