package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stablevault/native/vault"
)

func TestVaultStoreRoundTrip(t *testing.T) {
	store := NewVaultStore(NewMemDB())

	_, ok, err := store.LoadVault()
	require.NoError(t, err)
	require.False(t, ok, "empty store must report absence without error")

	owner := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	require.NoError(t, store.SaveVault(&vault.State{Owner: owner, NextDividendTime: 1_800_086_400}))

	loaded, ok, err := store.LoadVault()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner, loaded.Owner)
	require.Equal(t, uint64(1_800_086_400), loaded.NextDividendTime)
}

func TestVaultStoreOverwrites(t *testing.T) {
	store := NewVaultStore(NewMemDB())
	first := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	second := common.HexToAddress("0x00000000000000000000000000000000000000e5")

	require.NoError(t, store.SaveVault(&vault.State{Owner: first, NextDividendTime: 100}))
	require.NoError(t, store.SaveVault(&vault.State{Owner: second, NextDividendTime: 200}))

	loaded, ok, err := store.LoadVault()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second, loaded.Owner)
	require.Equal(t, uint64(200), loaded.NextDividendTime)
}

func TestVaultStoreRejectsNilState(t *testing.T) {
	store := NewVaultStore(NewMemDB())
	require.Error(t, store.SaveVault(nil))
}

func TestVaultStoreCorruptRecord(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put(vaultStateKey, []byte{0xff, 0x01}))
	store := NewVaultStore(db)
	_, _, err := store.LoadVault()
	require.Error(t, err)
}
