package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"stablevault/native/vault"
)

var vaultStateKey = []byte("vault/state")

// vaultRecord is the RLP wire shape of the durable vault state.
type vaultRecord struct {
	Owner            common.Address
	NextDividendTime uint64
}

// VaultStore persists the vault state record in a key-value database.
type VaultStore struct {
	db Database
}

// NewVaultStore constructs a store over the supplied database.
func NewVaultStore(db Database) *VaultStore {
	return &VaultStore{db: db}
}

// LoadVault returns the stored state record, reporting absence without error.
func (s *VaultStore) LoadVault() (*vault.State, bool, error) {
	raw, err := s.db.Get(vaultStateKey)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: load vault state: %w", err)
	}
	var record vaultRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return nil, false, fmt.Errorf("storage: decode vault state: %w", err)
	}
	return &vault.State{Owner: record.Owner, NextDividendTime: record.NextDividendTime}, true, nil
}

// SaveVault writes the state record.
func (s *VaultStore) SaveVault(st *vault.State) error {
	if st == nil {
		return fmt.Errorf("storage: nil vault state")
	}
	raw, err := rlp.EncodeToBytes(vaultRecord{Owner: st.Owner, NextDividendTime: st.NextDividendTime})
	if err != nil {
		return fmt.Errorf("storage: encode vault state: %w", err)
	}
	return s.db.Put(vaultStateKey, raw)
}
