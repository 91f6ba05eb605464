// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the accounts of the chain.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of accounts for name lookup.
type NameService struct {
	accounts map[database.AccountID]string
	names    map[string]database.AccountID
}

// New constructs a name service with accounts from the zblock/accounts folder.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[database.AccountID]string),
		names:    make(map[string]database.AccountID),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
		name := strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		ns.accounts[accountID] = name
		ns.names[name] = accountID

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified account.
func (ns *NameService) Lookup(accountID database.AccountID) string {
	name, exists := ns.accounts[accountID]
	if !exists {
		return accountID.String()
	}
	return name
}

// Resolve returns the account for a name. A hex account id resolves to
// itself.
func (ns *NameService) Resolve(name string) (database.AccountID, error) {
	if accountID, exists := ns.names[name]; exists {
		return accountID, nil
	}

	return database.ToAccountID(name)
}

// Copy returns a copy of the map of names and accounts.
func (ns *NameService) Copy() map[database.AccountID]string {
	cpy := make(map[database.AccountID]string, len(ns.accounts))
	for accountID, name := range ns.accounts {
		cpy[accountID] = name
	}
	return cpy
}
