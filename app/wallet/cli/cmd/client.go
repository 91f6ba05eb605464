package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/statecore/foundation/blockchain/database"
	"github.com/ardanlabs/statecore/foundation/blockchain/extension"
	"github.com/ardanlabs/statecore/foundation/blockchain/module"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type chainInfo struct {
	Chain struct {
		Hash         common.Hash `json:"hash"`
		SpecVersion  uint32      `json:"spec_version"`
		TxVersion    uint32      `json:"tx_version"`
		MetadataHash common.Hash `json:"metadata_hash"`
	} `json:"chain"`
}

type account struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Free    uint64             `json:"free"`
	Nonce   uint64             `json:"nonce"`
}

type accountInfo struct {
	Accounts []account `json:"accounts"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// =============================================================================

func getJSON(path string, v any) error {
	resp, err := http.Get(url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, v)
}

func postJSON(path string, body any, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(url+path, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if err := json.Unmarshal(data, &er); err != nil || er.Error == "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, data)
		}
		if er.Reason != "" {
			return fmt.Errorf("status %d: %s: %s", resp.StatusCode, er.Reason, er.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, er.Error)
	}

	return json.Unmarshal(data, v)
}

// =============================================================================

func queryAccount(accountID database.AccountID) (account, error) {
	var ai accountInfo
	if err := getJSON("/v1/accounts/list/"+accountID.Hex(), &ai); err != nil {
		return account{}, err
	}

	if len(ai.Accounts) == 0 {
		return account{}, fmt.Errorf("account %s not found", accountID)
	}

	return ai.Accounts[0], nil
}

// buildCall looks up the position of the module in the node's registry and
// encodes the call against it.
func buildCall(moduleName string, call module.Call) (database.Call, error) {
	var md module.Metadata
	if err := getJSON("/v1/metadata", &md); err != nil {
		return database.Call{}, err
	}

	for _, m := range md.Modules {
		if m.Name != moduleName {
			continue
		}

		args, err := call.Encode()
		if err != nil {
			return database.Call{}, err
		}

		c := database.Call{
			Module:   m.Index,
			Function: call.Function(),
			Args:     hexutil.Bytes(args),
		}

		return c, nil
	}

	return database.Call{}, fmt.Errorf("module %q not registered on the node", moduleName)
}

// signingParams returns the parameters for an immortal transaction with the
// specified nonce and tip.
func signingParams(nonce uint64, tip uint64, checkMetadata bool) (extension.Params, error) {
	var ci chainInfo
	if err := getJSON("/v1/genesis/list", &ci); err != nil {
		return extension.Params{}, err
	}

	p := extension.Params{
		Version: extension.Version{
			SpecVersion: ci.Chain.SpecVersion,
			TxVersion:   ci.Chain.TxVersion,
		},
		Genesis: ci.Chain.Hash,
		Nonce:   nonce,
		Tip:     tip,
	}

	if checkMetadata {
		hash := ci.Chain.MetadataHash
		p.Metadata = &hash
	}

	return p, nil
}
