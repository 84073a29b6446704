package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var ErrInvalidABI = errors.New("invalid ABI document")

// ABIFunctions returns the canonical signature of every method declared in
// an ABI JSON document, sorted by method name. Both a bare ABI array and a
// compiler artifact of the form {"abi": [...]} are accepted.
func ABIFunctions(document []byte) ([]string, error) {
	payload := bytes.TrimSpace(document)
	if len(payload) > 0 && payload[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(payload, &artifact); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidABI, err)
		}
		if len(artifact.ABI) == 0 {
			return nil, fmt.Errorf("%w: object has no \"abi\" field", ErrInvalidABI)
		}
		payload = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidABI, err)
	}

	names := make([]string, 0, len(parsed.Methods))
	for name := range parsed.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	sigs := make([]string, 0, len(names))
	for _, name := range names {
		sigs = append(sigs, parsed.Methods[name].Sig)
	}
	return sigs, nil
}
