package selector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Size is the number of digest bytes kept from the Keccak-256 hash.
const Size = 4

var ErrInvalidHex = errors.New("invalid selector hex")

// Selector is the 4-byte function selector of a canonical signature.
type Selector [Size]byte

// Compute returns the first four bytes of keccak256(canonical).
func Compute(canonical string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(canonical))[:Size])
	return s
}

// Bytes returns a copy of the selector bytes.
func (s Selector) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, s[:])
	return out
}

// Hex renders the selector as a lowercase 0x-prefixed string.
func (s Selector) Hex() string {
	return hexutil.Encode(s[:])
}

func (s Selector) String() string {
	return s.Hex()
}

// ParseHex accepts "0xa9059cbb" or "a9059cbb" in any case.
func ParseHex(value string) (Selector, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if !strings.HasPrefix(value, "0x") {
		value = "0x" + value
	}
	if len(value) != 2+2*Size {
		return Selector{}, fmt.Errorf("%w: %q must have %d hex digits", ErrInvalidHex, value, 2*Size)
	}
	raw, err := hexutil.Decode(value)
	if err != nil {
		return Selector{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	var s Selector
	copy(s[:], raw)
	return s, nil
}

// IsHex reports whether value looks like a selector rather than a text signature.
func IsHex(value string) bool {
	_, err := ParseHex(value)
	return err == nil
}
