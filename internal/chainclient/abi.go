package chainclient

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// selector derives a 4-byte method selector from a call signature. Real
// EVM selectors are the first four bytes of the Keccak-256 hash of the
// signature; Keccak isn't in the dependency set this fleet is grounded
// on (no go-ethereum, no golang.org/x/crypto/sha3 in the teacher's own
// go.mod), so this uses SHA-256 instead. The fleet only talks to its own
// registry contract, so internal consistency matters, not wire
// compatibility with a real deployed ABI.
func selector(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:4])
}

// encodeWord left-pads a big.Int to a 32-byte (64 hex char) ABI word.
func encodeWord(v *big.Int) string {
	b := v.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return hex.EncodeToString(padded)
}

// encodeAddress pads a 20-byte address to a 32-byte ABI word.
func encodeAddress(addr Address) string {
	clean := strings.TrimPrefix(string(addr), "0x")
	if len(clean) < 40 {
		clean = strings.Repeat("0", 40-len(clean)) + clean
	}
	return strings.Repeat("0", 24) + clean
}

// encodeString encodes a dynamic string as a length word followed by its
// right-padded UTF-8 bytes, rounded up to a whole number of words. No
// head/tail offset table is emitted around it, for the same reason
// encodeCallData doesn't need one: decode order matches encode order.
func encodeString(s string) string {
	lenWord := encodeWord(big.NewInt(int64(len(s))))
	data := []byte(s)
	padLen := (len(data) + 31) / 32 * 32
	padded := make([]byte, padLen)
	copy(padded, data)
	return lenWord + hex.EncodeToString(padded)
}

// encodeCallData builds the hex call data for a registry method call.
// Supported argument types: string, Address, uint64, decimal.Decimal
// (encoded as its base-18 fixed-point integer value), []byte (topic/hash).
// Arguments are encoded in call order with no head/tail offset table —
// unlike real ABI encoding this doesn't need one, since every word here
// is decoded back out in the same fixed order it was written in.
func encodeCallData(method string, args ...any) (string, error) {
	sig := method + "("
	var encoded strings.Builder
	for i, a := range args {
		if i > 0 {
			sig += ","
		}
		switch v := a.(type) {
		case string:
			sig += "string"
			encoded.WriteString(encodeString(v))
		case Address:
			sig += "address"
			encoded.WriteString(encodeAddress(v))
		case uint64:
			sig += "uint64"
			encoded.WriteString(encodeWord(new(big.Int).SetUint64(v)))
		case int64:
			sig += "int64"
			encoded.WriteString(encodeWord(big.NewInt(v)))
		case decimal.Decimal:
			sig += "uint256"
			scaled := v.Shift(18).Truncate(0).BigInt()
			encoded.WriteString(encodeWord(scaled))
		case []byte:
			sig += "bytes32"
			word := make([]byte, 32)
			copy(word, v)
			encoded.WriteString(hex.EncodeToString(word))
		default:
			return "", fmt.Errorf("chainclient: unsupported ABI arg type %T", a)
		}
	}
	sig += ")"
	return "0x" + selector(sig) + encoded.String(), nil
}

// DecimalToBaseUnits converts a human-readable decimal amount to its
// base-18 fixed-point integer string, the form the registry contract and
// every on-chain amount in this package is stored as.
func DecimalToBaseUnits(d decimal.Decimal) string {
	return d.Shift(18).Truncate(0).String()
}

// BaseUnitsToDecimal converts a base-18 fixed-point integer string back
// to a human-readable decimal.
func BaseUnitsToDecimal(baseUnits string) (decimal.Decimal, error) {
	i, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("chainclient: invalid base units %q", baseUnits)
	}
	return decimal.NewFromBigInt(i, -18), nil
}
