// Package commitment binds a secret character and salt into a single BN254
// scalar field element. The off-circuit hash mirrors the in-circuit one in
// package zk, so a commitment published at join time can be re-derived and
// constrained inside every proof.
package commitment

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"

	"guesswho-zk/internal/game"
)

var ErrInvalidElement = errors.New("invalid field element")

// Commit computes H(salt, c0, c1, c2, c3) with the Poseidon2 Merkle-Damgard
// hasher over the BN254 scalar field.
func Commit(c game.Character, salt fr.Element) fr.Element {
	h := poseidon2.NewMerkleDamgardHasher()

	saltBytes := salt.Bytes()
	h.Write(saltBytes[:])

	var e fr.Element
	for _, v := range c {
		e.SetUint64(uint64(v))
		b := e.Bytes()
		h.Write(b[:])
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// NewSalt draws a uniformly random non-zero salt.
func NewSalt() (fr.Element, error) {
	var salt fr.Element
	for {
		v, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
		if err != nil {
			return salt, err
		}
		if v.Sign() != 0 {
			salt.SetBigInt(v)
			return salt, nil
		}
	}
}

// SaltFromUint64 is used by fixtures that need a known salt.
func SaltFromUint64(v uint64) fr.Element {
	var salt fr.Element
	salt.SetUint64(v)
	return salt
}

// Parse reads a canonical field element written either as 0x-prefixed hex
// or as decimal. Values at or above the modulus are rejected instead of
// being reduced.
func Parse(s string) (fr.Element, error) {
	var e fr.Element
	s = strings.TrimSpace(s)
	if s == "" {
		return e, fmt.Errorf("%w: empty", ErrInvalidElement)
	}
	v := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = v.SetString(s[2:], 16)
	} else {
		_, ok = v.SetString(s, 10)
	}
	if !ok || v.Sign() < 0 {
		return e, fmt.Errorf("%w: %q", ErrInvalidElement, s)
	}
	if v.Cmp(fr.Modulus()) >= 0 {
		return e, fmt.Errorf("%w: %q exceeds the scalar field", ErrInvalidElement, s)
	}
	e.SetBigInt(v)
	return e, nil
}

// Hex renders e as 0x-prefixed minimal hex, the format used in payloads.
func Hex(e fr.Element) string {
	return fmt.Sprintf("0x%x", BigInt(e))
}

// BigInt returns the canonical integer value of e.
func BigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
