// Package codegen produces the short public codes used as alternate keys for
// products, carts and orders.
package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 6
)

var (
	// ErrCollision is returned by an insert callback when the candidate code is taken.
	ErrCollision = errors.New("code already in use")
	// ErrExhausted is returned by Retry when every attempt collided.
	ErrExhausted = errors.New("could not allocate a unique code")
)

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// Generator is swapped in tests to force collisions.
type Generator func() (string, error)

// Generate returns a random Length-character code over Alphabet.
func Generate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Retry calls insert with fresh codes until it succeeds, fails with an error
// other than ErrCollision, or attempts run out.
func Retry(gen Generator, attempts int, insert func(code string) error) error {
	if gen == nil {
		gen = Generate
	}
	for i := 0; i < attempts; i++ {
		code, err := gen()
		if err != nil {
			return err
		}
		err = insert(code)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCollision) {
			return err
		}
	}
	return ErrExhausted
}
