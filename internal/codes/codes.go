// Package codes generates and resolves the short join codes players share
// to find each other's games.
package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

// Alphabet omits O/0, I/1 and L so codes stay unambiguous when read aloud
// or typed from a screenshot.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const Length = 6

// maxAttempts bounds the collision retry loop. The code space is 31^6, just
// under 9e8, so even at 100k live games a single attempt collides with
// probability ~1e-4 and this bound is effectively unreachable.
const maxAttempts = 10

var ErrExhausted = errors.New("could not allocate a unique code")

type Registry struct {
	store store.Store
}

func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

// Allocate returns a fresh code not held by any existing game. Codes are
// never recycled: a completed game keeps its code, so replay links stay
// shareable.
func (r *Registry) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		code, err := generate()
		if err != nil {
			return "", err
		}
		_, err = r.store.GetGameByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrExhausted
}

// Resolve looks up the game bound to code. Codes are matched
// case-insensitively.
func (r *Registry) Resolve(ctx context.Context, code string) (*model.Game, error) {
	return r.store.GetGameByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func generate() (string, error) {
	code := make([]byte, Length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(Alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}
