package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
)

const web3NonceTTL = 10 * time.Minute

// SignatureVerifier is the external collaborator that actually checks a
// wallet signature against a chain's curve (secp256k1 for Ethereum,
// ed25519 for Solana). The core only mints the nonce, stores it, and
// forwards the candidate signature for a yes/no answer.
type SignatureVerifier interface {
	Verify(ctx context.Context, chain, address, nonce, signature string) (bool, error)
}

// Web3 issues sign-in nonces and verifies the returned signature through an
// injected SignatureVerifier, one per chain.
type Web3 struct {
	rdb       *redis.Client
	verifiers map[string]SignatureVerifier
}

func NewWeb3(rdb *redis.Client, verifiers map[string]SignatureVerifier) *Web3 {
	return &Web3{rdb: rdb, verifiers: verifiers}
}

// IssueNonce mints and stores a one-time challenge for a chain/address pair.
func (w *Web3) IssueNonce(ctx context.Context, chain, address string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Internal(err)
	}
	nonce := hex.EncodeToString(buf)
	if err := w.rdb.Set(ctx, cache.Web3NonceKey(chain, address), nonce, web3NonceTTL).Err(); err != nil {
		return "", apperr.Internal(err)
	}
	return nonce, nil
}

// VerifySignature confirms signature covers the previously-issued nonce for
// chain/address, consuming the nonce so it cannot be replayed.
func (w *Web3) VerifySignature(ctx context.Context, chain, address, signature string) error {
	verifier, ok := w.verifiers[chain]
	if !ok {
		return apperr.BadRequest("unsupported chain: " + chain)
	}

	nonce, err := w.rdb.Get(ctx, cache.Web3NonceKey(chain, address)).Result()
	if err == redis.Nil {
		return apperr.Unauthorized("no pending sign-in challenge for this address")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	ok, err = verifier.Verify(ctx, chain, address, nonce, signature)
	if err != nil {
		return apperr.Unavailable("signature verification unavailable", 2)
	}
	if !ok {
		return apperr.Unauthorized("signature verification failed")
	}

	w.rdb.Del(ctx, cache.Web3NonceKey(chain, address))
	return nil
}
