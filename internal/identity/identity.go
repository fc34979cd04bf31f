// Package identity implements SRP6a mutual authentication with Argon2id
// password hashing, used by the Auth listener's handshake to verify
// account credentials without a cleartext password ever crossing the
// wire.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/argon2"

	"github.com/udisondev/wildstar-worldd/internal/ports"
)

// randReader is the entropy source for ephemeral secrets. Overridable
// in tests to drive a deterministic SRP6a exchange end to end.
var randReader io.Reader = rand.Reader

// SRP6 group parameters (RFC 5054, 2048-bit group), matching what a
// modern SRP6a client implementation ships.
var (
	srpN, _ = new(big.Int).SetString(
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73",
		16,
	)
	srpG = big.NewInt(2)
)

// k is the SRP6a multiplier, k = H(N, g).
func srpK() *big.Int {
	h := sha1.New()
	h.Write(srpN.Bytes())
	h.Write(srpG.Bytes())
	return new(big.Int).SetBytes(h.Sum(nil))
}

// Verifier is the server-side persisted credential: a salt and the
// password verifier v = g^x mod N, x = H(salt || Argon2id(email:password)).
type Verifier struct {
	Salt []byte
	V    *big.Int
}

// argonParams are conservative interactive-login defaults.
const (
	argonTime    = 2
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltSize     = 16
)

// NewVerifier derives a fresh salt and verifier for email/password,
// suitable for persisting as the account's credential record.
func NewVerifier(email, password string) (Verifier, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return Verifier{}, fmt.Errorf("identity: generating salt: %w", err)
	}
	x := derivePrivateKey(salt, email, password)
	v := new(big.Int).Exp(srpG, x, srpN)
	return Verifier{Salt: salt, V: v}, nil
}

// derivePrivateKey computes x = H(salt || Argon2id(email:password)),
// stretching the password with Argon2id before feeding it into SRP so
// an attacker who steals v still faces memory-hard cracking.
func derivePrivateKey(salt []byte, email, password string) *big.Int {
	stretched := argon2.IDKey([]byte(email+":"+password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	h := sha1.New()
	h.Write(salt)
	h.Write(stretched)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// ServerSession holds the server's half of one in-progress SRP6a
// exchange between sending B and verifying the client's proof M1.
type ServerSession struct {
	verifier Verifier
	b        *big.Int
	bPub     *big.Int
}

// Checker implements ports.IdentityCheck against a verifier lookup
// function, leaving account storage to the caller.
type Checker struct {
	lookup func(ctx context.Context, email string) (Verifier, bool, error)
}

// NewChecker builds a Checker that resolves verifiers via lookup.
func NewChecker(lookup func(ctx context.Context, email string) (Verifier, bool, error)) *Checker {
	return &Checker{lookup: lookup}
}

// beginServerSession picks a random server secret b and computes the
// public ephemeral B = k*v + g^b mod N.
func beginServerSession(v Verifier) (*ServerSession, error) {
	b, err := rand.Int(randReader, srpN)
	if err != nil {
		return nil, fmt.Errorf("identity: generating server secret: %w", err)
	}
	gb := new(big.Int).Exp(srpG, b, srpN)
	kv := new(big.Int).Mul(srpK(), v.V)
	bPub := new(big.Int).Mod(new(big.Int).Add(kv, gb), srpN)
	return &ServerSession{verifier: v, b: b, bPub: bPub}, nil
}

// VerifyCredentials runs one full SRP6a exchange: a is the client's
// public ephemeral A, m1 is the client's proof. It returns the server
// proof m2 and a fresh session key on success.
func (c *Checker) VerifyCredentials(ctx context.Context, email string, a, m1 []byte) (m2 []byte, sessionKey [16]byte, err error) {
	v, ok, err := c.lookup(ctx, email)
	if err != nil {
		return nil, sessionKey, fmt.Errorf("identity: looking up %s: %w", email, err)
	}
	if !ok {
		return nil, sessionKey, fmt.Errorf("identity: unknown account %s", email)
	}

	sess, err := beginServerSession(v)
	if err != nil {
		return nil, sessionKey, err
	}

	aPub := new(big.Int).SetBytes(a)
	if aPub.Sign() == 0 {
		return nil, sessionKey, fmt.Errorf("identity: client public ephemeral is zero")
	}

	u := scramble(aPub, sess.bPub)
	// premaster secret S = (A * v^u)^b mod N
	vu := new(big.Int).Exp(v.V, u, srpN)
	base := new(big.Int).Mod(new(big.Int).Mul(aPub, vu), srpN)
	s := new(big.Int).Exp(base, sess.b, srpN)

	key := sha1.Sum(s.Bytes())
	expectedM1 := sha1.Sum(append(append(aPub.Bytes(), sess.bPub.Bytes()...), key[:]...))
	if !constantTimeEqual(expectedM1[:], m1) {
		return nil, sessionKey, fmt.Errorf("identity: proof mismatch for %s", email)
	}

	proof2 := sha1.Sum(append(append(aPub.Bytes(), expectedM1[:]...), key[:]...))
	copy(sessionKey[:], key[:16])
	return proof2[:], sessionKey, nil
}

// scramble computes u = H(A, B), binding the exchange to both ephemerals.
func scramble(aPub, bPub *big.Int) *big.Int {
	h := sha1.New()
	h.Write(aPub.Bytes())
	h.Write(bPub.Bytes())
	return new(big.Int).SetBytes(h.Sum(nil))
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

var _ ports.IdentityCheck = (*Checker)(nil)
