package identity

import (
	"bytes"
	"context"
	"crypto/sha1"
	"io"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedReader replays a fixed byte stream, giving deterministic
// ephemeral secrets so a full SRP6a exchange can be asserted end to end.
type fixedReader struct {
	data []byte
}

func (f *fixedReader) Read(p []byte) (int, error) {
	n := copy(p, f.data)
	for i := n; i < len(p); i++ {
		p[i] = 0x42
	}
	return len(p), nil
}

func withFixedRandom(t *testing.T, seed byte) {
	t.Helper()
	orig := randReader
	randReader = &fixedReader{data: bytes.Repeat([]byte{seed}, 256)}
	t.Cleanup(func() { randReader = orig })
}

// clientProve runs the client side of one SRP6a exchange against a
// known verifier and server public ephemeral, returning A and M1 the
// way a real client would compute them.
func clientProve(v Verifier, email, password string, lowerA, bPub *big.Int) (a, m1 []byte) {
	aPub := new(big.Int).Exp(srpG, lowerA, srpN)

	u := scramble(aPub, bPub)
	x := derivePrivateKey(v.Salt, email, password)

	gx := new(big.Int).Exp(srpG, x, srpN)
	kgx := new(big.Int).Mul(srpK(), gx)
	base := new(big.Int).Mod(new(big.Int).Sub(bPub, kgx), srpN)
	exp := new(big.Int).Add(lowerA, new(big.Int).Mul(u, x))
	s := new(big.Int).Exp(base, exp, srpN)

	key := sha1.Sum(s.Bytes())
	m1Sum := sha1.Sum(append(append(aPub.Bytes(), bPub.Bytes()...), key[:]...))
	return aPub.Bytes(), m1Sum[:]
}

func TestVerifyCredentialsCorrectPasswordSucceeds(t *testing.T) {
	withFixedRandom(t, 0x11)
	v, err := NewVerifier("player@example.test", "hunter2")
	require.NoError(t, err)

	// beginServerSession consumes randReader the same way
	// VerifyCredentials will, so recompute the same B it derives.
	sess, err := beginServerSession(v)
	require.NoError(t, err)
	withFixedRandom(t, 0x11) // reset so VerifyCredentials draws the same b

	lowerA := big.NewInt(998877665544)
	a, m1 := clientProve(v, "player@example.test", "hunter2", lowerA, sess.bPub)

	c := NewChecker(func(ctx context.Context, email string) (Verifier, bool, error) {
		return v, true, nil
	})
	m2, sessionKey, err := c.VerifyCredentials(context.Background(), "player@example.test", a, m1)
	require.NoError(t, err)
	assert.NotEmpty(t, m2)
	assert.NotEqual(t, [16]byte{}, sessionKey)
}

func TestVerifyCredentialsWrongPasswordFails(t *testing.T) {
	withFixedRandom(t, 0x22)
	v, err := NewVerifier("player@example.test", "hunter2")
	require.NoError(t, err)

	sess, err := beginServerSession(v)
	require.NoError(t, err)
	withFixedRandom(t, 0x22)

	lowerA := big.NewInt(123456789)
	a, m1 := clientProve(v, "player@example.test", "WRONG-password", lowerA, sess.bPub)

	c := NewChecker(func(ctx context.Context, email string) (Verifier, bool, error) {
		return v, true, nil
	})
	_, _, err = c.VerifyCredentials(context.Background(), "player@example.test", a, m1)
	assert.Error(t, err)
}

func TestVerifyCredentialsUnknownAccount(t *testing.T) {
	c := NewChecker(func(ctx context.Context, email string) (Verifier, bool, error) {
		return Verifier{}, false, nil
	})
	_, _, err := c.VerifyCredentials(context.Background(), "nobody@example.test", []byte{1}, []byte{2})
	assert.Error(t, err)
}

func TestVerifyCredentialsRejectsZeroPublicEphemeral(t *testing.T) {
	v, err := NewVerifier("player@example.test", "hunter2")
	require.NoError(t, err)
	c := NewChecker(func(ctx context.Context, email string) (Verifier, bool, error) {
		return v, true, nil
	})
	_, _, err = c.VerifyCredentials(context.Background(), "player@example.test", []byte{0}, []byte{0})
	assert.Error(t, err)
}

func TestNewVerifierUniqueSaltsPerCall(t *testing.T) {
	v1, err := NewVerifier("a@example.test", "pw")
	require.NoError(t, err)
	v2, err := NewVerifier("a@example.test", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, v1.Salt, v2.Salt)
}

var _ io.Reader = (*fixedReader)(nil)
