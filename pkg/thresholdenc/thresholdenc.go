// Package thresholdenc implements (n, 2f+1) threshold public-key
// encryption: every replica stores the same ciphertext of a verifier
// blob, but no single replica (nor any f of them) can decrypt it alone.
// Decryption needs 2f+1 partial shares combined via Shamir/Lagrange
// interpolation in the exponent.
//
// This is additive ElGamal over P-256 (crypto/elliptic + math/big),
// hybridized with AES-256-GCM for the bulk payload. See DESIGN.md for why
// this is built directly on stdlib primitives rather than a third-party
// threshold-cryptography library.
package thresholdenc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

var curve = elliptic.P256()

// Errors returned by this package.
var (
	ErrInsufficientShares = errors.New("thresholdenc: insufficient shares to combine")
	ErrDecryptionFailed   = errors.New("thresholdenc: auth tag verification failed")
	ErrDuplicateShare     = errors.New("thresholdenc: duplicate share index")
	ErrInvalidPublicKey   = errors.New("thresholdenc: invalid public key encoding")
)

const nonceSize = 12

// PublicKey is the replicated encryption key every node stores; it has no
// corresponding private key held in one place.
type PublicKey struct {
	X, Y *big.Int
}

// Bytes returns the compressed encoding of the public key.
func (k PublicKey) Bytes() []byte {
	return elliptic.MarshalCompressed(curve, k.X, k.Y)
}

// ParsePublicKey decodes a compressed public key, e.g. from cluster
// topology configuration.
func ParsePublicKey(b []byte) (PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(curve, b)
	if x == nil {
		return PublicKey{}, ErrInvalidPublicKey
	}
	return PublicKey{X: x, Y: y}, nil
}

// KeyShare is one replica's share of the threshold private key: a point
// (Index, Scalar) on the dealer's degree-(threshold-1) polynomial.
// Index is never 0; x=0 is reserved for the secret itself.
type KeyShare struct {
	Index  uint32
	Scalar *big.Int
}

// Deal runs a trusted-dealer setup, producing a public key and n key
// shares such that any `threshold` of them can decrypt and any
// `threshold-1` learn nothing. Callers pass threshold = 2f+1.
func Deal(n, threshold int) (PublicKey, []KeyShare, error) {
	if threshold < 1 || threshold > n {
		return PublicKey{}, nil, fmt.Errorf("thresholdenc: invalid threshold %d of %d", threshold, n)
	}
	order := curve.Params().N

	coeffs := make([]*big.Int, threshold)
	for i := range coeffs {
		c, err := rand.Int(rand.Reader, order)
		if err != nil {
			return PublicKey{}, nil, fmt.Errorf("thresholdenc: sampling polynomial: %w", err)
		}
		coeffs[i] = c
	}

	shares := make([]KeyShare, n)
	for i := 0; i < n; i++ {
		x := big.NewInt(int64(i + 1))
		shares[i] = KeyShare{Index: uint32(i + 1), Scalar: evalPoly(coeffs, x, order)}
	}

	px, py := curve.ScalarBaseMult(coeffs[0].Bytes())
	return PublicKey{X: px, Y: py}, shares, nil
}

func evalPoly(coeffs []*big.Int, x, order *big.Int) *big.Int {
	result := new(big.Int)
	xPow := big.NewInt(1)
	for _, c := range coeffs {
		term := new(big.Int).Mul(c, xPow)
		result.Add(result, term)
		result.Mod(result, order)
		xPow.Mul(xPow, x)
		xPow.Mod(xPow, order)
	}
	return result
}

// Ciphertext is an ElGamal-encrypted blob: an ephemeral curve point plus
// an AES-256-GCM sealed payload keyed from the shared point.
type Ciphertext struct {
	EphemeralX, EphemeralY *big.Int
	Nonce                  []byte
	Sealed                 []byte
}

// Encrypt seals plaintext under pub. Every replica ends up storing the
// identical Ciphertext for a given (username, timestamp) verifier.
func Encrypt(pub PublicKey, plaintext []byte) (Ciphertext, error) {
	order := curve.Params().N
	r, err := rand.Int(rand.Reader, order)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("thresholdenc: sampling ephemeral: %w", err)
	}

	ex, ey := curve.ScalarBaseMult(r.Bytes())
	sx, sy := curve.ScalarMult(pub.X, pub.Y, r.Bytes())

	key := deriveAESKey(sx, sy)
	block, err := aes.NewCipher(key)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("thresholdenc: aes init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("thresholdenc: gcm init: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Ciphertext{}, fmt.Errorf("thresholdenc: sampling nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	return Ciphertext{EphemeralX: ex, EphemeralY: ey, Nonce: nonce, Sealed: sealed}, nil
}

func deriveAESKey(x, y *big.Int) []byte {
	point := elliptic.Marshal(curve, x, y)
	hkdfReader := hkdf.New(sha256.New, point, nil, []byte("threshold-secrets-store AES-256-GCM"))
	key := make([]byte, 32)
	_, _ = io.ReadFull(hkdfReader, key)
	return key
}

// DecryptionShare is one replica's partial decryption of a Ciphertext's
// ephemeral point: Scalar_i * Ephemeral.
type DecryptionShare struct {
	Index  uint32
	X, Y   *big.Int
}

// Decrypt computes a single replica's partial decryption share. It never
// reveals the plaintext: only Combine, given enough shares, can.
func Decrypt(share KeyShare, ct Ciphertext) DecryptionShare {
	px, py := curve.ScalarMult(ct.EphemeralX, ct.EphemeralY, share.Scalar.Bytes())
	return DecryptionShare{Index: share.Index, X: px, Y: py}
}

// Combine reconstructs the shared point Lagrange-interpolated in the
// exponent from >= threshold shares, derives the AES key, and opens the
// sealed payload. A GCM auth-tag failure after combining — e.g. from a
// malformed or mismatched share contributed by a faulty replica — is
// reported as ErrDecryptionFailed; callers must treat it as fatal rather
// than retry with the same share set.
func Combine(ct Ciphertext, shares []DecryptionShare) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrInsufficientShares
	}
	order := curve.Params().N

	seen := make(map[uint32]bool, len(shares))
	for _, s := range shares {
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateShare, s.Index)
		}
		seen[s.Index] = true
	}

	var sx, sy *big.Int
	for i, share := range shares {
		lambda := lagrangeCoefficientAtZero(shares, i, order)
		px, py := curve.ScalarMult(share.X, share.Y, lambda.Bytes())
		if sx == nil {
			sx, sy = px, py
		} else {
			sx, sy = curve.Add(sx, sy, px, py)
		}
	}

	key := deriveAESKey(sx, sy)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("thresholdenc: aes init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("thresholdenc: gcm init: %w", err)
	}
	plaintext, err := gcm.Open(nil, ct.Nonce, ct.Sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// lagrangeCoefficientAtZero computes the i-th Lagrange basis polynomial
// of shares, evaluated at x=0, mod order. A negative numerator/denominator
// is handled via modular inverse, matching standard Shamir reconstruction.
func lagrangeCoefficientAtZero(shares []DecryptionShare, i int, order *big.Int) *big.Int {
	xi := big.NewInt(int64(shares[i].Index))
	num := big.NewInt(1)
	den := big.NewInt(1)
	for j, s := range shares {
		if j == i {
			continue
		}
		xj := big.NewInt(int64(s.Index))

		num.Mul(num, xj)
		num.Mod(num, order)

		diff := new(big.Int).Sub(xj, xi)
		diff.Mod(diff, order)
		den.Mul(den, diff)
		den.Mod(den, order)
	}
	denInv := new(big.Int).ModInverse(den, order)
	lambda := new(big.Int).Mul(num, denInv)
	lambda.Mod(lambda, order)
	return lambda
}
