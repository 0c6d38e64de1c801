// Package spake2plus implements the augmented PAKE used for login:
// SPAKE2+ over P-256, with fixed M/N generator points from RFC 9383 test
// vectors and an HKDF/HMAC transcript construction. The augmented secret
// is (π0, c) rather than the literature's (w0, L); PasswordToSecretB
// derives it from a password, and ServerRole is the server-side object
// the gateway drives against the replica quorum's reconstructed verifier.
package spake2plus

import (
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// Sizes of the derived key material.
const (
	SharedSecretSize = 32
	ConfirmationSize = 32

	// Pi0Size is the fixed encoded width of pi0 in a serialized Verifier.
	Pi0Size = 32
)

// Errors returned by this package.
var (
	ErrInvalidPublicKey   = errors.New("spake2plus: invalid public element")
	ErrConfirmationFailed = errors.New("spake2plus: confirmation failed")
	ErrInvalidVerifier    = errors.New("spake2plus: invalid verifier")
)

var curve = elliptic.P256()

// M and N are fixed generator points for SPAKE2+ on P-256, from the
// RFC 9383 test vectors.
var (
	pointM = &curvePoint{
		x: mustHexBigInt("886e2f97ace46e55ba9dd7242579f2993b64e16ef3dcab95afd497333d8fa12f"),
		y: mustHexBigInt("5ff355163e43ce224e0b0e65ff02ac8e5c7be09419c785e0ca547d55a12e2d20"),
	}
	pointN = &curvePoint{
		x: mustHexBigInt("d8bbd6c639c62937b04d997f38c3770719c629d7014d49a24b4f98baa1292b49"),
		y: mustHexBigInt("07d60aa6bfade45008a636337f5168c64d9bd36034808cd564490b1e656edbe7"),
	}
)

type curvePoint struct{ x, y *big.Int }

func mustHexBigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("spake2plus: invalid hex constant: " + s)
	}
	return n
}

// Verifier is the server-side augmented secret (π0, c). π0 is a 256-bit
// scalar; c is the opaque augmentation (the compressed curve point w1*G,
// called "L" in the SPAKE2+ literature, kept opaque to every caller
// outside this package).
type Verifier struct {
	Pi0 []byte
	C   []byte
}

// Bytes serializes the verifier as a fixed-width pi0 followed by c.
func (v Verifier) Bytes() []byte {
	pi0 := make([]byte, Pi0Size)
	copy(pi0[Pi0Size-len(v.Pi0):], v.Pi0)
	return append(pi0, v.C...)
}

// ParseVerifier is the inverse of Bytes: blob[0:32] is π0, blob[32:] is c.
func ParseVerifier(blob []byte) (Verifier, error) {
	if len(blob) < Pi0Size {
		return Verifier{}, fmt.Errorf("%w: blob too short (%d bytes)", ErrInvalidVerifier, len(blob))
	}
	pi0 := make([]byte, Pi0Size)
	copy(pi0, blob[:Pi0Size])
	c := make([]byte, len(blob)-Pi0Size)
	copy(c, blob[Pi0Size:])
	return Verifier{Pi0: pi0, C: c}, nil
}

func deriveW0W1(password, clientIdentity, serverIdentity []byte) (w0, w1 *big.Int) {
	context := append(append([]byte{}, clientIdentity...), serverIdentity...)
	hkdfReader := hkdf.New(sha256.New, password, context, []byte("SPAKE2+-P256-SHA256 w"))

	w0Bytes := make([]byte, 32)
	w1Bytes := make([]byte, 32)
	_, _ = io.ReadFull(hkdfReader, w0Bytes)
	_, _ = io.ReadFull(hkdfReader, w1Bytes)

	w0 = new(big.Int).SetBytes(w0Bytes)
	w1 = new(big.Int).SetBytes(w1Bytes)
	w0.Mod(w0, curve.Params().N)
	w1.Mod(w1, curve.Params().N)
	return w0, w1
}

// PasswordToSecretB derives the server-side augmented secret from a
// plaintext password during enrollment. In practice a slow memory-hard
// hash (Argon2, scrypt) should run before HKDF; this derivation is
// agnostic to that choice and assumes it already happened upstream.
func PasswordToSecretB(password, clientIdentity, serverIdentity []byte) (Verifier, error) {
	w0, w1 := deriveW0W1(password, clientIdentity, serverIdentity)

	lx, ly := curve.ScalarBaseMult(w1.Bytes())
	c := elliptic.MarshalCompressed(curve, lx, ly)

	return Verifier{Pi0: w0.Bytes(), C: c}, nil
}

// PasswordToSecretA derives the client-side values the user needs to run
// its half of SPAKE2+. It mirrors PasswordToSecretB exactly, since both
// sides derive w0/w1 identically from the same password.
func PasswordToSecretA(password, clientIdentity, serverIdentity []byte) (w0, w1 *big.Int) {
	return deriveW0W1(password, clientIdentity, serverIdentity)
}

// ClientRole is the user-side (A) half of SPAKE2+.
type ClientRole struct {
	clientIdentity []byte
	serverIdentity []byte

	x *big.Int
	w0, w1 *big.Int

	pA, pB []byte

	sharedSecret []byte
	confirmKey   []byte
}

// NewClientRole starts a client-role exchange from a plaintext password.
func NewClientRole(password, clientIdentity, serverIdentity []byte) (*ClientRole, error) {
	x, err := rand.Int(rand.Reader, curve.Params().N)
	if err != nil {
		return nil, fmt.Errorf("spake2plus: ephemeral key: %w", err)
	}
	w0, w1 := deriveW0W1(password, clientIdentity, serverIdentity)
	return &ClientRole{
		clientIdentity: clientIdentity,
		serverIdentity: serverIdentity,
		x:              x,
		w0:             w0,
		w1:             w1,
	}, nil
}

// Start returns the client's public element u = x*G + w0*M.
func (c *ClientRole) Start() []byte {
	if c.pA != nil {
		return c.pA
	}
	xx, xy := curve.ScalarBaseMult(c.x.Bytes())
	w0mx, w0my := curve.ScalarMult(pointM.x, pointM.y, c.w0.Bytes())
	pAx, pAy := curve.Add(xx, xy, w0mx, w0my)
	c.pA = elliptic.Marshal(curve, pAx, pAy)
	return c.pA
}

// Finish processes the server's public element v and derives the shared
// key K plus the client's confirmation tag.
func (c *ClientRole) Finish(v []byte) (key, confirmation []byte, err error) {
	c.pB = v
	_ = c.Start()

	pBx, pBy := elliptic.Unmarshal(curve, v)
	if pBx == nil || !curve.IsOnCurve(pBx, pBy) {
		return nil, nil, ErrInvalidPublicKey
	}

	w0nx, w0ny := curve.ScalarMult(pointN.x, pointN.y, c.w0.Bytes())
	w0nyNeg := new(big.Int).Neg(w0ny)
	w0nyNeg.Mod(w0nyNeg, curve.Params().P)
	yx, yy := curve.Add(pBx, pBy, w0nx, w0nyNeg)

	zx, zy := curve.ScalarMult(yx, yy, c.x.Bytes())
	vx, vy := curve.ScalarMult(yx, yy, c.w1.Bytes())

	c.deriveKeys(zx, zy, vx, vy)
	return c.sharedSecret, c.clientConfirmation(), nil
}

func (c *ClientRole) deriveKeys(zx, zy, vx, vy *big.Int) {
	h := sha256.New()
	h.Write(c.clientIdentity)
	h.Write(c.serverIdentity)
	h.Write(c.pA)
	h.Write(c.pB)
	h.Write(elliptic.Marshal(curve, zx, zy))
	h.Write(elliptic.Marshal(curve, vx, vy))
	h.Write(c.w0.Bytes())
	transcript := h.Sum(nil)

	hkdfReader := hkdf.New(sha256.New, transcript, nil, []byte("SPAKE2+-P256-SHA256"))
	c.sharedSecret = make([]byte, SharedSecretSize)
	c.confirmKey = make([]byte, SharedSecretSize)
	_, _ = io.ReadFull(hkdfReader, c.sharedSecret)
	_, _ = io.ReadFull(hkdfReader, c.confirmKey)
}

func (c *ClientRole) clientConfirmation() []byte {
	mac := hmac.New(sha256.New, c.confirmKey)
	mac.Write([]byte("client"))
	mac.Write(c.pA)
	mac.Write(c.pB)
	return mac.Sum(nil)
}

// VerifyServerConfirmation checks the server's confirmation tag under the
// derived key. A wrong password yields a different w0/w1 pair and thus a
// different confirmation key, so the check fails before any secret data
// is exposed.
func (c *ClientRole) VerifyServerConfirmation(serverConfirm []byte) error {
	mac := hmac.New(sha256.New, c.confirmKey)
	mac.Write([]byte("server"))
	mac.Write(c.pB)
	mac.Write(c.pA)
	if !hmac.Equal(serverConfirm, mac.Sum(nil)) {
		return ErrConfirmationFailed
	}
	return nil
}

// ServerRole is the gateway-side (B) half of SPAKE2+, run against the
// verifier reconstructed from the replica quorum. It holds no long-term
// secret: the verifier dies with the login transaction.
type ServerRole struct {
	verifier       Verifier
	serverIdentity []byte
	clientIdentity []byte

	y      *big.Int
	w0     *big.Int
	lx, ly *big.Int

	pA, pB []byte

	sharedSecret []byte
	confirmKey   []byte
}

// NewServerRole constructs the server-side state for one login attempt
// from the reconstructed verifier.
func NewServerRole(verifier Verifier, clientIdentity, serverIdentity []byte) (*ServerRole, error) {
	y, err := rand.Int(rand.Reader, curve.Params().N)
	if err != nil {
		return nil, fmt.Errorf("spake2plus: ephemeral key: %w", err)
	}
	w0 := new(big.Int).SetBytes(verifier.Pi0)
	lx, ly := elliptic.UnmarshalCompressed(curve, verifier.C)
	if lx == nil {
		return nil, fmt.Errorf("%w: malformed augmentation", ErrInvalidVerifier)
	}
	return &ServerRole{
		verifier:       verifier,
		serverIdentity: serverIdentity,
		clientIdentity: clientIdentity,
		y:              y,
		w0:             w0,
		lx:             lx,
		ly:             ly,
	}, nil
}

// Start returns the server's public element v = y*G + w0*N.
func (s *ServerRole) Start() []byte {
	if s.pB != nil {
		return s.pB
	}
	yx, yy := curve.ScalarBaseMult(s.y.Bytes())
	w0nx, w0ny := curve.ScalarMult(pointN.x, pointN.y, s.w0.Bytes())
	pBx, pBy := curve.Add(yx, yy, w0nx, w0ny)
	s.pB = elliptic.Marshal(curve, pBx, pBy)
	return s.pB
}

// Finish processes the client's public element and derives the shared
// key K.
func (s *ServerRole) Finish(u []byte) (key []byte, err error) {
	s.pA = u
	_ = s.Start()

	pAx, pAy := elliptic.Unmarshal(curve, u)
	if pAx == nil || !curve.IsOnCurve(pAx, pAy) {
		return nil, ErrInvalidPublicKey
	}

	w0mx, w0my := curve.ScalarMult(pointM.x, pointM.y, s.w0.Bytes())
	w0myNeg := new(big.Int).Neg(w0my)
	w0myNeg.Mod(w0myNeg, curve.Params().P)
	xx, xy := curve.Add(pAx, pAy, w0mx, w0myNeg)

	zx, zy := curve.ScalarMult(xx, xy, s.y.Bytes())
	vx, vy := curve.ScalarMult(s.lx, s.ly, s.y.Bytes())

	s.deriveKeys(zx, zy, vx, vy)
	return s.sharedSecret, nil
}

func (s *ServerRole) deriveKeys(zx, zy, vx, vy *big.Int) {
	h := sha256.New()
	h.Write(s.clientIdentity)
	h.Write(s.serverIdentity)
	h.Write(s.pA)
	h.Write(s.pB)
	h.Write(elliptic.Marshal(curve, zx, zy))
	h.Write(elliptic.Marshal(curve, vx, vy))
	h.Write(s.w0.Bytes())
	transcript := h.Sum(nil)

	hkdfReader := hkdf.New(sha256.New, transcript, nil, []byte("SPAKE2+-P256-SHA256"))
	s.sharedSecret = make([]byte, SharedSecretSize)
	s.confirmKey = make([]byte, SharedSecretSize)
	_, _ = io.ReadFull(hkdfReader, s.sharedSecret)
	_, _ = io.ReadFull(hkdfReader, s.confirmKey)
}

// Confirmation returns the server's key-confirmation tag, computed as an
// HMAC over the transcript under the derived key.
func (s *ServerRole) Confirmation() []byte {
	mac := hmac.New(sha256.New, s.confirmKey)
	mac.Write([]byte("server"))
	mac.Write(s.pB)
	mac.Write(s.pA)
	return mac.Sum(nil)
}
