// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrWrongRoom is returned when a seat token was issued for another room.
var ErrWrongRoom = errors.New("seat token belongs to a different room")

// SeatClaims name the user a token holder sits as, and in which room.
type SeatClaims struct {
	RoomCode string `json:"room"`
	jwt.RegisteredClaims
}

// UserID is the seat's user id, carried in the "sub" claim.
func (c *SeatClaims) UserID() string {
	return c.Subject
}

// Issuer signs and verifies seat tokens with an ed25519 key pair.
type Issuer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	ttl  time.Duration // 0 => tokens never expire
	now  func() time.Time
}

// NewIssuer generates a fresh key pair. Tokens do not survive a restart.
func NewIssuer(ttl time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{priv: priv, pub: pub, ttl: ttl, now: time.Now}, nil
}

// NewIssuerFromPath reads a raw ed25519 key pair from disk.
func NewIssuerFromPath(privatePath, publicPath string, ttl time.Duration) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("key files are not raw ed25519 keys")
	}
	return &Issuer{
		priv: ed25519.PrivateKey(privateKeyData),
		pub:  ed25519.PublicKey(publicKeyData),
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

// ParseTTL reads a TOKEN_EXPIRE_TIME value. "never", "0" and "" disable expiry.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("token expire time must not be negative")
	}
	return d, nil
}

// Issue signs a token seating userID in roomCode.
func (i *Issuer) Issue(roomCode, userID string) (string, error) {
	now := i.now()
	claims := SeatClaims{
		RoomCode: roomCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.priv)
}

// Verify checks a token's signature and expiry and returns its claims.
func (i *Issuer) Verify(tokenString string) (*SeatClaims, error) {
	claims := &SeatClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.pub, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing sub in jwt")
	}
	return claims, nil
}

// VerifySeat is Verify plus a check that the token belongs to roomCode.
func (i *Issuer) VerifySeat(tokenString, roomCode string) (string, error) {
	claims, err := i.Verify(tokenString)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(claims.RoomCode, roomCode) {
		return "", ErrWrongRoom
	}
	return claims.UserID(), nil
}
