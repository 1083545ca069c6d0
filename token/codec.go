package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/keys"
)

const typAccess = "access"

var (
	// ErrMalformed means the token is not a structurally valid JWT or its
	// claims are unusable.
	ErrMalformed = errors.New("malformed access token")
	// ErrSignatureInvalid means the signature does not verify under the
	// configured public key.
	ErrSignatureInvalid = errors.New("access token signature invalid")
	// ErrExpired means signature and structure are fine but exp has passed
	// beyond the configured leeway.
	ErrExpired = errors.New("access token expired")
	// ErrWrongType means the typ claim is not "access". Refresh material and
	// other token species never pass as access tokens.
	ErrWrongType = errors.New("wrong token type")
	// ErrEncoding wraps signing failures. With a validated keypair this
	// indicates a bug, not bad input.
	ErrEncoding = errors.New("access token encoding failed")
)

// Claims is the verified claim set returned by [Codec.DecodeAccess].
type Claims struct {
	PrincipalID string
	Role        string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type accessClaims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	Typ  string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens against a fixed keypair. Immutable
// after [NewCodec]; safe for concurrent use.
type Codec struct {
	pair   *keys.Pair
	ttl    time.Duration
	leeway time.Duration
	issuer string
	parser *jwt.Parser
}

// NewCodec builds a codec for the given pair. ttl is the access-token
// lifetime, leeway the clock-skew allowance on expiry checks, issuer the
// value stamped into and required from the iss claim.
func NewCodec(pair *keys.Pair, ttl, leeway time.Duration, issuer string) *Codec {
	return &Codec{
		pair:   pair,
		ttl:    ttl,
		leeway: leeway,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{pair.JWTMethod().Alg()}),
			jwt.WithLeeway(leeway),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// SignAccess issues a signed access token for the principal. role is the
// wire-form role string. Every token carries a fresh jti.
func (c *Codec) SignAccess(principalID, role string) (string, error) {
	now := time.Now()

	claims := accessClaims{
		UID:  principalID,
		Role: role,
		Typ:  typAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.pair.JWTMethod(), claims).SignedString(c.pair.SigningKey())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	return signed, nil
}

// DecodeAccess verifies raw and returns its claims. Failures are classified:
// [ErrExpired] for expiry only, [ErrSignatureInvalid] for bad signatures,
// [ErrWrongType] for a typ claim other than "access", [ErrMalformed] for
// everything else.
func (c *Codec) DecodeAccess(raw string) (*Claims, error) {
	var claims accessClaims

	_, err := c.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.pair.VerifyKey(), nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Typ != typAccess {
		return nil, ErrWrongType
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("%w: missing uid claim", ErrMalformed)
	}

	out := &Claims{
		PrincipalID: claims.UID,
		Role:        claims.Role,
		TokenID:     claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
