package utils

import (
	"errors"
	"fmt"
	"time"

	"pixpack/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrNoVerifyKey      = errors.New("no verification key configured")
)

// VerifyConfig says how job tokens are checked. SecretKey takes precedence over PublicKey.
type VerifyConfig struct {
	SecretKey      []byte // HS256
	PublicKey      any    // RS256, *rsa.PublicKey
	ExpectedIssuer string
	ClockSkew      time.Duration
}

// verificationKey picks the single key and algorithm a token must be signed with.
func (c VerifyConfig) verificationKey() (any, jose.SignatureAlgorithm, error) {
	switch {
	case len(c.SecretKey) > 0:
		return c.SecretKey, jose.HS256, nil
	case c.PublicKey != nil:
		return c.PublicKey, jose.RS256, nil
	}
	return nil, "", ErrNoVerifyKey
}

// VerifyJWT checks the signature and time window of a job token and returns its claims.
func VerifyJWT(tokenString string, config VerifyConfig) (*models.PixpackJWT, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	key, alg, err := config.verificationKey()
	if err != nil {
		return nil, err
	}

	tok, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{alg})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var registered jwt.Claims
	claims := &models.PixpackJWT{}
	if err := tok.Claims(key, &registered, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := checkRegistered(registered, config); err != nil {
		return nil, err
	}
	return claims, nil
}

// checkRegistered validates iss, exp, nbf and iat. Zero timestamps count as absent.
func checkRegistered(c jwt.Claims, config VerifyConfig) error {
	for _, d := range []**jwt.NumericDate{&c.Expiry, &c.NotBefore, &c.IssuedAt} {
		if *d != nil && **d == 0 {
			*d = nil
		}
	}

	err := c.ValidateWithLeeway(jwt.Expected{Issuer: config.ExpectedIssuer, Time: time.Now()}, config.ClockSkew)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrNotValidYet), errors.Is(err, jwt.ErrIssuedInTheFuture):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrInvalidIssuer):
		return fmt.Errorf("%w: expected %q, got %q", ErrInvalidIssuer, config.ExpectedIssuer, c.Issuer)
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

// CreateJWT signs claims with an HS256 secret.
func CreateJWT(claims *models.PixpackJWT, secretKey []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims cannot be nil")
	}
	if len(secretKey) == 0 {
		return "", errors.New("secret key cannot be empty")
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secretKey},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	return jwt.Signed(signer).Claims(claims).Serialize()
}
