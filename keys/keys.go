package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing methods.
const (
	MethodRS256   = "rs256"
	MethodEd25519 = "ed25519"
)

// ErrKeyLoad wraps every failure mode of [Load]: absent material, PEM that
// does not parse, a method/key mismatch, or a keypair that fails the
// sign/verify probe. Treat it as fatal at startup.
var ErrKeyLoad = errors.New("key load failed")

// Config selects the signing method and locates the key material. For each
// key, a file path takes precedence; inline PEM is the fallback for
// environments that inject keys through the process environment instead of
// mounted files.
type Config struct {
	SigningMethod string

	PrivateKeyPath string
	PrivateKeyPEM  []byte

	PublicKeyPath string
	PublicKeyPEM  []byte
}

// Pair is a validated signing keypair. Immutable after [Load]; safe for
// concurrent use.
type Pair struct {
	method  string
	jwtAlg  jwt.SigningMethod
	signKey any
	verKey  any
}

// Load reads, parses, and cross-checks the keypair described by cfg.
func Load(cfg Config) (*Pair, error) {
	method := cfg.SigningMethod
	if method == "" {
		method = MethodRS256
	}

	privPEM, err := material(cfg.PrivateKeyPath, cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrKeyLoad, err)
	}
	pubPEM, err := material(cfg.PublicKeyPath, cfg.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrKeyLoad, err)
	}

	p := &Pair{method: method}

	switch method {
	case MethodRS256:
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse rsa private key: %v", ErrKeyLoad, err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse rsa public key: %v", ErrKeyLoad, err)
		}
		p.jwtAlg = jwt.SigningMethodRS256
		p.signKey = priv
		p.verKey = pub

		if err := probeRSA(priv, pub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
		}

	case MethodEd25519:
		privAny, err := jwt.ParseEdPrivateKeyFromPEM(privPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse ed25519 private key: %v", ErrKeyLoad, err)
		}
		pubAny, err := jwt.ParseEdPublicKeyFromPEM(pubPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse ed25519 public key: %v", ErrKeyLoad, err)
		}
		priv, ok := privAny.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is not ed25519", ErrKeyLoad)
		}
		pub, ok := pubAny.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is not ed25519", ErrKeyLoad)
		}
		p.jwtAlg = jwt.SigningMethodEdDSA
		p.signKey = priv
		p.verKey = pub

		if err := probeEd25519(priv, pub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrKeyLoad, method)
	}

	return p, nil
}

// Method returns the configured method name ("rs256" or "ed25519").
func (p *Pair) Method() string { return p.method }

// JWTMethod returns the golang-jwt signing method for this pair.
func (p *Pair) JWTMethod() jwt.SigningMethod { return p.jwtAlg }

// SigningKey returns the private key in the form golang-jwt expects.
func (p *Pair) SigningKey() any { return p.signKey }

// VerifyKey returns the public key in the form golang-jwt expects.
func (p *Pair) VerifyKey() any { return p.verKey }

func material(path string, inline []byte) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		// Fall back to inline material only when the file is absent;
		// any other read failure is a real error.
		if !os.IsNotExist(err) {
			return nil, err
		}
		if len(inline) == 0 {
			return nil, err
		}
	}
	if len(inline) == 0 {
		return nil, errors.New("no key material configured")
	}
	return inline, nil
}

// probeRSA signs and verifies a fixed digest to prove the two halves belong
// to the same keypair before any token is ever issued.
func probeRSA(priv *rsa.PrivateKey, pub *rsa.PublicKey) error {
	digest := sha256.Sum256([]byte("authcore key probe"))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("probe sign: %v", err)
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return errors.New("keypair mismatch: public key does not verify private key signatures")
	}
	return nil
}

func probeEd25519(priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	msg := []byte("authcore key probe")
	sig := ed25519.Sign(priv, msg)
	if !ed25519.Verify(pub, msg, sig) {
		return errors.New("keypair mismatch: public key does not verify private key signatures")
	}
	return nil
}
