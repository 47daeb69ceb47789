package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	defaultCertsCacheTTL = 10 * time.Minute
	googleIssuer         = "https://accounts.google.com"
	googleIssuerAlt      = "accounts.google.com"
)

var (
	// ErrInvalidVerifierConfig indicates the Google verifier was misconfigured.
	ErrInvalidVerifierConfig = errors.New("auth: invalid google verifier config")
	// ErrInvalidIDToken covers every verification failure of a Google ID token.
	ErrInvalidIDToken = errors.New("auth: invalid google id token")

	errMissingKeyID  = errors.New("token missing key identifier")
	errUnknownSigner = errors.New("signing key not found in certs document")
)

// GoogleVerifierConfig bundles configuration for offline ID token checks.
type GoogleVerifierConfig struct {
	ClientID   string
	JWKSURL    string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// GoogleIdentity is the validated profile carried by a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Expiry  time.Time
}

type googleIDClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier verifies Google ID tokens offline against cached signing
// certs.
type GoogleVerifier struct {
	clientID   string
	jwksURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
	clock      func() time.Time
	logger     *zap.Logger

	mu            sync.RWMutex
	keys          map[string]*rsa.PublicKey
	keysExpiresAt time.Time
}

// NewGoogleVerifier constructs a verifier with validated configuration.
func NewGoogleVerifier(cfg GoogleVerifierConfig) (*GoogleVerifier, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id required", ErrInvalidVerifierConfig)
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, fmt.Errorf("%w: jwks url required", ErrInvalidVerifierConfig)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCertsCacheTTL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleVerifier{
		clientID:   clientID,
		jwksURL:    jwksURL,
		httpClient: httpClient,
		cacheTTL:   cacheTTL,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Verify validates the raw ID token and returns the identity it asserts.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (GoogleIdentity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return GoogleIdentity{}, fmt.Errorf("%w: empty token", ErrInvalidIDToken)
	}

	claims := &googleIDClaims{}
	token, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			keyID, _ := token.Header["kid"].(string)
			if keyID == "" {
				return nil, errMissingKeyID
			}
			return v.signingKey(ctx, keyID)
		},
		jwt.WithAudience(v.clientID),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !token.Valid {
		return GoogleIdentity{}, fmt.Errorf("%w: signature invalid", ErrInvalidIDToken)
	}
	if claims.Issuer != googleIssuer && claims.Issuer != googleIssuerAlt {
		return GoogleIdentity{}, fmt.Errorf("%w: untrusted issuer %q", ErrInvalidIDToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return GoogleIdentity{}, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}

	expiry := time.Time{}
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	return GoogleIdentity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Expiry:  expiry,
	}, nil
}

func (v *GoogleVerifier) signingKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	now := v.clock()

	v.mu.RLock()
	key, cached := v.keys[keyID]
	fresh := now.Before(v.keysExpiresAt)
	v.mu.RUnlock()
	if cached && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx, now); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[keyID]; ok {
		return key, nil
	}
	return nil, errUnknownSigner
}

func (v *GoogleVerifier) refreshKeys(ctx context.Context, fetchedAt time.Time) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	response, err := v.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("certs request returned status %d", response.StatusCode)
	}

	var document struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(response.Body).Decode(&document); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, key := range document.Keys {
		if key.KeyType != "RSA" || key.Use != "sig" {
			continue
		}
		publicKey, err := key.toRSAPublicKey()
		if err != nil {
			v.logger.Debug("skipping unusable jwk", zap.String("kid", key.KeyID), zap.Error(err))
			continue
		}
		keys[key.KeyID] = publicKey
	}
	if len(keys) == 0 {
		return errors.New("certs document contained no usable keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.keysExpiresAt = fetchedAt.Add(v.cacheTTL)
	v.mu.Unlock()
	return nil
}

type jwk struct {
	KeyType string `json:"kty"`
	KeyID   string `json:"kid"`
	Use     string `json:"use"`
	Modulus string `json:"n"`
	Exp     string `json:"e"`
}

func (k jwk) toRSAPublicKey() (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exp)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}
	if len(exponentBytes) == 0 {
		return nil, errors.New("missing exponent bytes")
	}

	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent<<8 + int(b)
	}
	if exponent == 0 {
		return nil, errors.New("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}
