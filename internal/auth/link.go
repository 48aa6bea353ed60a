package auth

import (
	"errors"
	"time"

	"call-insights/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PurposeTranscription is the only link purpose issued today.
const PurposeTranscription = "transcription"

// LinkClaims authorise one download of one call artefact.
type LinkClaims struct {
	jwt.RegisteredClaims

	CallID  string `json:"call_id"`
	OrgID   int64  `json:"org_id"`
	Purpose string `json:"purpose"`
}

// LinkSigner issues and verifies short-lived signed download links (HS256).
type LinkSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewLinkSigner(cfg config.AuthConfig) (*LinkSigner, error) {
	if cfg.LinkSecret == "" {
		return nil, errors.New("LINK_SECRET is required")
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LinkSigner{secret: []byte(cfg.LinkSecret), issuer: cfg.LinkIssuer, ttl: ttl}, nil
}

// Issue signs a link token for callID within orgID.
func (s *LinkSigner) Issue(now time.Time, orgID int64, callID, purpose string) (string, time.Time, error) {
	exp := now.Add(s.ttl)
	claims := LinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   callID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		CallID:  callID,
		OrgID:   orgID,
		Purpose: purpose,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry, issuer and purpose.
func (s *LinkSigner) Verify(token, purpose string, now time.Time) (LinkClaims, error) {
	var claims LinkClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return LinkClaims{}, err
	}
	if claims.Purpose != purpose {
		return LinkClaims{}, errors.New("link purpose mismatch")
	}
	if claims.CallID == "" || claims.OrgID <= 0 {
		return LinkClaims{}, errors.New("link claims incomplete")
	}
	return claims, nil
}
