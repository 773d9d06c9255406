// Package auth issues and parses the two JWTs of the verification flow: the
// long-term verification token and the key set certificate.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer = "exposurekeys"

	// Audiences keep a token from being accepted where a certificate is
	// expected and the other way round.
	TokenAudience       = "exposurekeys-token"
	CertificateAudience = "exposurekeys-certificate"
)

// TokenClaims are carried by the long-term token handed out for a claimed
// verification code.
type TokenClaims struct {
	jwt.RegisteredClaims
	TestType    string `json:"testtype"`
	SymptomDate string `json:"symptomDate,omitempty"`
}

// CertificateClaims bind a diagnosis to one key set through its HMAC.
type CertificateClaims struct {
	jwt.RegisteredClaims
	TestType             string `json:"reportType"`
	SymptomOnsetInterval uint32 `json:"symptomOnsetInterval,omitempty"`
	KeySetHMAC           string `json:"tekmac"`
}

func registered(subject, audience string, now time.Time, validity time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
}

func sign(claims jwt.Claims, secretKey []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// GenerateToken signs a long-term token for the code identified by subject.
func GenerateToken(subject, testType, symptomDate string, secretKey []byte, validity time.Duration) (string, time.Time, error) {
	now := time.Now()
	c := TokenClaims{
		RegisteredClaims: registered(subject, TokenAudience, now, validity),
		TestType:         testType,
		SymptomDate:      symptomDate,
	}
	s, err := sign(c, secretKey)
	return s, c.ExpiresAt.Time, err
}

// GenerateCertificate signs a certificate over the base64 key set HMAC.
func GenerateCertificate(subject, testType string, onsetInterval uint32, keySetHMAC string, secretKey []byte, validity time.Duration) (string, error) {
	c := CertificateClaims{
		RegisteredClaims:     registered(subject, CertificateAudience, time.Now(), validity),
		TestType:             testType,
		SymptomOnsetInterval: onsetInterval,
		KeySetHMAC:           keySetHMAC,
	}
	return sign(c, secretKey)
}

func parse(tokenString string, claims jwt.Claims, audience string, secretKey []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrInvalidToken
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}

// ParseToken validates a long-term token. Expiry maps to
// common.ErrTokenExpired, every other failure to common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if err := parse(tokenString, claims, TokenAudience, secretKey); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseCertificate validates a certificate the same way ParseToken does.
func ParseCertificate(tokenString string, secretKey []byte) (*CertificateClaims, error) {
	claims := &CertificateClaims{}
	if err := parse(tokenString, claims, CertificateAudience, secretKey); err != nil {
		return nil, err
	}
	return claims, nil
}
