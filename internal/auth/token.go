// SPDX-License-Identifier: MIT

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Token error classifications for strict failure mapping.
var (
	ErrTokenMalformed  = errors.New("token malformed")
	ErrInvalidAlg      = errors.New("invalid algorithm: must be HS256")
	ErrInvalidSig      = errors.New("invalid signature")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenNotActive  = errors.New("token not yet active (nbf)")
	ErrMissingIAT      = errors.New("missing iat claim")
	ErrMissingExp      = errors.New("missing exp claim")
	ErrMissingNbf      = errors.New("missing nbf claim")
	ErrMismatchPurpose = errors.New("purpose mismatch")
	ErrTokenTTLTooLong = errors.New("token ttl exceeds maximum allowed duration")
)

// PurposeResetPassword is the only token purpose currently issued.
const PurposeResetPassword = "reset_password"

// maxTokenTTL caps the validity window a token may declare.
const maxTokenTTL = int64(time.Hour / time.Second)

type tokenClaims struct {
	Purpose string `json:"purpose"`
	Sub     string `json:"sub"`
	Iat     int64  `json:"iat"`
	Nbf     int64  `json:"nbf"`
	Exp     int64  `json:"exp,omitempty"`
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// GenerateResetToken issues a signed, time-bounded password-reset token
// for the given user.
func GenerateResetToken(secret []byte, userID int64, ttl time.Duration) (string, error) {
	return generateResetTokenAt(secret, userID, ttl, time.Now().Unix())
}

func generateResetTokenAt(secret []byte, userID int64, ttl time.Duration, now int64) (string, error) {
	claims := tokenClaims{
		Purpose: PurposeResetPassword,
		Sub:     strconv.FormatInt(userID, 10),
		Iat:     now,
		Nbf:     now,
		Exp:     now + int64(ttl/time.Second),
	}
	return signHS256(secret, claims)
}

func signHS256(secret []byte, claims tokenClaims) (string, error) {
	header := tokenHeader{Alg: "HS256", Typ: "JWT"}

	hJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	cJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	hBase64 := base64.RawURLEncoding.EncodeToString(hJSON)
	cBase64 := base64.RawURLEncoding.EncodeToString(cJSON)

	payload := hBase64 + "." + cBase64

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	signature := mac.Sum(nil)
	sBase64 := base64.RawURLEncoding.EncodeToString(signature)

	return payload + "." + sBase64, nil
}

// VerifyResetToken validates a password-reset token and returns the user
// ID it was issued for.
func VerifyResetToken(secret []byte, token string) (int64, error) {
	return verifyResetTokenAt(secret, token, time.Now().Unix())
}

// verifyResetTokenAt allows providing a custom 'now' for deterministic
// testing and clock-drift simulation.
func verifyResetTokenAt(secret []byte, token string, now int64) (int64, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, ErrTokenMalformed
	}

	// Check signature first, before touching any claims.
	payload := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	expectedSig := mac.Sum(nil)

	actualSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return 0, ErrInvalidSig
	}
	if !hmac.Equal(expectedSig, actualSig) {
		return 0, ErrInvalidSig
	}

	// Strict header validation: "alg=none" and friends are rejected.
	hJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return 0, ErrTokenMalformed
	}
	var header tokenHeader
	if err := json.Unmarshal(hJSON, &header); err != nil {
		return 0, ErrTokenMalformed
	}
	if header.Alg != "HS256" {
		return 0, ErrInvalidAlg
	}

	cJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return 0, ErrTokenMalformed
	}
	var claims tokenClaims
	if err := json.Unmarshal(cJSON, &claims); err != nil {
		return 0, ErrTokenMalformed
	}

	if claims.Iat == 0 {
		return 0, ErrMissingIAT
	}
	if claims.Exp == 0 {
		return 0, ErrMissingExp
	}
	if claims.Nbf == 0 {
		return 0, ErrMissingNbf
	}

	// Time boundaries with 30s skew tolerance.
	const skew = 30
	if now < (claims.Nbf - skew) {
		return 0, ErrTokenNotActive
	}
	if now > (claims.Exp + skew) {
		return 0, ErrTokenExpired
	}

	ttl := claims.Exp - claims.Iat
	if ttl <= 0 {
		return 0, ErrTokenExpired
	}
	if ttl > maxTokenTTL {
		return 0, ErrTokenTTLTooLong
	}

	if claims.Purpose != PurposeResetPassword {
		return 0, ErrMismatchPurpose
	}

	userID, err := strconv.ParseInt(claims.Sub, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrTokenMalformed
	}
	return userID, nil
}
