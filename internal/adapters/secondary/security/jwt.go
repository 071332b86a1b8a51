package security

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator vérifie les tokens émis par le service d'identité.
// Ce service ne signe jamais : clé publique uniquement.
type JWTValidator struct {
	publicKey *rsa.PublicKey
}

func NewJWTValidator(publicKeyPEM []byte) (*JWTValidator, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &JWTValidator{publicKey: pubKey}, nil
}

// Validate vérifie la signature et retourne l'UserID (Subject).
func (j *JWTValidator) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Refuser tout autre alg : empêche le downgrade "none"/HS256.
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.publicKey, nil
	})
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token claims")
	}
	return sub, nil
}
