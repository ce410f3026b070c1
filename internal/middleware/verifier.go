package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Identity is what a verified ID token says about the caller.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// TokenVerifier verifies a bearer token and returns the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// FirebaseVerifier verifies Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	if client == nil {
		panic("Firebase Auth client is not initialized for FirebaseVerifier")
	}
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if auth.IsIDTokenExpired(err) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &Identity{UID: token.UID}
	// Firebase populates these standard claims when the profile has them.
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		id.PhotoURL = picture
	}
	return id, nil
}

// JWTVerifier verifies HS256 tokens signed with a shared secret. It backs
// AUTH_MODE=jwt for local development and tests.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	id := &Identity{UID: sub}
	id.Email, _ = claims["email"].(string)
	id.DisplayName, _ = claims["name"].(string)
	id.PhotoURL, _ = claims["picture"].(string)
	return id, nil
}

// Generate signs a token for id that expires after expiresIn.
func (v *JWTVerifier) Generate(id Identity, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": id.UID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	if id.DisplayName != "" {
		claims["name"] = id.DisplayName
	}
	if id.PhotoURL != "" {
		claims["picture"] = id.PhotoURL
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
