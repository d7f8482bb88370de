package gateway

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/soyeahso/chevai-chat/internal/config"
)

// AuthResult is the outcome of an agent authentication attempt.
type AuthResult struct {
	OK      bool   `json:"ok"`
	Method  string `json:"method,omitempty"` // "none" | "token" | "password" | "jwt"
	Reason  string `json:"reason,omitempty"`
	Subject string `json:"subject,omitempty"` // agent name carried by a JWT
}

// ResolvedAuth holds the resolved agent auth configuration.
type ResolvedAuth struct {
	Mode      string
	Token     string
	Password  string
	JWTSecret string
	JWTIssuer string
}

// Credentials are what an agent presents: a login payload over WebSocket or
// a bearer credential over HTTP.
type Credentials struct {
	Token    string
	Password string
}

// AgentClaims are the JWT claims accepted for agents.
type AgentClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// ResolveAuth resolves agent credentials from config and environment.
// Precedence: config value, then environment variable.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:      cfg.Mode,
		Token:     cfg.Token,
		Password:  cfg.Password,
		JWTSecret: cfg.JWTSecret,
		JWTIssuer: cfg.JWTIssuer,
	}
	if auth.Token == "" {
		auth.Token = os.Getenv("CHEVAI_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("CHEVAI_GATEWAY_PASSWORD")
	}
	if auth.JWTSecret == "" {
		auth.JWTSecret = os.Getenv("CHEVAI_JWT_SECRET")
	}
	if auth.Mode == "" {
		switch {
		case auth.JWTSecret != "":
			auth.Mode = "jwt"
		case auth.Password != "":
			auth.Mode = "password"
		default:
			auth.Mode = "token"
		}
	}
	return auth
}

// Authorize checks agent credentials against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, creds Credentials) AuthResult {
	switch serverAuth.Mode {
	case "none":
		return AuthResult{OK: true, Method: "none"}

	case "token":
		if serverAuth.Token == "" {
			return AuthResult{Reason: "server token not configured"}
		}
		if creds.Token == "" {
			return AuthResult{Reason: "token required"}
		}
		if !safeEqual(creds.Token, serverAuth.Token) {
			return AuthResult{Reason: "token_mismatch"}
		}
		return AuthResult{OK: true, Method: "token"}

	case "password":
		if serverAuth.Password == "" {
			return AuthResult{Reason: "server password not configured"}
		}
		pw := creds.Password
		if pw == "" {
			pw = creds.Token
		}
		if pw == "" {
			return AuthResult{Reason: "password required"}
		}
		if !safeEqual(pw, serverAuth.Password) {
			return AuthResult{Reason: "password_mismatch"}
		}
		return AuthResult{OK: true, Method: "password"}

	case "jwt":
		if serverAuth.JWTSecret == "" {
			return AuthResult{Reason: "server jwt secret not configured"}
		}
		if creds.Token == "" {
			return AuthResult{Reason: "token required"}
		}
		claims, err := parseAgentToken(serverAuth, creds.Token)
		if err != nil {
			return AuthResult{Reason: "invalid_token"}
		}
		name := claims.Name
		if name == "" {
			name = claims.Subject
		}
		return AuthResult{OK: true, Method: "jwt", Subject: name}

	default:
		return AuthResult{Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

func parseAgentToken(auth ResolvedAuth, token string) (*AgentClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if auth.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(auth.JWTIssuer))
	}

	claims := &AgentClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(auth.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token not valid")
	}
	return claims, nil
}

// IssueAgentToken signs an HS256 agent token valid for ttl.
func IssueAgentToken(secret, issuer, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing agent token: %w", err)
	}
	return signed, nil
}

// safeEqual compares two strings in constant time without leaking the
// secret's length.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
