package rpc

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// SubmitScope must be granted to JWT bearers calling mutating methods.
	SubmitScope = "rentals:submit"

	defaultScopeClaim = "scope"
	defaultClockSkew  = 2 * time.Minute
)

// JWTConfig enables HMAC-signed bearer tokens on mutating methods.
type JWTConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ScopeClaim string
	ClockSkew  time.Duration
}

func (c JWTConfig) enabled() bool {
	return strings.TrimSpace(c.HMACSecret) != ""
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" && !s.cfg.JWT.enabled() {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.cfg.AuthToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1 {
		return nil
	}
	if !s.cfg.JWT.enabled() {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	claims, err := s.cfg.JWT.parse(token)
	if err != nil {
		s.logger.Debug("jwt rejected", slog.String("error", err.Error()))
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	if !hasScope(claims, s.cfg.JWT.scopeClaim(), SubmitScope) {
		return &RPCError{Code: codeUnauthorized, Message: "token lacks the " + SubmitScope + " scope"}
	}
	return nil
}

func (c JWTConfig) scopeClaim() string {
	if c.ScopeClaim == "" {
		return defaultScopeClaim
	}
	return c.ScopeClaim
}

func (c JWTConfig) parse(tokenString string) (jwt.MapClaims, error) {
	skew := c.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(skew),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.Audience))
	}
	secret := []byte(strings.TrimSpace(c.HMACSecret))
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func hasScope(claims jwt.MapClaims, claim, required string) bool {
	switch v := claims[claim].(type) {
	case string:
		for _, scope := range strings.Fields(v) {
			if scope == required {
				return true
			}
		}
	case []interface{}:
		for _, entry := range v {
			if scope, ok := entry.(string); ok && scope == required {
				return true
			}
		}
	}
	return false
}
