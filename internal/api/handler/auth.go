package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Roles carried in user tokens.
const (
	RoleApplicant = "applicant"
	RoleAdmin     = "admin"
)

// Claims is the token payload. Anonymous tokens carry AnonID only; tokens
// of signed-in users carry UserID and Role.
type Claims struct {
	AnonID string `json:"anon_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller as resolved from its token.
type Identity struct {
	Requester models.Requester
	AdminID   string
}

func (i Identity) IsAdmin() bool { return i.AdminID != "" }

// TokenIssuer signs and verifies HS256 tokens with the shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) sign(claims Claims) (string, error) {
	now := t.now()
	claims.Issuer = config.AnonTokenIssuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// IssueAnon returns a token for a new visitor id.
func (t *TokenIssuer) IssueAnon(anonID string) (string, error) {
	return t.sign(Claims{AnonID: anonID})
}

// IssueUser returns a token for a signed-in user. Used by the operator CLI
// and tests; production user tokens come from the auth provider.
func (t *TokenIssuer) IssueUser(userID, role string) (string, error) {
	return t.sign(Claims{UserID: userID, Role: role})
}

// Parse verifies the signature and expiry of raw.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	if (claims.UserID == "") == (claims.AnonID == "") {
		return nil, errors.New("token must carry exactly one of user_id or anon_id")
	}
	return claims, nil
}

// IdentityOf maps verified claims to an Identity.
func IdentityOf(c *Claims) Identity {
	if c.UserID != "" {
		id := Identity{Requester: models.Requester{UserID: c.UserID}}
		if c.Role == RoleAdmin {
			id.AdminID = c.UserID
		}
		return id
	}
	return Identity{Requester: models.Requester{AnonymousID: c.AnonID}}
}

const identityKey = "identity"

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	// Browsers cannot set headers on websocket upgrades.
	return c.Query("token")
}

// identify resolves the optional bearer token. A present but invalid token
// is rejected; a missing one leaves the caller without identity.
func (h *Handler) identify(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.Next()
		return
	}
	claims, err := h.Tokens.Parse(raw)
	if err != nil {
		h.fail(c, unauthorized(fmt.Errorf("parse token: %w", err)))
		return
	}
	c.Set(identityKey, IdentityOf(claims))
	c.Next()
}

func (h *Handler) requireAdmin(c *gin.Context) {
	if !identityFrom(c).IsAdmin() {
		h.fail(c, unauthorized(errors.New("admin role required")))
		return
	}
	c.Next()
}

func identityFrom(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}

// GetAnonID creates a visitor id and returns it with its token.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.NewString()

	token, err := h.Tokens.IssueAnon(anonID)
	if err != nil {
		h.log.Error("sign anon token", zap.Error(err))
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}
