package middleware

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/icitysystems/academia-sub002/internal/rbac"
)

// AuthService issues and validates HMAC-signed bearer tokens.
type AuthService struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret), ttl: 12 * time.Hour}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueJWT mints a token for the given user id and role.
func (a *AuthService) IssueJWT(subject, role string) (string, error) {
	now := time.Now()
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

// Parse validates the token and returns its subject and role.
func (a *AuthService) Parse(token string) (subject, role string, err error) {
	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !tok.Valid {
		return "", "", errors.New("invalid token")
	}
	return c.Subject, c.Role, nil
}

// JWTMiddleware authenticates the request from its Authorization header and
// attaches subject and role to the context.
func (a *AuthService) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		subject, role, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := WithSubject(r.Context(), subject)
		ctx = rbac.WithRole(ctx, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginHandler exchanges username/password for a bearer token. Passwords are
// stored bcrypt-hashed in the users table.
func LoginHandler(a *AuthService, db *sql.DB) http.HandlerFunc {
	type loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var id, hash, role string
		row := db.QueryRowContext(r.Context(),
			`SELECT id, pass_hash, role FROM users WHERE username = $1`, req.Username)
		if err := row.Scan(&id, &hash, &role); err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		token, err := a.IssueJWT(id, role)
		if err != nil {
			log.Printf("auth: issue token: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token": token,
			"role":  role,
		})
	}
}
