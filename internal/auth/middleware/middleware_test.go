package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/icitysystems/academia-sub002/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("test-secret")
	token, err := a.IssueJWT("u1", "teacher")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, role, err := a.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject != "u1" || role != "teacher" {
		t.Fatalf("got %s/%s, want u1/teacher", subject, role)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewAuthService("secret-a").IssueJWT("u1", "teacher")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := NewAuthService("secret-b").Parse(token); err == nil {
		t.Fatalf("foreign signature accepted")
	}
}

func TestJWTMiddlewareAttachesIdentity(t *testing.T) {
	a := NewAuthService("test-secret")
	token, err := a.IssueJWT("u1", "teacher")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var gotSubject, gotRole string
	h := a.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = SubjectFromContext(r.Context())
		gotRole, _ = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if gotSubject != "u1" || gotRole != "teacher" {
		t.Fatalf("context identity %s/%s, want u1/teacher", gotSubject, gotRole)
	}
}

func TestJWTMiddlewareRejectsMissingToken(t *testing.T) {
	a := NewAuthService("test-secret")
	h := a.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler reached without a token")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}
