package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "12345678901234567890123456789012"

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestNoopManager(t *testing.T) {
	m := NewNoopManager()
	for _, header := range []string{"", "garbage", "Bearer x"} {
		ok, err := m.Validate(context.Background(), header)
		if !ok || err != nil {
			t.Errorf("Validate(%q) = %v, %v; want true, nil", header, ok, err)
		}
	}
}

func TestBasicManager(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	path := filepath.Join(t.TempDir(), "users")
	content := "# operators\n\nalice=" + string(hash) + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write users file: %v", err)
	}

	m, err := LoadBasicManager(path)
	if err != nil {
		t.Fatalf("LoadBasicManager returned error: %v", err)
	}

	testCases := []struct {
		name   string
		header string
		want   bool
	}{
		{"Valid", basicHeader("alice", "hunter2"), true},
		{"Lowercase scheme", "basic " + base64.StdEncoding.EncodeToString([]byte("alice:hunter2")), true},
		{"Wrong password", basicHeader("alice", "nope"), false},
		{"Unknown user", basicHeader("bob", "hunter2"), false},
		{"Bearer scheme", "Bearer abc", false},
		{"Bad base64", "Basic !!!", false},
		{"Missing header", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.Validate(context.Background(), tc.header)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Validate(%q) = %v, want %v", tc.header, got, tc.want)
			}
		})
	}
}

func TestParseUsers_Invalid(t *testing.T) {
	for _, content := range []string{"alice", "=hash", "alice=not-a-bcrypt-hash"} {
		if _, err := parseUsers(strings.NewReader(content)); err == nil {
			t.Errorf("parseUsers(%q) expected error, got none", content)
		}
	}
}

func TestJWTManager(t *testing.T) {
	m, err := NewJWTManager(testSecret, "admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager returned error: %v", err)
	}

	if _, err := m.Login("admin", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	resp, err := m.Login("admin", "secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	ok, err := m.Validate(context.Background(), "Bearer "+resp.Token)
	if err != nil || !ok {
		t.Errorf("fresh token rejected: %v, %v", ok, err)
	}

	claims, err := m.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username admin, got %s", claims.Username)
	}

	// Token signed with another secret
	other, _ := NewJWTManager("abcdefghijabcdefghijabcdefghij12", "admin", "secret", time.Hour)
	foreign, _ := other.Login("admin", "secret")
	if ok, _ := m.Validate(context.Background(), "Bearer "+foreign.Token); ok {
		t.Error("token signed with a different secret was accepted")
	}

	// Expired token
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if ok, _ := m.Validate(context.Background(), "Bearer "+resp.Token); ok {
		t.Error("expired token was accepted")
	}
}

func TestNewJWTManager_ShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "admin", "secret", time.Hour); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestTokenReviewManager(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apis/authentication.k8s.io/v1/tokenreviews" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer service-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var review tokenReview
		if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		review.Status.Authenticated = review.Spec.Token == "good-token"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(review)
	}))
	defer srv.Close()

	m := NewTokenReviewManager(srv.URL+"/", "service-token", srv.Client())

	ok, err := m.Validate(context.Background(), "Bearer good-token")
	if err != nil || !ok {
		t.Errorf("good token: got %v, %v", ok, err)
	}
	ok, err = m.Validate(context.Background(), "Bearer bad-token")
	if err != nil || ok {
		t.Errorf("bad token: got %v, %v", ok, err)
	}
	ok, err = m.Validate(context.Background(), "")
	if err != nil || ok {
		t.Errorf("missing header: got %v, %v", ok, err)
	}

	denied := NewTokenReviewManager(srv.URL, "wrong", srv.Client())
	if _, err := denied.Validate(context.Background(), "Bearer good-token"); err == nil {
		t.Error("expected error when API server rejects the service token")
	}
}
