package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"duel-game-server/users"
)

const testSecret = "duel-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestUsernameFromToken(t *testing.T) {
	v, err := NewVerifier(testSecret, "", nil)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{
			name:  "username claim",
			token: mintToken(t, testSecret, jwt.MapClaims{"username": "alice"}),
			want:  "alice",
		},
		{
			name:  "sub fallback",
			token: mintToken(t, testSecret, jwt.MapClaims{"sub": "bob"}),
			want:  "bob",
		},
		{
			name:    "wrong secret",
			token:   mintToken(t, "other-secret", jwt.MapClaims{"username": "alice"}),
			wantErr: true,
		},
		{
			name:    "expired token",
			token:   mintToken(t, testSecret, jwt.MapClaims{"username": "alice", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "no username claim",
			token:   mintToken(t, testSecret, jwt.MapClaims{"role": "player"}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.UsernameFromToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("username = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifierNotConfigured(t *testing.T) {
	v, err := NewVerifier("", "", nil)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := v.UsernameFromToken("anything"); err != ErrNotConfigured {
		t.Errorf("UsernameFromToken err = %v, want ErrNotConfigured", err)
	}
}

func TestUsernameFromRequest(t *testing.T) {
	v, err := NewVerifier(testSecret, "", nil)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "uat", Value: mintToken(t, testSecret, jwt.MapClaims{"username": "alice"})})
	if got, err := v.UsernameFromRequest(r); err != nil || got != "alice" {
		t.Errorf("UsernameFromRequest = (%q, %v), want alice", got, err)
	}

	if _, err := v.UsernameFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Error("request without cookies should not authenticate")
	}
}

// A token the verifier cannot validate locally is resolved by the
// directory, which also covers refresh on the directory side.
func TestUsernameFromRequestDirectoryFallback(t *testing.T) {
	var seen map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_user" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(users.Session{User: users.User{Username: "carol"}})
	}))
	defer srv.Close()

	v, err := NewVerifier(testSecret, "", users.New(srv.URL))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "uat", Value: mintToken(t, "other-secret", jwt.MapClaims{"username": "carol"})})
	r.AddCookie(&http.Cookie{Name: "urt", Value: "refresh-token"})

	got, err := v.UsernameFromRequest(r)
	if err != nil || got != "carol" {
		t.Fatalf("UsernameFromRequest = (%q, %v), want carol", got, err)
	}
	if seen["refresh"] != "refresh-token" || seen["access"] == "" {
		t.Errorf("directory saw %v, want the cookie pair", seen)
	}
}
