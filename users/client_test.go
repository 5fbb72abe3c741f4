package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	method string
	path   string
	body   map[string]any
}

func newCaptureServer(t *testing.T, respond func(w http.ResponseWriter)) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&captured.body)
		}
		if respond != nil {
			respond(w)
		}
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL), captured
}

func TestOutcomeUpdates(t *testing.T) {
	tests := []struct {
		name     string
		call     func(c *Client) error
		wantPath string
		wantBody map[string]any
	}{
		{
			name:     "add win",
			call:     func(c *Client) error { return c.AddWin(context.Background(), "alice") },
			wantPath: "/add_win",
			wantBody: map[string]any{"username": "alice"},
		},
		{
			name:     "add loss",
			call:     func(c *Client) error { return c.AddLoss(context.Background(), "bob") },
			wantPath: "/add_loss",
			wantBody: map[string]any{"username": "bob"},
		},
		{
			name:     "add draw",
			call:     func(c *Client) error { return c.AddDraw(context.Background(), "carol") },
			wantPath: "/add_draw",
			wantBody: map[string]any{"username": "carol"},
		},
		{
			name:     "change rating carries the signed delta",
			call:     func(c *Client) error { return c.ChangeRating(context.Background(), "bob", -25) },
			wantPath: "/change_rating",
			wantBody: map[string]any{"username": "bob", "rating": float64(-25)},
		},
		{
			name:     "experience goes to the character",
			call:     func(c *Client) error { return c.UpdateCharExperience(context.Background(), "Blade", 10) },
			wantPath: "/update_char_experience",
			wantBody: map[string]any{"charname": "Blade", "experience": float64(10)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, captured := newCaptureServer(t, nil)
			if err := tt.call(client); err != nil {
				t.Fatalf("call: %v", err)
			}
			if captured.method != http.MethodPatch {
				t.Errorf("method = %s, want PATCH", captured.method)
			}
			if captured.path != tt.wantPath {
				t.Errorf("path = %s, want %s", captured.path, tt.wantPath)
			}
			if len(captured.body) != len(tt.wantBody) {
				t.Fatalf("body = %v, want %v", captured.body, tt.wantBody)
			}
			for k, v := range tt.wantBody {
				if captured.body[k] != v {
					t.Errorf("body[%q] = %v, want %v", k, captured.body[k], v)
				}
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	client, captured := newCaptureServer(t, func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(Session{
			Access:  "new-access",
			Refresh: "new-refresh",
			User:    User{Username: "alice", Wins: 3, Losses: 1, Rating: 1025},
		})
	})

	session, err := client.GetUser(context.Background(), "old-access", "old-refresh")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if captured.method != http.MethodPost || captured.path != "/get_user" {
		t.Errorf("request = %s %s, want POST /get_user", captured.method, captured.path)
	}
	if captured.body["access"] != "old-access" || captured.body["refresh"] != "old-refresh" {
		t.Errorf("body = %v, want the token pair", captured.body)
	}
	if session.User.Username != "alice" || session.User.Losses != 1 {
		t.Errorf("session = %+v", session)
	}
}

func TestCharacters(t *testing.T) {
	client, captured := newCaptureServer(t, func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{
			"characters": []CharacterSheet{
				{Name: "Blade", Owner: "alice", Strength: 5, Agility: 5, Stamina: 5, Endurance: 5, Level: 2},
			},
		})
	})

	sheets, err := client.Characters(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Characters: %v", err)
	}
	if captured.method != http.MethodGet || captured.path != "/get_user_characters/alice" {
		t.Errorf("request = %s %s, want GET /get_user_characters/alice", captured.method, captured.path)
	}
	if len(sheets) != 1 || sheets[0].Name != "Blade" || sheets[0].Level != 2 {
		t.Errorf("sheets = %+v", sheets)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	client, _ := newCaptureServer(t, func(w http.ResponseWriter) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if err := client.AddWin(context.Background(), "alice"); err == nil {
		t.Error("a 5xx from the directory should surface as an error")
	}
}

func TestLosesFieldSpelling(t *testing.T) {
	// The directory serializes the loss counter under "looses".
	var u User
	if err := json.Unmarshal([]byte(`{"username":"alice","looses":4}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Losses != 4 {
		t.Errorf("Losses = %d, want 4", u.Losses)
	}
}
