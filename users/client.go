// Package users is the HTTP client for the external user directory,
// which owns accounts, credentials, aggregate stats and characters.
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 5 * time.Second

// User is the directory's account record.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"looses"`
	Draws    int    `json:"draws"`
	Rating   int    `json:"rating"`
}

// CharacterSheet mirrors the directory's character record.
type CharacterSheet struct {
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	Strength   int    `json:"strength"`
	Agility    int    `json:"agility"`
	Stamina    int    `json:"stamina"`
	Endurance  int    `json:"endurance"`
	Level      int    `json:"level"`
	Experience int    `json:"experience"`
}

// Session is a directory token pair plus the resolved user.
type Session struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// Client talks to the user directory over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a directory client. baseURL has no trailing slash.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Login authenticates a username/password pair.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUser resolves a token pair to the user it belongs to.
func (c *Client) GetUser(ctx context.Context, access, refresh string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/get_user", map[string]string{
		"access":  access,
		"refresh": refresh,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AddWin increments a user's win counter.
func (c *Client) AddWin(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPatch, "/add_win", map[string]string{"username": username}, nil)
}

// AddLoss increments a user's loss counter.
func (c *Client) AddLoss(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPatch, "/add_loss", map[string]string{"username": username}, nil)
}

// AddDraw increments a user's draw counter.
func (c *Client) AddDraw(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPatch, "/add_draw", map[string]string{"username": username}, nil)
}

// ChangeRating applies a signed rating delta to a user.
func (c *Client) ChangeRating(ctx context.Context, username string, rating int) error {
	return c.do(ctx, http.MethodPatch, "/change_rating", map[string]any{
		"username": username,
		"rating":   rating,
	}, nil)
}

// UpdateCharExperience grants experience to a character.
func (c *Client) UpdateCharExperience(ctx context.Context, charName string, experience int) error {
	return c.do(ctx, http.MethodPatch, "/update_char_experience", map[string]any{
		"charname":   charName,
		"experience": experience,
	}, nil)
}

// Characters lists a user's characters.
func (c *Client) Characters(ctx context.Context, username string) ([]CharacterSheet, error) {
	var out struct {
		Characters []CharacterSheet `json:"characters"`
	}
	path := "/get_user_characters/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Characters, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("user directory request failed", "tag", "users", "path", path, "err", err)
		return fmt.Errorf("user directory unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("user directory %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
