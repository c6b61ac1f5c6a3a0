// Package session exposes the signed-in viewer to the notification core.
// The login flow persists a small JSON file plus a bearer token in the
// system keyring; this package reads both and reports changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/nhle/noticeboard/internal/credential"
	"github.com/nhle/noticeboard/internal/model"
)

// ErrExpired is returned when the stored token is a JWT past its expiry.
var ErrExpired = errors.New("token expired")

// Provider reports the current session and its changes.
type Provider interface {
	Current() model.Session
	// Watch emits the current session, then every change until ctx ends.
	Watch(ctx context.Context) <-chan model.Session
}

// TokenSource supplies the stored bearer token.
type TokenSource interface {
	Token() (string, error)
}

// TokenStore is a TokenSource that can also be written by login and logout.
type TokenStore interface {
	TokenSource
	SetToken(token string) error
	DeleteToken() error
}

// fileState is the on-disk shape of the session file.
type fileState struct {
	Role string `json:"role"`
	User string `json:"user,omitempty"`
}

// Static is a Provider that never changes.
type Static model.Session

// Current returns the fixed session.
func (s Static) Current() model.Session { return model.Session(s) }

// Watch emits the fixed session once and closes when ctx ends.
func (s Static) Watch(ctx context.Context) <-chan model.Session {
	ch := make(chan model.Session, 1)
	ch <- model.Session(s)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// Read loads the session at path, resolving the token through tokens.
// A missing file is a signed-out session, not an error.
func Read(path string, tokens TokenSource, now time.Time) (model.Session, error) {
	var st fileState
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return model.Session{}, nil
	case err != nil:
		return model.Session{}, fmt.Errorf("reading session %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return model.Session{}, fmt.Errorf("parsing session %s: %w", path, err)
	}

	s := model.Session{
		Role:     model.ParseRole(st.Role),
		UserName: st.User,
	}

	tok, err := tokens.Token()
	if errors.Is(err, credential.ErrNotFound) || (err == nil && strings.TrimSpace(tok) == "") {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading token: %w", err)
	}

	claimRole, err := checkToken(tok, now)
	if err != nil {
		return s, err
	}
	if s.Role == "" {
		s.Role = claimRole
	}
	s.HasToken = true
	return s, nil
}

// checkToken accepts any non-empty opaque token. Tokens that parse as a
// JWT must not be expired. The signature is not verified; that is the
// server's job. It returns the role claim, if present.
func checkToken(tok string, now time.Time) (model.Role, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return "", nil
	}

	if _, ok := claims["exp"]; ok && !claims.VerifyExpiresAt(now.Unix(), true) {
		return "", ErrExpired
	}

	role, _ := claims["role"].(string)
	return model.ParseRole(role), nil
}

// Login stores token and writes the session file for role.
func Login(path string, tokens TokenStore, role model.Role, token, user string) error {
	role = model.ParseRole(string(role))
	if !role.Known() {
		return fmt.Errorf("unknown role %q", role)
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is required")
	}

	// Token first so a watcher that sees the new file also sees the token.
	if err := tokens.SetToken(strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	data, err := json.MarshalIndent(fileState{Role: string(role), User: user}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return writeFileAtomic(path, data)
}

// Logout removes the session file and the stored token.
func Logout(path string, tokens TokenStore) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session %s: %w", path, err)
	}
	if err := tokens.DeleteToken(); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing session %s: %w", path, err)
	}
	return nil
}
