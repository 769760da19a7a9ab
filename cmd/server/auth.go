package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const (
	sessionCookieName = "pipe_auth"
	sessionSubject    = "operator"
)

// authService guards the API with a single shared password. Sessions are HMAC-signed
// cookies, so they outlive a restart only when the secret is configured.
type authService struct {
	passwordHash  []byte
	sessionSecret []byte
}

func newAuthService(password, sessionSecret string) (*authService, error) {
	a := &authService{sessionSecret: []byte(sessionSecret)}
	if password != "" {
		sum := sha256.Sum256([]byte(password))
		a.passwordHash = sum[:]
	}
	if len(a.sessionSecret) == 0 {
		a.sessionSecret = make([]byte, 32)
		if _, err := rand.Read(a.sessionSecret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return a, nil
}

// enabled reports whether a password is configured. Without one every request is allowed.
func (a *authService) enabled() bool {
	return len(a.passwordHash) > 0
}

func (a *authService) validatePassword(password string) bool {
	if !a.enabled() {
		return true
	}
	sum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(a.passwordHash, sum[:]) == 1
}

func (a *authService) createSessionValue(subject string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(subject))
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature
}

func (a *authService) verifySessionValue(value string) (string, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return "", false
	}

	payload := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(provided, expected) {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	if len(decoded) == 0 {
		return "", false
	}

	return string(decoded), true
}

func (a *authService) isAuthenticated(r *http.Request) bool {
	if !a.enabled() {
		return true
	}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}
	_, ok := a.verifySessionValue(cookie.Value)
	return ok
}

func (a *authService) setSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(sessionSubject),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// middleware rejects unauthenticated API calls with 401.
func (a *authService) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.isAuthenticated(r) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
