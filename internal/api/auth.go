package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/SentientStudio/internal/config"
	"github.com/AaronLay10/SentientStudio/internal/users"
)

// account is one basic-auth credential pair bound to a studio role.
type account struct {
	user string
	pass string
	role users.Role
}

// authConfig holds credentials loaded from environment variables.
type authConfig struct {
	accounts []account
	enabled  bool
}

var auth *authConfig

var authRoles = []users.Role{users.RoleDeveloper, users.RoleDesigner, users.RoleTester, users.RoleManager}

// InitAuth loads one credential pair per role from STUDIO_<ROLE>_USER and
// STUDIO_<ROLE>_PASS (or their *_FILE variants). With no pair set,
// authentication is disabled (dev-friendly).
func InitAuth() error {
	cfg := &authConfig{}
	for _, role := range authRoles {
		creds, err := config.RoleCredentials(string(role))
		if err != nil {
			return fmt.Errorf("credentials for role %s: %w", role, err)
		}
		if creds.Complete() {
			cfg.accounts = append(cfg.accounts, account{user: creds.User, pass: creds.Pass, role: role})
		}
	}
	cfg.enabled = len(cfg.accounts) > 0
	auth = cfg
	return nil
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// Principal is the caller a request was authenticated as.
type Principal struct {
	Username string
	Role     users.Role
}

type principalKey struct{}

// PrincipalFrom returns the authenticated caller. With auth disabled every
// request runs as "anonymous" with no role.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Principal{Username: "anonymous"}
}

// authenticate checks basic auth credentials. ok is false when credentials
// are missing or wrong.
func authenticate(r *http.Request) (Principal, bool) {
	if !IsAuthEnabled() {
		return Principal{Username: "anonymous"}, true
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return Principal{}, false
	}

	for _, a := range auth.accounts {
		if secureCompare(user, a.user) && secureCompare(pass, a.pass) {
			return Principal{Username: a.user, Role: a.role}, true
		}
	}
	return Principal{}, false
}

// secureCompare performs constant-time string comparison to prevent timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Sentient Studio"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

// RequireCapability wraps a handler and requires the caller's role to hold
// at least one of caps. With auth disabled every capability is granted.
func RequireCapability(handler http.HandlerFunc, caps ...users.Capability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authenticate(r)
		if !ok {
			requireAuth(w)
			return
		}

		if IsAuthEnabled() && !holdsAny(p.Role, caps) {
			writeError(w, http.StatusForbidden, fmt.Sprintf("role %q may not do this", p.Role))
			return
		}

		handler(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	}
}

func holdsAny(role users.Role, caps []users.Capability) bool {
	for _, c := range caps {
		if users.Can(role, c) {
			return true
		}
	}
	return false
}
