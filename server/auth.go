package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Principal binds an authenticated bearer token to the caller address the
// engine authorises against.
type Principal struct {
	Token   string
	Address common.Address
}

type callerContextKey struct{}

// CallerFromContext extracts the authenticated caller address from the
// request context.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	if ctx == nil {
		return common.Address{}, false
	}
	caller, ok := ctx.Value(callerContextKey{}).(common.Address)
	return caller, ok
}

// Authenticator resolves bearer tokens to caller addresses. The engine, not
// the HTTP tier, decides whether a resolved caller may mutate the vault.
type Authenticator struct {
	principals []Principal
}

// NewAuthenticator constructs an authenticator from the configured principals.
func NewAuthenticator(principals []Principal) *Authenticator {
	cloned := make([]Principal, 0, len(principals))
	for _, principal := range principals {
		if strings.TrimSpace(principal.Token) == "" {
			continue
		}
		cloned = append(cloned, principal)
	}
	return &Authenticator{principals: cloned}
}

func (a *Authenticator) resolve(r *http.Request) (common.Address, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return common.Address{}, false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return common.Address{}, false
	}
	token := strings.TrimSpace(header[len(prefix):])
	for _, principal := range a.principals {
		if subtle.ConstantTimeCompare([]byte(token), []byte(principal.Token)) == 1 {
			return principal.Address, true
		}
	}
	return common.Address{}, false
}

// Middleware attaches the resolved caller address to the request context and
// rejects requests without a recognised token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		caller, ok := a.resolve(r)
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), callerContextKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
