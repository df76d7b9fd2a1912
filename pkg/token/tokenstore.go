package tokenstore

import "sync"

// in-memory jti revocation store; logout adds entries, auth middleware checks.
// For multi-instance deployments this would move to Redis or the DB.
var (
	mu      sync.RWMutex
	revoked = map[string]struct{}{}
)

func Revoke(jti string) {
	if jti == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	revoked[jti] = struct{}{}
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	_, ok := revoked[jti]
	return ok
}
