package middleware

import (
	"sync"
	"time"
)

// 吊销集合：按 token 的 jti 记录被强制失效的会话
// 条目随 token 自然过期后清理，集合规模有界
var (
	revokedMu sync.RWMutex
	revoked   = map[string]time.Time{}

	revocationCleanupOnce sync.Once
)

// RevokeToken 将指定 jti 加入吊销集合，expiresAt 为该 token 的自然过期时间
func RevokeToken(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}
	startRevocationCleanup()
	revokedMu.Lock()
	revoked[tokenID] = expiresAt
	revokedMu.Unlock()
}

// IsTokenRevoked 检查 jti 是否已被吊销
func IsTokenRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	revokedMu.RLock()
	expiresAt, ok := revoked[tokenID]
	revokedMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		// token 已自然过期，条目不再需要
		revokedMu.Lock()
		delete(revoked, tokenID)
		revokedMu.Unlock()
		return false
	}
	return true
}

// startRevocationCleanup 定期清理已过期的吊销条目
func startRevocationCleanup() {
	revocationCleanupOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				now := time.Now()
				revokedMu.Lock()
				for id, expiresAt := range revoked {
					if now.After(expiresAt) {
						delete(revoked, id)
					}
				}
				revokedMu.Unlock()
			}
		}()
	})
}
