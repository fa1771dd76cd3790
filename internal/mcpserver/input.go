package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/gateway"
)

// sweepInterval is how often expired cache entries are removed.
const sweepInterval = 60 * time.Second

// contractInput names the contract a tool call works against. At most one
// of File, URL, or Content may be set; none selects the startup contract.
type contractInput struct {
	File    string `json:"file,omitempty"    jsonschema:"Path to a contract file on disk"`
	URL     string `json:"url,omitempty"     jsonschema:"URL to fetch a contract from"`
	Content string `json:"content,omitempty" jsonschema:"Inline contract content (JSON or YAML)"`
}

func (in contractInput) count() int {
	n := 0
	for _, s := range []string{in.File, in.URL, in.Content} {
		if s != "" {
			n++
		}
	}
	return n
}

// cacheEntry holds a built gateway with LRU ordering and TTL expiry.
type cacheEntry struct {
	gw        *gateway.Gateway
	touchedAt time.Time
	expiresAt time.Time
}

// gatewayCache keeps gateways built from tool inputs for the session.
// File inputs are keyed by (absolutePath, modTime), content inputs by a
// SHA-256 hash and URL inputs by the URL string.
type gatewayCache struct {
	mu             sync.Mutex
	entries        map[string]*cacheEntry
	maxSize        int
	sweeperStarted atomic.Bool
}

func newGatewayCache(maxSize int) *gatewayCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &gatewayCache{entries: make(map[string]*cacheEntry), maxSize: maxSize}
}

// get returns a cached gateway or nil. Expired entries are lazily removed.
func (c *gatewayCache) get(key string) *gateway.Gateway {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	e.touchedAt = time.Now()
	return e.gw
}

// put stores gw, evicting the least recently used entry when at capacity.
func (c *gatewayCache) put(key string, gw *gateway.Gateway, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry := &cacheEntry{gw: gw, touchedAt: now, expiresAt: now.Add(ttl)}
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.touchedAt.Before(oldest) {
				oldestKey, oldest = k, e.touchedAt
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = entry
}

func (c *gatewayCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// startSweeper launches a goroutine that periodically removes expired
// entries until ctx is cancelled. Only the first call has an effect.
func (c *gatewayCache) startSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !c.sweeperStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.sweeperStarted.Store(false)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *gatewayCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey returns the cache key for in, or "" when it cannot be cached.
func cacheKey(in contractInput) string {
	switch {
	case in.File != "":
		abs, err := filepath.Abs(in.File)
		if err != nil {
			return ""
		}
		info, err := os.Stat(abs)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("file:%s:%d", abs, info.ModTime().UnixNano())
	case in.Content != "":
		h := sha256.Sum256([]byte(in.Content))
		return "content:" + hex.EncodeToString(h[:])
	case in.URL != "":
		return "url:" + in.URL
	}
	return ""
}

// gateway returns the gateway for in, loading and caching it when needed.
func (s *Server) gateway(ctx context.Context, in contractInput) (*gateway.Gateway, error) {
	switch n := in.count(); {
	case n == 0:
		if s.dflt == nil {
			return nil, fmt.Errorf("no contract loaded at startup; provide one of file, url, or content")
		}
		return s.dflt, nil
	case n > 1:
		return nil, fmt.Errorf("at most one of file, url, or content may be provided (got %d)", n)
	}

	if in.Content != "" && int64(len(in.Content)) > s.cfg.MCP.MaxInlineSize {
		return nil, fmt.Errorf("inline content size %d bytes exceeds maximum %d bytes; use file input instead, or set OASGATE_MCP_MAX_INLINE_SIZE to increase",
			len(in.Content), s.cfg.MCP.MaxInlineSize)
	}

	var key string
	if s.cfg.MCP.CacheEnabled {
		key = cacheKey(in)
		if key != "" {
			if gw := s.cache.get(key); gw != nil {
				return gw, nil
			}
		}
	}

	var opts []contract.Option
	switch {
	case in.File != "":
		opts = append(opts, contract.WithFilePath(in.File))
	case in.URL != "":
		data, err := fetchContract(ctx, s.fetcher, in.URL, s.cfg.MCP.MaxInlineSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, contract.WithBytes(data), contract.WithSourceName(in.URL))
	default:
		opts = append(opts, contract.WithBytes([]byte(in.Content)), contract.WithSourceName("inline"))
	}
	doc, err := contract.ParseWithOptions(append(opts, contract.WithLogger(s.logger))...)
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(doc, s.cfg, s.logger)
	if err != nil {
		return nil, err
	}

	if key != "" {
		s.cache.put(key, gw, s.cfg.MCP.CacheTTL)
	}
	return gw, nil
}
