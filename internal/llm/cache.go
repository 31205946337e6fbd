package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WithCache memoizes successful replies keyed by model, sampling settings and
// prompt, so rescanning unchanged files returns the same verdicts without a
// service call. size <= 0 disables the cache.
func WithCache(size int) Middleware {
	return func(next Client) Client {
		if size <= 0 {
			return next
		}
		c, err := lru.New[string, string](size)
		if err != nil {
			return next
		}
		return &cached{next: next, cache: c}
	}
}

type cached struct {
	next  Client
	cache *lru.Cache[string, string]
}

func (c *cached) Name() string { return c.next.Name() }
func (c *cached) Close() error { return c.next.Close() }
func (c *cached) Complete(ctx context.Context, req Request) (string, error) {
	key := cacheKey(req)
	if reply, ok := c.cache.Get(key); ok {
		return reply, nil
	}
	reply, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, reply)
	return reply, nil
}

// Len reports how many replies are cached.
func (c *cached) Len() int { return c.cache.Len() }

func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	var buf [9]byte
	binary.BigEndian.PutUint32(buf[:4], math.Float32bits(req.Temperature))
	binary.BigEndian.PutUint32(buf[4:8], uint32(req.MaxTokens))
	if req.JSON {
		buf[8] = 1
	}
	h.Write(buf[:])
	h.Write([]byte(req.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}
