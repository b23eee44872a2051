package middleware

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/kuadra/cocheras-api/internal/config"
)

// NewRedisCache caches whole responses for the configured methods in
// Redis. Intended for the public, read-only routes (search, districts,
// reviews) where results change slowly and the same query repeats a
// lot. Only 2xx responses within the body size limit are stored.
// Cached hits carry an X-Cache: HIT header.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[c.Request().Method] {
				return next(c)
			}

			key := cacheKeyFrom(cfg, c)
			ctx := c.Request().Context()

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				status, hdr, body, derr := decodePayload(raw)
				if derr == nil {
					for k, vals := range hdr {
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(status, hdr.Get("Content-Type"), body)
				}
				// Corrupt entry: drop it and fall through to the handler.
				rdb.Del(ctx, key)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status >= 200 && status < 300 && !cw.overflow {
				payload := encodePayload(status, c.Response().Header(), cw.buf.Bytes())
				rdb.Set(ctx, key, payload, cfg.TTL)
			}
			return nil
		}
	}
}

// captureWriter tees the response body into a buffer up to a limit.
// Past the limit the response still streams to the client but the
// entry is not cached.
type captureWriter struct {
	http.ResponseWriter
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	req := c.Request()
	var sb strings.Builder
	sb.WriteString(req.Method)
	sb.WriteByte(' ')
	sb.WriteString(req.URL.Path)

	if cfg.KeyStrategy != "route" {
		// Sort query params so equivalent URLs share one entry.
		q := req.URL.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				sb.WriteByte('&')
				sb.WriteString(k)
				sb.WriteByte('=')
				sb.WriteString(v)
			}
		}
	}

	sum := sha1.Sum([]byte(sb.String()))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// Payload layout: u16 status, u16 header count, then per header a
// u16-length key and u16-length value, then the body. Headers that
// vary per request (Date, X-Cache) are skipped.
func encodePayload(status int, hdr http.Header, body []byte) []byte {
	type kv struct{ k, v string }
	var pairs []kv
	for k, vals := range hdr {
		if k == "Date" || k == "X-Cache" {
			continue
		}
		for _, v := range vals {
			pairs = append(pairs, kv{k, v})
		}
	}

	var out bytes.Buffer
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(status))
	out.Write(u16[:])
	binary.BigEndian.PutUint16(u16[:], uint16(len(pairs)))
	out.Write(u16[:])
	for _, p := range pairs {
		binary.BigEndian.PutUint16(u16[:], uint16(len(p.k)))
		out.Write(u16[:])
		out.WriteString(p.k)
		binary.BigEndian.PutUint16(u16[:], uint16(len(p.v)))
		out.Write(u16[:])
		out.WriteString(p.v)
	}
	out.Write(body)
	return out.Bytes()
}

func decodePayload(raw []byte) (int, http.Header, []byte, error) {
	if len(raw) < 4 {
		return 0, nil, nil, errTruncated
	}
	status := int(binary.BigEndian.Uint16(raw[0:2]))
	count := int(binary.BigEndian.Uint16(raw[2:4]))
	pos := 4
	hdr := http.Header{}
	for i := 0; i < count; i++ {
		k, next, err := readChunk(raw, pos)
		if err != nil {
			return 0, nil, nil, err
		}
		v, after, err := readChunk(raw, next)
		if err != nil {
			return 0, nil, nil, err
		}
		hdr.Add(k, v)
		pos = after
	}
	return status, hdr, raw[pos:], nil
}

func readChunk(raw []byte, pos int) (string, int, error) {
	if pos+2 > len(raw) {
		return "", 0, errTruncated
	}
	n := int(binary.BigEndian.Uint16(raw[pos : pos+2]))
	pos += 2
	if pos+n > len(raw) {
		return "", 0, errTruncated
	}
	return string(raw[pos : pos+n]), pos + n, nil
}

var errTruncated = &truncatedError{}

type truncatedError struct{}

func (*truncatedError) Error() string { return "cache: truncated payload" }
