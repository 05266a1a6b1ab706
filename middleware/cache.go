package middleware

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CacheResponse is a read-through memoizer for GET endpoints: a hit serves
// the stored JSON body, a miss captures the response and stores it with a
// fixed TTL. Entries are never invalidated on writes; staleness up to the TTL
// is accepted. The key includes the caller's user id because list payloads
// carry per-user fields (attempted, config visibility).
//
// Redis being down only disables the cache; the request still runs live.
func CacheResponse(client *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c)
		ctx := context.Background()

		if body, err := client.Get(ctx, key).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		} else if err != redis.Nil {
			log.Printf("Cache read failed for %s: %v", key, err)
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		if writer.Status() == http.StatusOK {
			if err := client.Set(ctx, key, writer.body.Bytes(), ttl).Err(); err != nil {
				log.Printf("Cache write failed for %s: %v", key, err)
			}
		}
	}
}

func cacheKey(c *gin.Context) string {
	caller := "anonymous"
	if user := CurrentUser(c); user != nil {
		caller = user.ID.String()
	}
	return "cache:" + caller + ":" + c.Request.URL.Path + "?" + c.Request.URL.RawQuery
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyCaptureWriter) WriteString(data string) (int, error) {
	w.body.WriteString(data)
	return w.ResponseWriter.WriteString(data)
}
