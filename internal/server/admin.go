package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/keywire/internal/auth"
	"github.com/danmuck/keywire/internal/observability"
	"github.com/danmuck/keywire/internal/store"
)

// adminEngine builds the admin-plane router: health and metrics are open,
// key management sits behind the bearer token when one is configured.
func (s *Service) adminEngine() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.logger))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		stats := s.store.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"uptime":          time.Since(s.started).String(),
			"component":       "keywire-admin",
			"version":         "0.0.1",
			"keys":            stats.Keys,
			"bytes":           stats.Bytes,
			"active_sessions": s.sessionClientCount.Load(),
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		if !s.ready.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(s.started).String(),
			"kinds":  s.registry.Kinds(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	keys := r.Group("/keys")
	if s.cfg.AuthToken != "" {
		keys.Use(s.requireAuth())
	}

	keys.GET("", func(c *gin.Context) {
		raw := s.store.Keys()
		list := make([]string, 0, len(raw))
		for _, k := range raw {
			list = append(list, store.FormatKey(k))
		}
		c.JSON(http.StatusOK, gin.H{"keys": list, "count": len(list)})
	})

	keys.GET("/:key", func(c *gin.Context) {
		key, ok := parseKeyParam(c)
		if !ok {
			return
		}
		value, found := s.store.Get(key)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", value.Bytes())
	})

	keys.PUT("/:key", func(c *gin.Context) {
		key, ok := parseKeyParam(c)
		if !ok {
			return
		}
		value, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
			return
		}
		s.store.Put(key, value)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "key": store.FormatKey(key), "bytes": len(value)})
	})

	keys.DELETE("/:key", func(c *gin.Context) {
		key, ok := parseKeyParam(c)
		if !ok {
			return
		}
		if !s.store.Delete(key) {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "key": store.FormatKey(key)})
	})

	return r
}

func (s *Service) requireAuth() gin.HandlerFunc {
	validator := auth.StaticToken{Token: s.cfg.AuthToken}
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if err := validator.Validate(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func parseKeyParam(c *gin.Context) (uint64, bool) {
	key, err := store.ParseKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return 0, false
	}
	return key, true
}

func (s *Service) serveAdmin(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.AdminAddr,
		Handler:           s.adminEngine(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
