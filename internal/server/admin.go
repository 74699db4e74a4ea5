package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"top3hunter/internal/configstore"
	"top3hunter/internal/pipeline"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type settingUpdate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type updateSettingsRequest struct {
	Settings []settingUpdate `json:"settings"`
}

// handleAdminLogin verifies the admin credentials and issues a signed token.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "request body must be JSON with username and password", "INVALID_REQUEST")
		return
	}

	// Constant-time compare on both fields so a mismatch in either takes the
	// same time.
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Admin.Username))
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Admin.Password))
	if userOK&passOK != 1 {
		s.log.Warn("admin login rejected", "username", req.Username, "remote", r.RemoteAddr)
		s.respondError(w, http.StatusUnauthorized, "invalid username or password", "INVALID_CREDENTIALS")
		return
	}

	now := time.Now()
	ttl := s.cfg.Admin.TokenTTL
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString([]byte(s.cfg.Admin.JWTSecret))
	if err != nil {
		s.log.Error("failed to sign admin token", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "internal server error, please retry later", "INTERNAL_SERVER_ERROR")
		return
	}

	s.respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	})
}

// requireAdmin rejects requests without a valid bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			s.respondError(w, http.StatusUnauthorized, "missing bearer token", "UNAUTHORIZED")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.cfg.Admin.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			s.respondError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHORIZED")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleGetSettings lists configuration entries, optionally one group.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	var (
		entries []configstore.Entry
		err     error
	)
	if group := r.URL.Query().Get("group"); group != "" {
		entries, err = s.store.GetByGroup(r.Context(), group)
	} else {
		entries, err = s.store.List(r.Context())
	}
	if err != nil {
		s.log.Error("failed to load settings", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "failed to load settings", "INTERNAL_SERVER_ERROR")
		return
	}

	if entries == nil {
		entries = []configstore.Entry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"settings": entries,
	})
}

// handleUpdateSettings upserts a batch of settings and drops the cached
// configuration snapshot so the change applies on the next search.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "request body must be JSON with a settings array", "INVALID_REQUEST")
		return
	}
	if len(req.Settings) == 0 {
		s.respondError(w, http.StatusBadRequest, "settings array must not be empty", "INVALID_REQUEST")
		return
	}

	updates := make(map[string]string, len(req.Settings))
	for _, u := range req.Settings {
		if u.Key == "" {
			s.respondError(w, http.StatusBadRequest, "every setting needs a non-empty key", "INVALID_REQUEST")
			return
		}
		updates[u.Key] = u.Value
	}

	if err := s.store.BatchUpdate(r.Context(), updates); err != nil {
		s.log.Error("failed to update settings", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "failed to update settings", "INTERNAL_SERVER_ERROR")
		return
	}

	s.cache.Delete(r.Context(), pipeline.ConfigCacheKey)

	s.log.Info("settings updated", "count", len(updates))
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"updated": len(updates),
	})
}

// handleSeed inserts missing default configuration entries.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	created, err := s.store.Seed(r.Context())
	if err != nil {
		s.log.Error("failed to seed settings", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "failed to seed settings", "INTERNAL_SERVER_ERROR")
		return
	}

	s.cache.Delete(r.Context(), pipeline.ConfigCacheKey)

	s.log.Info("default settings seeded", "created", created)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"created": created,
	})
}

// handleAdminHealth is the authenticated dependency check.
func (s *Server) handleAdminHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbErr := s.store.Ping(ctx)
	cacheErr := s.cache.Ping(ctx)

	status := "healthy"
	if dbErr != nil || cacheErr != nil {
		status = "degraded"
	}

	errString := func(err error) string {
		if err == nil {
			return "ok"
		}
		return err.Error()
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": map[string]string{
			"database": errString(dbErr),
			"cache":    errString(cacheErr),
		},
	})
}
