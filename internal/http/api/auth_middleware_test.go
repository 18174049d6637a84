package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prepdesk/b2bquota/internal/config"
	"github.com/prepdesk/b2bquota/internal/members"
	"github.com/prepdesk/b2bquota/internal/models"
	"github.com/prepdesk/b2bquota/internal/quota"
	"github.com/prepdesk/b2bquota/internal/security"
	"gorm.io/gorm"
)

func setupAPIRouter(t *testing.T) (*gin.Engine, *gorm.DB, config.JWTConfig) {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(
		&models.Admin{},
		&models.Org{},
		&models.User{},
		&models.OrgMember{},
		&models.TestType{},
		&models.QuotaLot{},
		&models.MemberQuotaBalance{},
		&models.QuotaLedgerEntry{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	if errSeed := quota.SeedTestTypes(db); errSeed != nil {
		t.Fatalf("seed test types: %v", errSeed)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", ExpiryHours: 1}
	engine := quota.NewEngine(db, nil)
	router := gin.New()
	RegisterRoutes(router, db, engine, members.NewService(db, engine), jwtCfg)
	return router, db, jwtCfg
}

func createAPIAdmin(t *testing.T, db *gorm.DB, username, password string, active bool) models.Admin {
	t.Helper()
	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{Username: username, Password: hashed, Active: active}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	return admin
}

func TestLoginIssuesToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, db, _ := setupAPIRouter(t)
	createAPIAdmin(t, db, "ops", "correct-horse", true)

	req := httptest.NewRequest(http.MethodPost, "/v0/auth/login",
		strings.NewReader(`{"username":"ops","password":"correct-horse"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		Admin struct {
			Username string `json:"username"`
		} `json:"admin"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Token == "" || resp.Admin.Username != "ops" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, db, _ := setupAPIRouter(t)
	createAPIAdmin(t, db, "ops", "correct-horse", true)

	cases := []struct {
		name string
		body string
	}{
		{name: "wrong password", body: `{"username":"ops","password":"wrong"}`},
		{name: "unknown user", body: `{"username":"ghost","password":"correct-horse"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v0/auth/login", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestLoginRejectsDisabledAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, db, _ := setupAPIRouter(t)
	createAPIAdmin(t, db, "ops", "correct-horse", false)

	req := httptest.NewRequest(http.MethodPost, "/v0/auth/login",
		strings.NewReader(`{"username":"ops","password":"correct-horse"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, _, _ := setupAPIRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "empty token", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v0/b2b/orgs/1/quotas/summary", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAdminRoutesAcceptValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, db, jwtCfg := setupAPIRouter(t)
	admin := createAPIAdmin(t, db, "ops", "correct-horse", true)

	org := models.Org{Name: "Acme Prep", Status: true}
	if errCreate := db.Create(&org).Error; errCreate != nil {
		t.Fatalf("create org: %v", errCreate)
	}

	token, errSign := security.GenerateAdminToken(jwtCfg.Secret, admin.ID, admin.Username, time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v0/b2b/orgs/%d/quotas/summary", org.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminRoutesRejectDisabledAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, db, jwtCfg := setupAPIRouter(t)
	admin := createAPIAdmin(t, db, "ops", "correct-horse", true)

	token, errSign := security.GenerateAdminToken(jwtCfg.Secret, admin.ID, admin.Username, time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if errUpdate := db.Model(&models.Admin{}).Where("id = ?", admin.ID).
		Update("active", false).Error; errUpdate != nil {
		t.Fatalf("disable admin: %v", errUpdate)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/b2b/orgs/1/quotas/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, _, _ := setupAPIRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}
