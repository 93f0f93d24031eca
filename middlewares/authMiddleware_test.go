package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/marketplace_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They pin the token parsing
// contract: the bearer token turns into typed context keys, and handlers
// behind RequireAuth never see an anonymous request.

func TestAuthMiddleware_ValidTokenPopulatesContext(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")
	gin.SetMode(gin.TestMode)

	token, err := utils.JwtGenerate(7, "vendor@example.test", "vendor", 3)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		ctx := c.Request.Context()
		userId, _ := utils.GetUserIdFromContext(ctx)
		email, _ := utils.GetEmailFromContext(ctx)
		storeId, _ := utils.GetStoreIdFromContext(ctx)
		isAdmin, _ := utils.GetIsAdminFromContext(ctx)
		roundTripped, _ := utils.GetTokenFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{
			"user_id":       userId,
			"email":         email,
			"store_id":      storeId,
			"is_admin":      isAdmin,
			"token_matches": roundTripped == token,
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got struct {
		UserId       int    `json:"user_id"`
		Email        string `json:"email"`
		StoreId      int    `json:"store_id"`
		IsAdmin      bool   `json:"is_admin"`
		TokenMatches bool   `json:"token_matches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.UserId != 7 || got.Email != "vendor@example.test" || got.StoreId != 3 {
		t.Fatalf("claims did not reach the context: %+v", got)
	}
	if got.IsAdmin {
		t.Fatal("vendor role must not be admin")
	}
	if !got.TokenMatches {
		t.Fatal("raw token must round-trip through the context")
	}

	if w.Header().Get("X-Correlation-Id") == "" {
		t.Fatal("middleware must mint a correlation id")
	}
}

func TestAuthMiddleware_BadTokenRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a garbage token, got %d", w.Code)
	}
}

func TestRequireAuth_AnonymousRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/orders", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
}
