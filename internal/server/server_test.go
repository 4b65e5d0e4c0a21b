package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing (in-memory storage)
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:             "0",
		Env:              "development",
		LogLevel:         "error",
		JWTSecret:        "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		UploadDir:        t.TempDir(),
		MaxUploadSize:    1 << 20,
		MeteringInterval: time.Hour,
		BillingInterval:  time.Hour,
		RateLimitRPM:     10000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func doJSON(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signupAndLogin provisions an org and returns an owner access token.
func signupAndLogin(t *testing.T, s *Server, slug string) string {
	t.Helper()

	w := doJSON(s, "POST", "/v1/signup", `{
		"name": "Acme Corp",
		"slug": "`+slug+`",
		"plan": "basic",
		"owner": {"email": "owner@`+slug+`.test", "username": "owner", "password": "hunter2hunter2"}
	}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(s, "POST", "/v1/auth/token",
		`{"email": "owner@`+slug+`.test", "password": "hunter2hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("token: parse response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("token: empty access token")
	}
	return resp.AccessToken
}

// ---------------------------------------------------------------------------
// Health endpoints
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health/ready", "", "")
	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Signup and auth flow
// ---------------------------------------------------------------------------

func TestSignupLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	token := signupAndLogin(t, s, "acme")

	w := doJSON(s, "GET", "/v1/me", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var me struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("me: parse response: %v", err)
	}
	if me.User.Role != "owner" {
		t.Errorf("Expected role owner, got %q", me.User.Role)
	}
}

func TestSignupDuplicateSlug(t *testing.T) {
	s := newTestServer(t)
	signupAndLogin(t, s, "dupe")

	w := doJSON(s, "POST", "/v1/signup", `{
		"name": "Copycat",
		"slug": "dupe",
		"owner": {"email": "other@dupe.test", "password": "hunter2hunter2"}
	}`, "")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate slug, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/v1/products", "/v1/usage", "/v1/notifications", "/v1/files"} {
		w := doJSON(s, "GET", path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without auth: expected 401, got %d", path, w.Code)
		}
	}
}

func TestStaffRoutesDenyTenants(t *testing.T) {
	s := newTestServer(t)
	token := signupAndLogin(t, s, "tenant")

	w := doJSON(s, "GET", "/v1/organizations", "", token)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for tenant on staff route, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Cross-service wiring
// ---------------------------------------------------------------------------

func TestSignupProvisionsSubscriptionAndUsage(t *testing.T) {
	s := newTestServer(t)
	token := signupAndLogin(t, s, "wired")

	// Initial subscription was created by the provisioner
	w := doJSON(s, "GET", "/v1/subscription", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("subscription: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sub struct {
		Subscription struct {
			Plan     string `json:"plan"`
			IsActive bool   `json:"isActive"`
		} `json:"subscription"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sub); err != nil {
		t.Fatalf("subscription: parse response: %v", err)
	}
	if sub.Subscription.Plan != "basic" || !sub.Subscription.IsActive {
		t.Errorf("Expected active basic subscription, got %+v", sub.Subscription)
	}

	// The owner account counted against the users feature, and the
	// authenticated requests above counted as api calls
	w = doJSON(s, "GET", "/v1/usage", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("usage: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var usageResp struct {
		Usage []struct {
			Feature string `json:"feature"`
			Count   int64  `json:"count"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &usageResp); err != nil {
		t.Fatalf("usage: parse response: %v", err)
	}

	counts := map[string]int64{}
	for _, u := range usageResp.Usage {
		counts[u.Feature] = u.Count
	}
	if counts["users"] != 1 {
		t.Errorf("Expected users count 1, got %d", counts["users"])
	}
	if counts["api_calls"] < 1 {
		t.Errorf("Expected api_calls >= 1, got %d", counts["api_calls"])
	}
}

func TestProductLifecycleThroughAPI(t *testing.T) {
	s := newTestServer(t)
	token := signupAndLogin(t, s, "shop")

	w := doJSON(s, "POST", "/v1/products",
		`{"name": "Widget", "price": 1999, "quantity": 5}`, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Product struct {
			ID  string `json:"id"`
			SKU string `json:"sku"`
		} `json:"product"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create product: parse response: %v", err)
	}
	if created.Product.ID == "" || !strings.HasPrefix(created.Product.SKU, "SKU-") {
		t.Errorf("Unexpected product identity: %+v", created.Product)
	}

	w = doJSON(s, "GET", "/v1/products/"+created.Product.ID, "", token)
	if w.Code != http.StatusOK {
		t.Errorf("get product: expected 200, got %d", w.Code)
	}

	w = doJSON(s, "DELETE", "/v1/products/"+created.Product.ID, "", token)
	if w.Code != http.StatusOK {
		t.Errorf("delete product: expected 200, got %d", w.Code)
	}
}

func TestWelcomeNotificationOnSignup(t *testing.T) {
	s := newTestServer(t)
	token := signupAndLogin(t, s, "hello")

	w := doJSON(s, "GET", "/v1/notifications", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Welcome") {
		t.Errorf("Expected a welcome notification, got %s", w.Body.String())
	}
}

func TestAdminSecretGrantsStaff(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminSecret = "super-secret-ops-token"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/v1/organizations", nil)
	req.Header.Set("X-Admin-Secret", "super-secret-ops-token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for ops secret on staff route, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Route registration
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	want := []string{
		"POST /v1/signup",
		"POST /v1/auth/token",
		"GET /v1/me",
		"GET /v1/products",
		"GET /v1/subscription",
		"GET /v1/usage",
		"POST /v1/usage/recompute",
		"GET /v1/files",
		"GET /v1/notifications",
		"GET /v1/activity-logs",
		"GET /ws",
		"GET /metrics",
		"POST /v1/organizations/:id/plan",
	}

	registered := map[string]bool{}
	for _, r := range s.router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, route := range want {
		if !registered[route] {
			t.Errorf("Route not registered: %s", route)
		}
	}
}
