package org

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const actorKey = "test_actor"

func testActor(c *gin.Context) (authz.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return authz.Actor{}, false
	}
	return v.(authz.Actor), true
}

func setupHandler(t *testing.T) (*Handler, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewService(store, &stubProvisioner{ownerID: "usr_owner"})
	h := NewHandler(svc, testActor)

	require.NoError(t, store.Create(context.Background(), &Organization{
		ID:        "org_1",
		Name:      "Acme",
		Slug:      "acme",
		Plan:      PlanBasic,
		Status:    StatusActive,
		Settings:  SettingsFor(PlanBasic),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))
	return h, store
}

func makeContext(t *testing.T, method, path string, body []byte, orgParam string, actor *authz.Actor) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: orgParam}}
	if body != nil {
		c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, path, nil)
	}
	if actor != nil {
		c.Set(actorKey, *actor)
	}
	return w, c
}

func TestSignup_Success(t *testing.T) {
	h, store := setupHandler(t)

	body, _ := json.Marshal(gin.H{
		"name": "New Co",
		"slug": "New-Co",
		"plan": "pro",
		"owner": gin.H{
			"email":    "Owner@newco.test",
			"password": "hunter2hunter2",
		},
	})

	w := httptest.NewRecorder()
	_, router := gin.CreateTestContext(w)
	h.RegisterPublicRoutes(router.Group("/"))
	req := httptest.NewRequest("POST", "/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	created := resp["organization"].(map[string]interface{})
	assert.Equal(t, "new-co", created["slug"]) // normalized
	assert.Equal(t, "pro", created["plan"])
	assert.Equal(t, "usr_owner", resp["ownerId"])

	_, err := store.GetBySlug(context.Background(), "new-co")
	assert.NoError(t, err)
}

func TestSignup_DuplicateSlugConflicts(t *testing.T) {
	h, _ := setupHandler(t)

	body, _ := json.Marshal(gin.H{
		"name": "Other",
		"slug": "acme",
		"owner": gin.H{
			"email":    "o@o.test",
			"password": "hunter2hunter2",
		},
	})

	w := httptest.NewRecorder()
	_, router := gin.CreateTestContext(w)
	h.RegisterPublicRoutes(router.Group("/"))
	req := httptest.NewRequest("POST", "/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignup_RejectsWeakPassword(t *testing.T) {
	h, _ := setupHandler(t)

	body, _ := json.Marshal(gin.H{
		"name": "Other",
		"slug": "other-co",
		"owner": gin.H{
			"email":    "o@o.test",
			"password": "short",
		},
	})

	w := httptest.NewRecorder()
	_, router := gin.CreateTestContext(w)
	h.RegisterPublicRoutes(router.Group("/"))
	req := httptest.NewRequest("POST", "/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestGetOrganization_SameOrg(t *testing.T) {
	h, _ := setupHandler(t)

	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "GET", "/organizations/org_1", nil, "org_1", actor)
	h.GetOrganization(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
}

func TestGetOrganization_CrossOrgConcealedAsNotFound(t *testing.T) {
	h, _ := setupHandler(t)

	actor := &authz.Actor{ID: "usr_1", OrgID: "org_other", Role: authz.RoleOwner}
	w, c := makeContext(t, "GET", "/organizations/org_1", nil, "org_1", actor)
	h.GetOrganization(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrganization_StaffCrossOrgAllowed(t *testing.T) {
	h, _ := setupHandler(t)

	actor := &authz.Actor{ID: "usr_staff", Staff: true}
	w, c := makeContext(t, "GET", "/organizations/org_1", nil, "org_1", actor)
	h.GetOrganization(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetOrganization_Unauthenticated(t *testing.T) {
	h, _ := setupHandler(t)

	w, c := makeContext(t, "GET", "/organizations/org_1", nil, "org_1", nil)
	h.GetOrganization(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateOrganization_OwnerOnly(t *testing.T) {
	h, store := setupHandler(t)

	body, _ := json.Marshal(gin.H{"name": "Acme Renamed"})

	owner := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleOwner}
	w, c := makeContext(t, "PATCH", "/organizations/org_1", body, "org_1", owner)
	h.UpdateOrganization(c)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := store.Get(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", got.Name)

	// An admin in the same org is still not the owner.
	admin := &authz.Actor{ID: "usr_2", OrgID: "org_1", Role: authz.RoleAdmin}
	w, c = makeContext(t, "PATCH", "/organizations/org_1", body, "org_1", admin)
	h.UpdateOrganization(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSetStatus_Suspend(t *testing.T) {
	h, store := setupHandler(t)

	body, _ := json.Marshal(gin.H{"status": "suspended"})
	w, c := makeContext(t, "POST", "/admin/organizations/org_1/status", body, "org_1", nil)
	h.SetStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	got, err := store.Get(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, got.Status)
}

func TestSetPlan_UpdatesSettings(t *testing.T) {
	h, store := setupHandler(t)

	body, _ := json.Marshal(gin.H{"plan": "enterprise"})
	w, c := makeContext(t, "POST", "/admin/organizations/org_1/plan", body, "org_1", nil)
	h.SetPlan(c)

	require.Equal(t, http.StatusOK, w.Code)
	got, err := store.Get(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Equal(t, PlanEnterprise, got.Plan)
	assert.Equal(t, Unlimited, got.Settings.MaxProducts)
}
