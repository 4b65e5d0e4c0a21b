package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/org"
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

func setupHandler(t *testing.T) (*Handler, *Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	orgs := org.NewMemoryStore()
	require.NoError(t, orgs.Create(context.Background(), &org.Organization{
		ID: "org_1", Slug: "acme", Plan: org.PlanPro,
		Status: org.StatusActive, Settings: org.SettingsFor(org.PlanPro),
	}))

	svc := NewService(store, orgs, nil)
	return NewHandler(svc, testActor), svc, store
}

func seedUser(t *testing.T, svc *Service, email string, role authz.Role) *User {
	t.Helper()
	u, err := svc.Create(context.Background(), CreateParams{
		OrgID: "org_1", Email: email, Role: role, Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	return u
}

func makeContext(t *testing.T, method, path string, body []byte, idParam string, actor *authz.Actor) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: idParam}}
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

func TestMe(t *testing.T) {
	h, svc, _ := setupHandler(t)
	u := seedUser(t, svc, "me@acme.test", authz.RoleUser)

	actor := u.Actor()
	w, c := makeContext(t, "GET", "/me", nil, "", &actor)
	h.Me(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "me@acme.test")
	assert.NotContains(t, w.Body.String(), u.PasswordHash)
}

func TestCreateUser_AdminOnly(t *testing.T) {
	h, svc, _ := setupHandler(t)
	admin := seedUser(t, svc, "admin@acme.test", authz.RoleAdmin)
	manager := seedUser(t, svc, "manager@acme.test", authz.RoleManager)

	body, _ := json.Marshal(gin.H{
		"email":    "new@acme.test",
		"role":     "user",
		"password": "hunter2hunter2",
	})

	adminActor := admin.Actor()
	w, c := makeContext(t, "POST", "/users", body, "", &adminActor)
	h.CreateUser(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	managerActor := manager.Actor()
	w, c = makeContext(t, "POST", "/users", body, "", &managerActor)
	h.CreateUser(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateUser_CannotGrantOwnRankOrAbove(t *testing.T) {
	h, svc, _ := setupHandler(t)
	admin := seedUser(t, svc, "admin@acme.test", authz.RoleAdmin)

	for _, role := range []string{"admin", "owner"} {
		body, _ := json.Marshal(gin.H{
			"email":    "esc-" + role + "@acme.test",
			"role":     role,
			"password": "hunter2hunter2",
		})
		actor := admin.Actor()
		w, c := makeContext(t, "POST", "/users", body, "", &actor)
		h.CreateUser(c)
		assert.Equal(t, http.StatusForbidden, w.Code, "role %s", role)
	}
}

func TestGetUser_CrossOrgConcealedAsNotFound(t *testing.T) {
	h, svc, _ := setupHandler(t)
	target := seedUser(t, svc, "target@acme.test", authz.RoleUser)

	outsider := authz.Actor{ID: "usr_out", OrgID: "org_other", Role: authz.RoleOwner}
	w, c := makeContext(t, "GET", "/users/"+target.ID, nil, target.ID, &outsider)
	h.GetUser(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUser_RoleEscalationBlocked(t *testing.T) {
	h, svc, _ := setupHandler(t)
	admin := seedUser(t, svc, "admin@acme.test", authz.RoleAdmin)
	owner := seedUser(t, svc, "owner@acme.test", authz.RoleOwner)
	member := seedUser(t, svc, "member@acme.test", authz.RoleUser)

	adminActor := admin.Actor()

	// Admin cannot touch the owner.
	body, _ := json.Marshal(gin.H{"role": "user"})
	w, c := makeContext(t, "PATCH", "/users/"+owner.ID, body, owner.ID, &adminActor)
	h.UpdateUser(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin can move a user to manager.
	body, _ = json.Marshal(gin.H{"role": "manager"})
	w, c = makeContext(t, "PATCH", "/users/"+member.ID, body, member.ID, &adminActor)
	h.UpdateUser(c)
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := svc.Store().Get(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleManager, got.Role)
}

func TestDeleteUser(t *testing.T) {
	h, svc, _ := setupHandler(t)
	admin := seedUser(t, svc, "admin@acme.test", authz.RoleAdmin)
	member := seedUser(t, svc, "member@acme.test", authz.RoleUser)

	adminActor := admin.Actor()

	// Self-delete is refused.
	w, c := makeContext(t, "DELETE", "/users/"+admin.ID, nil, admin.ID, &adminActor)
	h.DeleteUser(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, c = makeContext(t, "DELETE", "/users/"+member.ID, nil, member.ID, &adminActor)
	h.DeleteUser(c)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := svc.Store().Get(context.Background(), member.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangePasswordHandler_RequiresOldPassword(t *testing.T) {
	h, svc, _ := setupHandler(t)
	u := seedUser(t, svc, "me@acme.test", authz.RoleUser)
	actor := u.Actor()

	body, _ := json.Marshal(gin.H{"oldPassword": "nope", "newPassword": "newpassword99"})
	w, c := makeContext(t, "POST", "/me/password", body, "", &actor)
	h.ChangePassword(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "wrong_password")

	body, _ = json.Marshal(gin.H{"oldPassword": "hunter2hunter2", "newPassword": "newpassword99"})
	w, c = makeContext(t, "POST", "/me/password", body, "", &actor)
	h.ChangePassword(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetTwoFactor(t *testing.T) {
	h, svc, _ := setupHandler(t)
	u := seedUser(t, svc, "me@acme.test", authz.RoleUser)
	actor := u.Actor()

	body, _ := json.Marshal(gin.H{"enabled": true})
	w, c := makeContext(t, "POST", "/me/2fa", body, "", &actor)
	h.SetTwoFactor(c)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := svc.Store().Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)
}
