package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

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

func setupHandler(t *testing.T) (*Handler, *Service) {
	t.Helper()
	svc := NewService(NewMemoryStore(), nil, nil)
	return NewHandler(svc, testActor), svc
}

func makeContext(t *testing.T, method, path, idParam string, actor *authz.Actor) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: idParam}}
	c.Request = httptest.NewRequest(method, path, nil)
	if actor != nil {
		c.Set(actorKey, *actor)
	}
	return w, c
}

func TestListNotifications_OwnFeedOnly(t *testing.T) {
	h, svc := setupHandler(t)
	ctx := context.Background()

	_, err := svc.Notify(ctx, "org_1", "usr_1", TypeInfo, "mine", "m")
	require.NoError(t, err)
	_, err = svc.Notify(ctx, "org_1", "usr_2", TypeInfo, "theirs", "t")
	require.NoError(t, err)

	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "GET", "/notifications", "", actor)
	h.ListNotifications(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mine")
	assert.NotContains(t, w.Body.String(), "theirs")
}

func TestMarkRead_ViewerAllowed(t *testing.T) {
	h, svc := setupHandler(t)
	n, err := svc.Notify(context.Background(), "org_1", "usr_1", TypeInfo, "hello", "m")
	require.NoError(t, err)

	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "POST", "/notifications/"+n.ID+"/read", n.ID, actor)
	h.MarkRead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	got, err := svc.Store().Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func TestMarkRead_OtherUsersNotificationConcealed(t *testing.T) {
	h, svc := setupHandler(t)
	n, err := svc.Notify(context.Background(), "org_1", "usr_2", TypeInfo, "hello", "m")
	require.NoError(t, err)

	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleOwner}
	w, c := makeContext(t, "POST", "/notifications/"+n.ID+"/read", n.ID, actor)
	h.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteNotification_ViewerDenied(t *testing.T) {
	h, svc := setupHandler(t)
	n, err := svc.Notify(context.Background(), "org_1", "usr_1", TypeInfo, "hello", "m")
	require.NoError(t, err)

	viewer := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "DELETE", "/notifications/"+n.ID, n.ID, viewer)
	h.DeleteNotification(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	member := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleUser}
	w, c = makeContext(t, "DELETE", "/notifications/"+n.ID, n.ID, member)
	h.DeleteNotification(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCrossOrgNotificationConcealed(t *testing.T) {
	h, svc := setupHandler(t)
	n, err := svc.Notify(context.Background(), "org_1", "usr_1", TypeInfo, "hello", "m")
	require.NoError(t, err)

	outsider := &authz.Actor{ID: "usr_9", OrgID: "org_other", Role: authz.RoleOwner}
	w, c := makeContext(t, "POST", "/notifications/"+n.ID+"/read", n.ID, outsider)
	h.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnreadCount(t *testing.T) {
	h, svc := setupHandler(t)
	ctx := context.Background()

	_, err := svc.Notify(ctx, "org_1", "usr_1", TypeInfo, "a", "a")
	require.NoError(t, err)
	n, err := svc.Notify(ctx, "org_1", "usr_1", TypeInfo, "b", "b")
	require.NoError(t, err)
	_, err = svc.MarkRead(ctx, n.ID)
	require.NoError(t, err)

	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "GET", "/notifications/unread-count", "", actor)
	h.UnreadCount(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread":1`)
}
