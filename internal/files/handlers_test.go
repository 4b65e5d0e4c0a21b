package files

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/saaskit/internal/authz"
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
	svc, _ := newTestService(t)
	return NewHandler(svc, testActor), svc
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func makeContext(t *testing.T, method, path string, body io.Reader, contentType, idParam string, actor *authz.Actor) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if idParam != "" {
		c.Params = gin.Params{{Key: "id", Value: idParam}}
	}
	c.Request = httptest.NewRequest(method, path, body)
	if contentType != "" {
		c.Request.Header.Set("Content-Type", contentType)
	}
	if actor != nil {
		c.Set(actorKey, *actor)
	}
	return w, c
}

func TestUploadHandler_UserAllowed(t *testing.T) {
	h, svc := setupHandler(t)
	body, ct := multipartBody(t, "notes.txt", "some notes")
	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleUser}
	w, c := makeContext(t, "POST", "/files", body, ct, "", actor)
	h.Upload(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"originalName":"notes.txt"`)

	list, err := svc.Store().List(context.Background(), "org_1", Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "usr_1", list[0].UploadedBy)
}

func TestUploadHandler_ViewerDenied(t *testing.T) {
	h, _ := setupHandler(t)
	body, ct := multipartBody(t, "notes.txt", "some notes")
	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "POST", "/files", body, ct, "", actor)
	h.Upload(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUploadHandler_MissingField(t *testing.T) {
	h, _ := setupHandler(t)
	actor := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleUser}
	w, c := makeContext(t, "POST", "/files", strings.NewReader("raw"), "text/plain", "", actor)
	h.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadHandler_Streams(t *testing.T) {
	h, svc := setupHandler(t)
	f, err := svc.Upload(context.Background(), UploadParams{
		OrgID: "org_1", UploadedBy: "usr_1", OriginalName: "a.txt",
		Body: strings.NewReader("file body here"),
	})
	require.NoError(t, err)

	actor := &authz.Actor{ID: "usr_2", OrgID: "org_1", Role: authz.RoleViewer}
	w, c := makeContext(t, "GET", "/files/"+f.ID+"/download", nil, "", f.ID, actor)
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "file body here", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "a.txt")

	got, err := svc.Store().Get(context.Background(), "org_1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DownloadCount)
}

func TestDeleteHandler_RequiresAdmin(t *testing.T) {
	h, svc := setupHandler(t)
	f, err := svc.Upload(context.Background(), UploadParams{
		OrgID: "org_1", UploadedBy: "usr_1", OriginalName: "a.txt",
		Body: strings.NewReader("x"),
	})
	require.NoError(t, err)

	user := &authz.Actor{ID: "usr_1", OrgID: "org_1", Role: authz.RoleUser}
	w, c := makeContext(t, "DELETE", "/files/"+f.ID, nil, "", f.ID, user)
	h.DeleteFile(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := &authz.Actor{ID: "usr_2", OrgID: "org_1", Role: authz.RoleAdmin}
	w, c = makeContext(t, "DELETE", "/files/"+f.ID, nil, "", f.ID, admin)
	h.DeleteFile(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateFileHandler_TogglePublic(t *testing.T) {
	h, svc := setupHandler(t)
	f, err := svc.Upload(context.Background(), UploadParams{
		OrgID: "org_1", UploadedBy: "usr_1", OriginalName: "a.txt",
		Body: strings.NewReader("x"),
	})
	require.NoError(t, err)

	manager := &authz.Actor{ID: "usr_2", OrgID: "org_1", Role: authz.RoleManager}
	w, c := makeContext(t, "PATCH", "/files/"+f.ID, strings.NewReader(`{"isPublic":true}`), "application/json", f.ID, manager)
	h.UpdateFile(c)

	require.Equal(t, http.StatusOK, w.Code)
	got, err := svc.Store().Get(context.Background(), "org_1", f.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)
}
