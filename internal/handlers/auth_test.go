package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	gsessions "github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// brokenStore 模拟无法写回的 session 存储
type brokenStore struct{}

func (s brokenStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.NewSession(s, name), nil
}

func (s brokenStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.NewSession(s, name), nil
}

func (brokenStore) Save(*http.Request, http.ResponseWriter, *gsessions.Session) error {
	return errors.New("session store unavailable")
}

func (brokenStore) Options(sessions.Options) {}

func TestLogoutReportsSessionSaveFailure(t *testing.T) {
	r := gin.New()
	r.Use(sessions.Sessions("test_session", brokenStore{}))
	r.POST("/logout", NewAuthHandler(nil).Logout)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"INTERNAL"`)
}
