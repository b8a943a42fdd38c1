package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/auth"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/config"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	claims *auth.CustomClaims
	err    error
}

func (s *stubValidator) ValidateToken(string) (*auth.CustomClaims, error) {
	return s.claims, s.err
}

type stubKicker struct {
	kicked map[participant.ID]bool
	result bool
}

func (s *stubKicker) Kick(id participant.ID) bool {
	if s.kicked == nil {
		s.kicked = make(map[participant.ID]bool)
	}
	s.kicked[id] = true
	return s.result
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	rg := r.Group("/admin")
	h.RegisterRoutes(rg, nil, nil)
	return r
}

func TestListRoomsReturnsSnapshot(t *testing.T) {
	rooms := roommgr.NewManager()
	roomID, _ := rooms.CreateRoom(participant.NewID())
	h := NewHandler(rooms, &stubKicker{result: true})

	r := newTestRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/admin/rooms", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(roomID))
}

func TestKickParticipantNotFoundRoom(t *testing.T) {
	rooms := roommgr.NewManager()
	h := NewHandler(rooms, &stubKicker{result: true})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/admin/rooms/"+roommgr.NewID().String()+"/kick/"+participant.NewID().String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKickParticipantSuccess(t *testing.T) {
	rooms := roommgr.NewManager()
	owner := participant.NewID()
	roomID, _ := rooms.CreateRoom(owner)
	kicker := &stubKicker{result: true}
	h := NewHandler(rooms, kicker)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/admin/rooms/"+string(roomID)+"/kick/"+string(owner), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, kicker.kicked[owner])
}

func TestKickParticipantUnknownParticipant(t *testing.T) {
	rooms := roommgr.NewManager()
	owner := participant.NewID()
	roomID, _ := rooms.CreateRoom(owner)
	h := NewHandler(rooms, &stubKicker{result: true})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/admin/rooms/"+string(roomID)+"/kick/"+participant.NewID().String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	cfg := &config.Config{GoEnv: "production"}
	r := gin.New()
	r.Use(AuthMiddleware(cfg, &stubValidator{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsMissingScope(t *testing.T) {
	cfg := &config.Config{GoEnv: "production"}
	r := gin.New()
	r.Use(AuthMiddleware(cfg, &stubValidator{claims: &auth.CustomClaims{Scope: "read:rooms"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthMiddlewareAllowsAdminScope(t *testing.T) {
	cfg := &config.Config{GoEnv: "production"}
	r := gin.New()
	r.Use(AuthMiddleware(cfg, &stubValidator{claims: &auth.CustomClaims{Scope: "read:rooms admin"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareSkipGuardedInProduction(t *testing.T) {
	cfg := &config.Config{GoEnv: "production", SkipAuth: true}
	r := gin.New()
	r.Use(AuthMiddleware(cfg, &stubValidator{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code, "SkipAuth must never take effect in production")
}

func TestAuthMiddlewareSkipAllowedOutsideProduction(t *testing.T) {
	cfg := &config.Config{GoEnv: "development", SkipAuth: true}
	r := gin.New()
	r.Use(AuthMiddleware(cfg, &stubValidator{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
