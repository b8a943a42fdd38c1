// Package admin implements the Moderator/Admin API: a small HTTP surface,
// additive to and entirely separate from the Offer/Answer/ICE signaling
// state machine, that lets an operator inspect active rooms and force a
// participant out of one. It is guarded by its own JWT bearer check
// against a configured JWKS, distinct from the sidecar's static-token
// check and from the signaling WebSocket's lack of an auth boundary.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/auth"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/config"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

// TokenValidator is the narrow capability this package needs from
// auth.Validator (or auth.MockValidator in development).
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}

// Kicker is the narrow capability the Signaling Protocol Handler exposes
// for forcibly removing a participant.
type Kicker interface {
	Kick(participantID participant.ID) bool
}

// RequiredScope is the OAuth scope a bearer token must carry to call any
// route this package registers.
const RequiredScope = "admin"

// Handler serves the moderator/admin HTTP routes.
type Handler struct {
	rooms  *roommgr.Manager
	kicker Kicker
}

// NewHandler constructs a Handler over the process's Room Manager and its
// Kicker capability (normally the same *signaling.Handler the /ws
// endpoint is served from).
func NewHandler(rooms *roommgr.Manager, kicker Kicker) *Handler {
	return &Handler{rooms: rooms, kicker: kicker}
}

// RegisterRoutes wires GET /rooms and POST /rooms/:roomId/kick/:participantId
// onto rg. rg is expected to already carry AuthMiddleware. roomsLimit and
// kickLimit are per-endpoint rate-limit middleware applied ahead of the
// handler; either may be nil, in which case the route runs unthrottled
// beyond whatever rg itself already applies.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, roomsLimit, kickLimit gin.HandlerFunc) {
	rg.GET("/rooms", passthroughIfNil(roomsLimit), h.listRooms)
	rg.POST("/rooms/:roomId/kick/:participantId", passthroughIfNil(kickLimit), h.kickParticipant)
}

func passthroughIfNil(mw gin.HandlerFunc) gin.HandlerFunc {
	if mw != nil {
		return mw
	}
	return func(c *gin.Context) {}
}

type roomSummary struct {
	RoomID           string `json:"room_id"`
	ParticipantCount int    `json:"participant_count"`
}

// listRooms handles GET /admin/rooms: a snapshot read through the Room
// Manager's own mutex, never a live view held across the response write.
func (h *Handler) listRooms(c *gin.Context) {
	snapshot := h.rooms.Snapshot()
	rooms := make([]roomSummary, 0, len(snapshot))
	for _, s := range snapshot {
		rooms = append(rooms, roomSummary{RoomID: string(s.RoomID), ParticipantCount: s.ParticipantCount})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// kickParticipant handles POST /admin/rooms/:roomId/kick/:participantId.
// 404 when the room or the participant within it is unknown; 204 on
// success. The force-close itself drives the same abnormal-close path a
// transport failure would, so dedup and presence notification apply
// identically to any other disconnect.
func (h *Handler) kickParticipant(c *gin.Context) {
	roomID, err := roommgr.ParseID(c.Param("roomId"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	pID, err := participant.ParseID(c.Param("participantId"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	members, ok := h.rooms.Participants(roomID)
	if !ok || !containsParticipant(members, pID) {
		c.Status(http.StatusNotFound)
		return
	}

	if !h.kicker.Kick(pID) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func containsParticipant(list []participant.ID, p participant.ID) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

// AuthMiddleware verifies the Authorization: Bearer <jwt> header against
// validator and requires RequiredScope in the token's scope claim. It is
// guarded so SKIP_AUTH can never take effect when cfg.GoEnv is
// "production", regardless of how the environment is misconfigured.
func AuthMiddleware(cfg *config.Config, validator TokenValidator) gin.HandlerFunc {
	skip := cfg.SkipAuth && cfg.GoEnv != "production"
	return func(c *gin.Context) {
		if skip {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(header, prefix)

		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if !hasScope(claims.Scope, RequiredScope) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

func hasScope(scopeClaim, required string) bool {
	for _, s := range strings.Fields(scopeClaim) {
		if s == required {
			return true
		}
	}
	return false
}
