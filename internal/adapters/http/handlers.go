package http

import (
	"net/http"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/app/live"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/gin-gonic/gin"
)

type BroadcastHandler struct {
	broadcasts *app.Broadcasts
	requests   *app.Requests
	rooms      *app.Rooms
	chat       *app.Chat
}

func NewBroadcastHandler(b *app.Broadcasts, r *app.Requests, rooms *app.Rooms, chat *app.Chat) *BroadcastHandler {
	return &BroadcastHandler{broadcasts: b, requests: r, rooms: rooms, chat: chat}
}

type CreatedResponse struct {
	ID domain.BroadcastID `json:"id"`
}

type StatusResponse struct {
	Status domain.RequestStatus `json:"status"`
}

type LeaveResponse struct {
	Deleted  bool   `json:"deleted"`
	Redirect string `json:"redirect"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

func broadcastID(c *gin.Context) domain.BroadcastID { return domain.BroadcastID(c.Param("id")) }

func (h *BroadcastHandler) List(c *gin.Context) {
	list, err := h.broadcasts.ListActive(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BroadcastHandler) Create(c *gin.Context) {
	var in domain.BroadcastInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	id, err := h.broadcasts.Create(c.Request.Context(), currentSession(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (h *BroadcastHandler) Get(c *gin.Context) {
	b, err := h.broadcasts.Get(c.Request.Context(), broadcastID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BroadcastHandler) Edit(c *gin.Context) {
	var in domain.BroadcastInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	if err := h.broadcasts.Edit(c.Request.Context(), broadcastID(c), currentSession(c).UserID, in); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BroadcastHandler) Delete(c *gin.Context) {
	if err := h.broadcasts.Delete(c.Request.Context(), broadcastID(c), currentSession(c).UserID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BroadcastHandler) RequestJoin(c *gin.Context) {
	req, err := h.requests.RequestJoin(c.Request.Context(), broadcastID(c), currentSession(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *BroadcastHandler) MyRequestStatus(c *gin.Context) {
	st, err := h.requests.StatusFor(c.Request.Context(), broadcastID(c), currentSession(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: st})
}

func (h *BroadcastHandler) Accept(c *gin.Context) {
	rid := domain.RequestID(c.Param("rid"))
	if err := h.requests.Accept(c.Request.Context(), broadcastID(c), rid, currentSession(c).UserID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BroadcastHandler) Reject(c *gin.Context) {
	rid := domain.RequestID(c.Param("rid"))
	if err := h.requests.Reject(c.Request.Context(), broadcastID(c), rid, currentSession(c).UserID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BroadcastHandler) Pending(c *gin.Context) {
	reqs, err := h.requests.ListPendingForOwner(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// Leave removes the caller from the room. The client is always sent home,
// also when the owner's leave deleted the broadcast.
func (h *BroadcastHandler) Leave(c *gin.Context) {
	deleted, err := h.rooms.Leave(c.Request.Context(), broadcastID(c), currentSession(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, LeaveResponse{Deleted: deleted, Redirect: live.HomePath})
}

func (h *BroadcastHandler) Messages(c *gin.Context) {
	msgs, err := h.chat.List(c.Request.Context(), broadcastID(c), currentSession(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *BroadcastHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), broadcastID(c), currentSession(c), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
