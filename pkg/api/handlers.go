package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Natifishman/MessageU/pkg/protocol"
	"github.com/Natifishman/MessageU/pkg/storage"
)

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var messageKinds = map[string]uint8{
	"key_request": protocol.MsgKeyRequest,
	"key_send":    protocol.MsgKeySend,
	"text":        protocol.MsgText,
	"file":        protocol.MsgFile,
}

func identString(id protocol.Ident) string {
	return uuid.UUID(id).String()
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := gin.H{
		"status":     "ok",
		"registered": s.client.Registered(),
	}
	if s.client.Registered() {
		resp["name"] = s.client.SelfName()
		resp["ident"] = identString(s.client.SelfIdent())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Register(req.Name); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Message: s.client.LastError()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":  s.client.SelfName(),
		"ident": identString(s.client.SelfIdent()),
	})
}

func (s *Server) handleUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.FetchUsers(); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Message: s.client.LastError()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": s.client.UsersSorted()})
}

func (s *Server) handleFetchKey(c *gin.Context) {
	name := c.Param("name")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.FetchPublicKey(name); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Message: s.client.LastError()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req struct {
		To   string `json:"to" binding:"required"`
		Type string `json:"type" binding:"required"`
		Data string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	kind, ok := messageKinds[req.Type]
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown message type",
			Message: "type must be one of key_request, key_send, text, file",
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.SendMessage(req.To, kind, req.Data); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Message: s.client.LastError()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"to": req.To, "type": req.Type})
}

func (s *Server) handlePending(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.client.FetchPending()
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Message: s.client.LastError()})
		return
	}

	type pendingMessage struct {
		From string `json:"from"`
		Body string `json:"body"`
	}
	out := make([]pendingMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, pendingMessage{From: m.From, Body: m.Body})
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": out,
		"warnings": s.client.LastError(),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	name := c.Param("name")

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive number"})
			return
		}
		limit = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.client.History(name, limit)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	type historyMessage struct {
		Peer      string `json:"peer"`
		Type      string `json:"type"`
		Body      string `json:"body"`
		Timestamp int64  `json:"timestamp"`
		Outgoing  bool   `json:"outgoing"`
	}
	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{
			Peer:      m.PeerName,
			Type:      typeName(m.Type),
			Body:      string(m.Body),
			Timestamp: m.Timestamp,
			Outgoing:  m.Direction == storage.DirectionOutgoing,
		})
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "messages": out})
}

func typeName(t uint8) string {
	for name, kind := range messageKinds {
		if kind == t {
			return name
		}
	}
	return strconv.Itoa(int(t))
}
