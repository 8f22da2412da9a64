package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studio-pro/internal/service"
)

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		badRequest(c, "userId must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleListCards(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}
	cards, err := s.cards.ListCards(c.Request.Context(), user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cards})
}

func (s *Server) handleAddCard(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}
	var req service.AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.UserID = user

	card, err := s.cards.AddCard(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Payment method added successfully",
		"data":    card,
	})
}

func (s *Server) handleSetDefaultCard(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	card, err := s.cards.SetDefaultCard(c.Request.Context(), user, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Default payment method updated",
		"data":    card,
	})
}

func (s *Server) handleRemoveCard(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.cards.RemoveCard(c.Request.Context(), user, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment method removed successfully"})
}
