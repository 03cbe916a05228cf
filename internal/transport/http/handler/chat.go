package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"prepai/internal/app"
	"prepai/internal/transport/http/response"
)

type ChatHandler struct {
	interviewService *app.InterviewService
}

type StartChatRequest struct {
	ResumeID uint `json:"resume_id" binding:"required,gt=0"`
	JDID     uint `json:"jd_id" binding:"required,gt=0"`
}

type QueryChatRequest struct {
	ChatID  uint   `json:"chat_id" binding:"required,gt=0"`
	Message string `json:"message" binding:"required"`
}

func NewChatHandler(interviewService *app.InterviewService) *ChatHandler {
	return &ChatHandler{interviewService: interviewService}
}

func (h *ChatHandler) Start(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "resume ID and JD ID are required")
		return
	}

	result, err := h.interviewService.Start(c.Request.Context(), userID, req.ResumeID, req.JDID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "resume or job description not found")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start interview failed")
		}
		return
	}

	response.Created(c, gin.H{
		"chat_id":       result.ChatID,
		"first_message": result.FirstMessage,
	})
}

func (h *ChatHandler) Query(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	reply, err := h.interviewService.SubmitAnswer(c.Request.Context(), userID, req.ChatID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "chat not found")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "interview turn failed")
		}
		return
	}

	response.OK(c, gin.H{"response": reply})
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	summaries, err := h.interviewService.ListHistory(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list history failed")
		return
	}
	response.OK(c, summaries)
}

func (h *ChatHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	chatID, err := parseUintParam(c, "id")
	if err != nil || chatID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	detail, err := h.interviewService.GetChat(c.Request.Context(), userID, chatID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "chat not found")
		case errors.Is(err, app.ErrNotOwner):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "not authorized")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch chat failed")
		}
		return
	}

	response.OK(c, detail)
}
