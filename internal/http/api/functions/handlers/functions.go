package handlers

import (
	"net/http"

	"github.com/avnova/sqyros/internal/assist"
	"github.com/avnova/sqyros/internal/guide"
	"github.com/gin-gonic/gin"
)

// FunctionsHandler serves the paid assistant endpoints.
type FunctionsHandler struct {
	svc *assist.Service
}

// NewFunctionsHandler constructs a FunctionsHandler.
func NewFunctionsHandler(svc *assist.Service) *FunctionsHandler {
	return &FunctionsHandler{svc: svc}
}

// GenerateGuide handles POST /functions/v1/generate-guide.
func (h *FunctionsHandler) GenerateGuide(c *gin.Context) {
	var body guide.Request
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	res, errGen := h.svc.GenerateGuide(c.Request.Context(), caller(c), body)
	if errGen != nil {
		writeError(c, errGen)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"guide":   res.Guide,
		"meta":    res.Meta,
	})
}

// Chat handles POST /functions/v1/chat.
func (h *FunctionsHandler) Chat(c *gin.Context) {
	var body assist.ChatRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	res, errChat := h.svc.Chat(c.Request.Context(), caller(c), body)
	if errChat != nil {
		writeError(c, errChat)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"response": res.Response,
		"meta":     res.Meta,
	})
}

// ClaudeRouter handles POST /functions/v1/claude-router.
func (h *FunctionsHandler) ClaudeRouter(c *gin.Context) {
	var body assist.RouteRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	res, errRoute := h.svc.Route(c.Request.Context(), caller(c), body)
	if errRoute != nil {
		writeError(c, errRoute)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"content":   res.Content,
		"model":     res.Model,
		"taskType":  res.TaskType,
		"reasoning": res.Reasoning,
		"usage":     res.Usage,
	})
}

// Usage handles GET /functions/v1/usage.
func (h *FunctionsHandler) Usage(c *gin.Context) {
	report, errUsage := h.svc.UsageSummary(c.Request.Context(), caller(c))
	if errUsage != nil {
		writeError(c, errUsage)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"tier":      report.Tier,
		"month":     report.Month,
		"allowance": report.Allowance,
	})
}
