package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beamup-io/beamup/internal/auth"
	"github.com/beamup-io/beamup/internal/storage"
	"github.com/beamup-io/beamup/internal/uploader"
	"github.com/beamup-io/beamup/internal/videos"
	"github.com/beamup-io/beamup/pkg/types"
)

const sessionCookie = "beamup_session"

// Authentication middleware: accepts the session cookie set by the OAuth
// callback or a Bearer token carrying the same JWT
func authMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, types.APIResponse{
				Success: false,
				Error:   "Missing session",
			})
			c.Abort()
			return
		}

		account, err := authService.ValidateSession(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, types.APIResponse{
				Success: false,
				Error:   "Invalid session",
			})
			c.Abort()
			return
		}

		// Store account in context
		c.Set("account", account)
		c.Next()
	}
}

func currentAccount(c *gin.Context) *types.ConnectedAccount {
	account, _ := c.Get("account")
	return account.(*types.ConnectedAccount)
}

// OAuth handlers
func handleConnect(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := authService.BeginConnect(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   "Failed to start connect flow",
			})
			return
		}

		c.Redirect(http.StatusFound, url)
	}
}

func handleCallback(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := c.Query("state")
		code := c.Query("code")
		if state == "" || code == "" {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Missing state or code",
			})
			return
		}

		account, sessionToken, err := authService.CompleteConnect(c.Request.Context(), state, code)
		if err != nil {
			c.JSON(http.StatusUnauthorized, types.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.SetCookie(sessionCookie, sessionToken, 0, "/", "", false, true)
		c.JSON(http.StatusOK, types.APIResponse{
			Success: true,
			Message: "Account connected",
			Data:    account,
		})
	}
}

// Upload handlers
func handlePresign(videoService *videos.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.PresignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Invalid request format",
			})
			return
		}

		resp, err := videoService.Presign(c.Request.Context(), &req)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrPresignUnsupported) {
				status = http.StatusNotImplemented
			}
			c.JSON(status, types.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.APIResponse{
			Success: true,
			Data:    resp,
		})
	}
}

func handlePublish(videoService *videos.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.PublishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Invalid request format",
			})
			return
		}

		record, err := videoService.Publish(c.Request.Context(), currentAccount(c), &req)
		if err != nil {
			publishError(c, err)
			return
		}

		c.JSON(http.StatusCreated, types.APIResponse{
			Success: true,
			Message: "Video published",
			Data:    record,
		})
	}
}

// publishError maps upload failures onto HTTP statuses, reporting the last
// acknowledged offset for transfer failures so callers can decide whether to
// retry with a fresh session
func publishError(c *gin.Context, err error) {
	var transferErr *uploader.TransferError
	if errors.As(err, &transferErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"success":     false,
			"error":       err.Error(),
			"session_id":  transferErr.SessionID,
			"last_offset": transferErr.LastOffset,
		})
		return
	}

	var startErr *uploader.StartError
	var finishErr *uploader.FinishError
	var protocolErr *uploader.ProtocolError
	switch {
	case errors.As(err, &startErr), errors.As(err, &finishErr), errors.As(err, &protocolErr):
		c.JSON(http.StatusBadGateway, types.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, types.APIResponse{
			Success: false,
			Error:   "Object not found",
		})
	default:
		c.JSON(http.StatusInternalServerError, types.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
	}
}

// Listing handlers
func handleListRemote(videoService *videos.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := videoService.ListRemote(c.Request.Context(), currentAccount(c))
		if err != nil {
			c.JSON(http.StatusBadGateway, types.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.APIResponse{
			Success: true,
			Data:    list,
		})
	}
}

func handleListPublished(videoService *videos.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := videoService.ListPublished(c.Request.Context(), currentAccount(c).ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.APIResponse{
			Success: true,
			Data:    records,
		})
	}
}
