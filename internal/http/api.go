package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-manager/internal/ratelimit"
	"task-manager/internal/service"
)

// RateLimits holds the limiters applied at the gateway. Nil limiters are skipped.
type RateLimits struct {
	Default  *ratelimit.Limiter
	Register *ratelimit.Limiter
	Login    *ratelimit.Limiter
}

// Handler wires HTTP routes to domain services. It holds no business logic.
type Handler struct {
	users   service.UserService
	tasks   service.TaskService
	exports service.ExportService
	limits  RateLimits
	logger  *logrus.Logger
}

// NewRouter returns a bare engine that honours forwarded client addresses
// only from trustedProxies. With none, the client is the socket peer.
func NewRouter(trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}
	return router, nil
}

func NewHandler(users service.UserService, tasks service.TaskService, exports service.ExportService, limits RateLimits, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:   users,
		tasks:   tasks,
		exports: exports,
		limits:  limits,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware(), recoveryMiddleware(h.logger), accessLogMiddleware(h.logger), corsMiddleware())
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Not Found")
	})

	api := router.Group("/api")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/register", h.rateLimit(h.limits.Default, h.limits.Register), h.register)
	api.POST("/login", h.rateLimit(h.limits.Default, h.limits.Login), h.login)

	protected := api.Group("", h.rateLimit(h.limits.Default), h.requireAuth())
	{
		protected.GET("/me", h.me)
		protected.PUT("/me/password", h.updatePassword)

		protected.POST("/tasks", h.createTask)
		protected.GET("/tasks", h.listTasks)
		protected.GET("/tasks/:id", h.getTask)
		protected.PUT("/tasks/:id", h.replaceTask)
		protected.PATCH("/tasks/:id", h.updateTask)
		protected.DELETE("/tasks/:id", h.deleteTask)

		protected.POST("/exports", h.createExport)
		protected.GET("/exports", h.listExports)
		protected.DELETE("/exports", h.purgeExports)
	}
}
