// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a read-only HTTP query surface over a resolved
// module tree.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/crategraph/crategraph/services/modgraph/ir"
	"github.com/crategraph/crategraph/services/modgraph/tree"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ResolveResponse answers a canonical path lookup.
type ResolveResponse struct {
	Path  string    `json:"path"`
	ID    ir.NodeID `json:"id"`
	Index string    `json:"index"`
}

// ModuleResponse returns one module with its adjacent edges.
type ModuleResponse struct {
	Module   *ir.Module `json:"module"`
	Outgoing []ir.Edge  `json:"outgoing,omitempty"`
	Incoming []ir.Edge  `json:"incoming,omitempty"`
}

// PublicPathResponse answers a shortest-public-path query.
type PublicPathResponse struct {
	ID   ir.NodeID `json:"id"`
	Path string    `json:"path"`
}

// Handlers serves queries against one frozen tree.
//
// Thread Safety: safe for concurrent use; the tree is read-only.
type Handlers struct {
	tree   *tree.ModuleTree
	logger *slog.Logger
}

// NewHandlers wires handlers over a frozen tree.
func NewHandlers(t *tree.ModuleTree, logger *slog.Logger) (*Handlers, error) {
	if t == nil || !t.Frozen() {
		return nil, ErrTreeNotFrozen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{tree: t, logger: logger}, nil
}

// ErrTreeNotFrozen is returned when the server is given a tree that has
// not completed its build pipeline.
var ErrTreeNotFrozen = errors.New("server requires a frozen tree")

// NewRouter builds the gin engine with the standard middleware stack.
func NewRouter(h *Handlers, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1/modgraph")
	v1.GET("/health", h.HandleHealth)
	v1.GET("/stats", h.HandleStats)
	v1.GET("/resolve", h.HandleResolve)
	v1.GET("/modules/:id", h.HandleModule)
	v1.GET("/public-path", h.HandlePublicPath)
	return router
}

// HandleHealth reports liveness and basic tree identity.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"crate":  h.tree.CrateName(),
	})
}

// HandleStats returns summary counts for the served tree.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.tree.Stats())
}

// HandleResolve looks up a canonical path in all three indices.
//
// Query Parameters:
//   - path: canonical path in source notation, e.g. "crate::utils::helper".
//
// Responses:
//
//	200 OK: ResolveResponse with index = definition | declaration | reexport
//	400 Bad Request: missing path parameter
//	404 Not Found: no index holds the path
func (h *Handlers) HandleResolve(c *gin.Context) {
	raw := c.Query("path")
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	segments := ir.SplitPath(raw)

	if id, ok := h.tree.ResolvePath(segments); ok {
		c.JSON(http.StatusOK, ResolveResponse{Path: raw, ID: id, Index: "definition"})
		return
	}
	if id, ok := h.tree.ResolveDecl(segments); ok {
		c.JSON(http.StatusOK, ResolveResponse{Path: raw, ID: id, Index: "declaration"})
		return
	}
	if id, ok := h.tree.ResolveReExport(segments); ok {
		c.JSON(http.StatusOK, ResolveResponse{Path: raw, ID: id, Index: "reexport"})
		return
	}
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error: "path not found in any index",
		Code:  "PATH_NOT_FOUND",
	})
}

// HandleModule returns one module and its adjacent edges.
func (h *Handlers) HandleModule(c *gin.Context) {
	id := ir.NodeID(c.Param("id"))
	m, ok := h.tree.Module(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "module not found",
			Code:  "MODULE_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, ModuleResponse{
		Module:   m,
		Outgoing: h.tree.EdgesFrom(id),
		Incoming: h.tree.EdgesTo(id),
	})
}

// HandlePublicPath answers the shortest public path for a node.
//
// Query Parameters:
//   - id: node ID.
//
// Responses:
//
//	200 OK: PublicPathResponse
//	404 Not Found: node has no publicly visible path
func (h *Handlers) HandlePublicPath(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "id parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	path, err := h.tree.ShortestPublicPath(ir.NodeID(id))
	if err != nil {
		h.logger.Debug("public path lookup failed",
			slog.String("id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no public path for node",
			Code:  "NOT_PUBLICLY_ACCESSIBLE",
		})
		return
	}
	c.JSON(http.StatusOK, PublicPathResponse{ID: ir.NodeID(id), Path: ir.JoinPath(path)})
}
