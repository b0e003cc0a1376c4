package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/atelierhq/backstage/internal/entity"
	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/grid"
	"github.com/atelierhq/backstage/internal/manager"
	"github.com/atelierhq/backstage/internal/media"
	"github.com/atelierhq/backstage/internal/schema"
)

// maxUploadBytes caps a single media upload.
const maxUploadBytes = 25 << 20

// AdminHandler serves the console API: table metadata, row CRUD and the
// media library. Every route behind it requires an admin session.
type AdminHandler struct {
	manager *manager.Manager
	store   *entity.Store
	media   *media.Store
	log     zerolog.Logger
}

func NewAdminHandler(mgr *manager.Manager, store *entity.Store, mediaStore *media.Store, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		manager: mgr,
		store:   store,
		media:   mediaStore,
		log:     log.With().Str("component", "api.admin").Logger(),
	}
}

// =============================================================================
// TABLE METADATA
// =============================================================================

// ListTables returns the tab strip: every managed table with its label
// and load state.
// GET /admin/secret/tables
func (h *AdminHandler) ListTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": h.manager.Stats()})
}

// GetTableSchema returns the column specs for one table.
// GET /admin/secret/tables/:table/schema
func (h *AdminHandler) GetTableSchema(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, schema.Get(table))
}

// =============================================================================
// ROWS
// =============================================================================

// ListRows returns rows with optional sorting, paging and search.
// GET /admin/secret/tables/:table/rows
func (h *AdminHandler) ListRows(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}

	opts := entity.ListOptions{
		SortField: c.Query("sort"),
		Ascending: c.Query("order") == "asc",
		Search:    c.Query("search"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	rows, err := h.store.List(c.Request.Context(), table, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

// CreateRow inserts a row through the grid's add-row flow: schema defaults
// fill in whatever the client leaves out, required columns are validated,
// and the server representation comes back authoritative.
// POST /admin/secret/tables/:table/rows
func (h *AdminHandler) CreateRow(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	var partial entity.Row
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid JSON body"})
		return
	}

	g, err := grid.New(table, grid.Callbacks{
		OnCreate: func(defaulted entity.Row) (entity.Row, error) {
			return h.manager.Create(c.Request.Context(), table, defaulted)
		},
	}, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	row, err := g.AddRow(partial)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// UpdateRow applies a partial update to one row.
// PATCH /admin/secret/tables/:table/rows/:id
func (h *AdminHandler) UpdateRow(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	var patch entity.Row
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid JSON body"})
		return
	}

	row, err := h.manager.Update(c.Request.Context(), table, c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// DeleteRow removes one row.
// DELETE /admin/secret/tables/:table/rows/:id
func (h *AdminHandler) DeleteRow(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	if err := h.manager.Delete(c.Request.Context(), table, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// BulkDeleteRows removes a set of rows, reporting per-id failures
// without aborting the batch.
// POST /admin/secret/tables/:table/rows/bulk-delete
func (h *AdminHandler) BulkDeleteRows(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "ids are required"})
		return
	}

	deleted := 0
	failed := map[string]string{}
	for _, id := range req.IDs {
		if err := h.manager.Delete(c.Request.Context(), table, id); err != nil {
			failed[id] = err.Error()
			continue
		}
		deleted++
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"deleted": deleted, "failed": failed})
}

// RefreshTable forces a re-fetch and returns the fresh snapshot.
// POST /admin/secret/tables/:table/refresh
func (h *AdminHandler) RefreshTable(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	if err := h.manager.Refresh(c.Request.Context(), table); err != nil {
		h.fail(c, err)
		return
	}
	snap, err := h.manager.Snapshot(table)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": snap.State, "rows": snap.Rows, "count": len(snap.Rows)})
}

// =============================================================================
// GRID VIEW
// =============================================================================

// GridView renders a table the way the editor presents it: visible columns
// with their editor metadata, rows formatted for read mode, search and sort
// applied over the managed snapshot.
// GET /admin/secret/tables/:table/grid
func (h *AdminHandler) GridView(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	g, err := grid.New(table, grid.Callbacks{}, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.loadRows(c.Request.Context(), table)
	if err != nil {
		h.fail(c, err)
		return
	}
	g.SetRows(rows)

	if col := c.Query("sort"); col != "" {
		g.ToggleSort(col)
		if c.Query("order") == "desc" {
			g.ToggleSort(col)
		}
	}
	g.SetSearch(c.Query("search"))
	for _, key := range c.QueryArray("hide") {
		g.ToggleColumn(key)
	}

	cols := g.VisibleColumns()
	columns := make([]gin.H, 0, len(cols))
	for _, col := range cols {
		columns = append(columns, gin.H{
			"key":    col.Key,
			"label":  col.Label,
			"editor": grid.EditorKind(col),
			"commit": grid.CommitChord(col.Type),
			"width":  col.Width,
		})
	}

	visible := g.VisibleRows()
	out := make([]gin.H, 0, len(visible))
	for _, row := range visible {
		cells := make(map[string]string, len(cols))
		for _, col := range cols {
			cells[col.Key] = grid.FormatCell(col, row[col.Key])
		}
		out = append(out, gin.H{"id": row.ID(), "cells": cells})
	}
	c.JSON(http.StatusOK, gin.H{"columns": columns, "rows": out, "count": len(out)})
}

type updateCellRequest struct {
	Value any `json:"value"`
}

// UpdateCell commits a single-cell edit: the edit opens on the target cell,
// read-only columns are rejected before any write, and the patch goes
// through the manager.
// PATCH /admin/secret/tables/:table/rows/:id/cells/:column
func (h *AdminHandler) UpdateCell(c *gin.Context) {
	table, ok := h.parseTable(c)
	if !ok {
		return
	}
	var req updateCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid JSON body"})
		return
	}

	var updated entity.Row
	g, err := grid.New(table, grid.Callbacks{
		OnUpdate: func(id string, patch entity.Row) error {
			row, err := h.manager.Update(c.Request.Context(), table, id, patch)
			if err != nil {
				return err
			}
			updated = row
			return nil
		},
	}, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.loadRows(c.Request.Context(), table)
	if err != nil {
		h.fail(c, err)
		return
	}
	g.SetRows(rows)

	if err := g.StartEdit(c.Param("id"), c.Param("column")); err != nil {
		h.fail(c, err)
		return
	}
	if err := g.CommitEdit(req.Value); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// =============================================================================
// MEDIA LIBRARY
// =============================================================================

// ListMedia returns the media library rows, newest first.
// GET /admin/secret/media
func (h *AdminHandler) ListMedia(c *gin.Context) {
	rows, err := h.loadRows(c.Request.Context(), schema.TableMediaAssets)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": rows, "count": len(rows)})
}

// UploadMedia accepts a multipart file and records it as an asset.
// POST /admin/secret/media/upload
func (h *AdminHandler) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	row, err := h.media.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// MediaDownloadURL returns a time-limited link to an asset.
// GET /admin/secret/media/:id/url
func (h *AdminHandler) MediaDownloadURL(c *gin.Context) {
	url, err := h.media.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DeleteMedia removes an asset row and its stored object.
// DELETE /admin/secret/media/:id
func (h *AdminHandler) DeleteMedia(c *gin.Context) {
	if err := h.media.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// loadRows resolves a table's rows: managed tables read through the manager
// cache, loading on first touch; the rest hit the store directly.
func (h *AdminHandler) loadRows(ctx context.Context, table schema.Table) ([]entity.Row, error) {
	snap, err := h.manager.Snapshot(table)
	if err != nil {
		return h.store.List(ctx, table, entity.ListOptions{})
	}
	if snap.State != manager.StateLoaded {
		if err := h.manager.Load(ctx, table); err != nil {
			return nil, err
		}
		if snap, err = h.manager.Snapshot(table); err != nil {
			return nil, err
		}
	}
	return snap.Rows, nil
}

func (h *AdminHandler) parseTable(c *gin.Context) (schema.Table, bool) {
	table, err := schema.ParseTable(c.Param("table"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": err.Error()})
		return "", false
	}
	return table, true
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	status, body := apperrors.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, body)
}
