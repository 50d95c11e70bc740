package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restocrm/internal/domain"
	"restocrm/internal/legacy"
	"restocrm/internal/models"
	"restocrm/internal/pagination"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type listResponse[T any] struct {
	Items      []T              `json:"items"`
	Pagination pagination.State `json:"pagination"`
}

func pageBody[T any](p pagination.Page[T]) listResponse[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Pagination: p.State}
}

// pageRequest reads page, size, q and mode from the query string.
func pageRequest(c *gin.Context) (domain.PageRequest, bool) {
	req := domain.PageRequest{
		Query: c.Query("q"),
		Mode:  strings.ToLower(strings.TrimSpace(c.Query("mode"))),
	}
	for name, dst := range map[string]*int{"page": &req.Page, "size": &req.Size} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
			return req, false
		}
		*dst = n
	}
	return req, true
}

func bindPatch(c *gin.Context) (map[string]any, bool) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return patch, true
}

func (s *HTTPServer) handleSignIn(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "email and password are required")
		return
	}
	session, err := s.svc.Sessions.SignIn(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *HTTPServer) handleSignOut(c *gin.Context) {
	if err := s.svc.Sessions.SignOut(c.Request.Context(), sessionFrom(c)); err != nil {
		abortWithErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// clients

func (s *HTTPServer) listClients(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := s.svc.Clients.Page(c.Request.Context(), sessionFrom(c), scopeFrom(c), req)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, pageBody(page))
}

func (s *HTTPServer) createClient(c *gin.Context) {
	var in models.Client
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.svc.Clients.Create(c.Request.Context(), scopeFrom(c), in)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *HTTPServer) getClient(c *gin.Context) {
	out, err := s.svc.Clients.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) updateClient(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	out, err := s.svc.Clients.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), patch)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) deleteClient(c *gin.Context) {
	if err := s.svc.Clients.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")); err != nil {
		abortWithErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) recordInteraction(c *gin.Context) {
	var body struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "channel is required")
		return
	}
	out, err := s.svc.Clients.RecordInteraction(c.Request.Context(), scopeFrom(c), c.Param("id"), body.Channel)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) exportClients(c *gin.Context) {
	scope := scopeFrom(c)
	var buf bytes.Buffer
	if err := s.svc.Clients.ExportWorkbook(c.Request.Context(), scope, &buf); err != nil {
		abortWithErr(c, err)
		return
	}
	filename := fmt.Sprintf("clientes_%s_%s.xlsx", scope.Segment(), time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *HTTPServer) saveClientsExport(c *gin.Context) {
	path, err := s.svc.Clients.SaveWorkbook(c.Request.Context(), scopeFrom(c), s.svc.ExportDir)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

func (s *HTTPServer) syncClientsSheet(c *gin.Context) {
	if err := s.svc.Clients.SyncSheet(c.Request.Context(), scopeFrom(c)); err != nil {
		abortWithErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// reservations

func (s *HTTPServer) listReservations(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := s.svc.Reservations.Page(c.Request.Context(), sessionFrom(c), scopeFrom(c), req)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, pageBody(page))
}

func (s *HTTPServer) createReservation(c *gin.Context) {
	var in models.Reservation
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.svc.Reservations.Create(c.Request.Context(), scopeFrom(c), in)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *HTTPServer) getReservation(c *gin.Context) {
	out, err := s.svc.Reservations.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) updateReservation(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	out, err := s.svc.Reservations.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), patch)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type statusBody struct {
	Status string `json:"status" binding:"required"`
}

func (s *HTTPServer) setReservationStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "status is required")
		return
	}
	out, err := s.svc.Reservations.SetStatus(c.Request.Context(), scopeFrom(c), c.Param("id"), body.Status)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) deleteReservation(c *gin.Context) {
	if err := s.svc.Reservations.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")); err != nil {
		abortWithErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// orders

func (s *HTTPServer) listOrders(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := s.svc.Orders.Page(c.Request.Context(), sessionFrom(c), scopeFrom(c), req)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, pageBody(page))
}

func (s *HTTPServer) createOrder(c *gin.Context) {
	var in models.Order
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.svc.Orders.Create(c.Request.Context(), scopeFrom(c), in)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	out, err := s.svc.Orders.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) updateOrder(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	out, err := s.svc.Orders.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), patch)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) setOrderStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "status is required")
		return
	}
	out, err := s.svc.Orders.SetStatus(c.Request.Context(), scopeFrom(c), c.Param("id"), body.Status)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) deleteOrder(c *gin.Context) {
	if err := s.svc.Orders.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")); err != nil {
		abortWithErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) legacyReport(c *gin.Context) {
	ctx, scope := c.Request.Context(), scopeFrom(c)

	reports := make(map[string]legacy.Report, 3)
	var err error
	if reports[models.CollectionClients], err = s.svc.Clients.LegacyReport(ctx, scope); err != nil {
		abortWithErr(c, err)
		return
	}
	if reports[models.CollectionReservations], err = s.svc.Reservations.LegacyReport(ctx, scope); err != nil {
		abortWithErr(c, err)
		return
	}
	if reports[models.CollectionOrders], err = s.svc.Orders.LegacyReport(ctx, scope); err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}
