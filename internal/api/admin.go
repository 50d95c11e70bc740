package api

import (
	"net/http"
	"strconv"

	"restocrm/internal/models"

	"github.com/gin-gonic/gin"
)

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.DefaultQuery(name, "false"))
	return err == nil && v
}

func (s *HTTPServer) listRestaurants(c *gin.Context) {
	list, err := s.svc.Restaurants.List(c.Request.Context(), queryBool(c, "include_inactive"))
	if err != nil {
		abortWithErr(c, err)
		return
	}
	if list == nil {
		list = []models.Restaurant{}
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (s *HTTPServer) createRestaurant(c *gin.Context) {
	var in models.NewRestaurant
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.svc.Restaurants.Create(c.Request.Context(), in)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	s.logger.Info().Str("restaurant_id", out.ID).Str("api_client", c.GetString(ctxAPIClient)).Msg("restaurant provisioned")
	c.JSON(http.StatusCreated, out)
}

func (s *HTTPServer) getRestaurant(c *gin.Context) {
	out, err := s.svc.Restaurants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) updateRestaurant(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	out, err := s.svc.Restaurants.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// deleteRestaurant deactivates by default; ?hard=true removes it.
func (s *HTTPServer) deleteRestaurant(c *gin.Context) {
	if err := s.svc.Restaurants.Delete(c.Request.Context(), c.Param("id"), queryBool(c, "hard")); err != nil {
		abortWithErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
