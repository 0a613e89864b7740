package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/offertory/internal/app/service/statistics"
	"github.com/fatflowers/offertory/pkg/response"
)

// @Summary      Giving statistics
// @Description  Donation counts and totals per day and currency for a date range, plus recurring gift counts. Filters accept fund_id, campaign_id, provider and currency.
// @Tags         Statistics
// @Accept       json
// @Produce      json
// @Param        church_id path string true "Church ID"
// @Param        request body statistics.Request true "Range, filters and data items"
// @Success      200  {object}  handlers.RespGivingStatistics
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Router       /api/v1/churches/{church_id}/statistics [post]
func ApiGivingStatistics(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.ChurchID = c.Param("church_id")
		res, err := svc.GetGivingStatistic(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterStatisticsRoutes(r gin.IRouter, svc *statistics.Service) {
	r.POST("/churches/:church_id/statistics", ApiGivingStatistics(svc))
}
