package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/offertory/internal/app/service/refund"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/pkg/response"
)

// @Summary      Create refund
// @Description  Refunds all or part of a completed donation. The amount defaults to what has not been refunded yet.
// @Tags         Refunds
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID header string false "Staff member issuing the refund"
// @Param        request body refund.CreateRequest true "Refund request"
// @Success      200  {object}  handlers.RespRefund
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Failure      502  {object}  handlers.RespError
// @Router       /api/v1/refunds [post]
func ApiCreateRefund(svc *refund.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refund.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.ActorID = actorID(c)
		r, err := svc.CreateRefund(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(r))
	}
}

// @Summary      Get church entitlements
// @Description  Resolves the church's plan and the features it unlocks. Unknown feature keys are denied.
// @Tags         Subscription
// @Produce      json
// @Param        church_id path string true "Church ID"
// @Success      200  {object}  handlers.RespEntitlements
// @Failure      404  {object}  handlers.RespError
// @Router       /api/v1/churches/{church_id}/entitlements [get]
func ApiGetEntitlements(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ents, err := svc.ResolveTenantEntitlements(c.Request.Context(), c.Param("church_id"))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(ents))
	}
}

// @Summary      Start plan checkout
// @Description  Starts a platform billing checkout for a subscription plan. The subscription is recorded when the provider confirms payment.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        church_id path string true "Church ID"
// @Param        request body subscription.PlanCheckoutRequest true "Plan checkout request"
// @Success      200  {object}  handlers.RespPlanCheckout
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Failure      502  {object}  handlers.RespError
// @Router       /api/v1/churches/{church_id}/plan_checkout [post]
func ApiCreatePlanCheckout(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.PlanCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.ChurchID = c.Param("church_id")
		sess, err := svc.CreatePlanCheckout(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sess))
	}
}

func RegisterBillingRoutes(r gin.IRouter, refunds *refund.Service, subs *subscription.Service) {
	r.POST("/refunds", ApiCreateRefund(refunds))
	r.GET("/churches/:church_id/entitlements", ApiGetEntitlements(subs))
	r.POST("/churches/:church_id/plan_checkout", ApiCreatePlanCheckout(subs))
}
