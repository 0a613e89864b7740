package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/offertory/internal/app/service/checkout"
	"github.com/fatflowers/offertory/pkg/response"
)

// actorHeader names the staff member acting on an admin or back-office call.
// Authentication happens upstream; the header is trusted as set by the proxy.
const actorHeader = "X-Actor-ID"

func actorID(c *gin.Context) string {
	if v := c.GetHeader(actorHeader); v != "" {
		return v
	}
	return "admin"
}

// @Summary      Create donation checkout
// @Description  Creates a pending donation and a hosted checkout session with the chosen provider.
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        request body checkout.DonationRequest true "Donation checkout request"
// @Success      200  {object}  handlers.RespCheckout
// @Failure      400  {object}  handlers.RespError
// @Failure      403  {object}  handlers.RespError
// @Failure      502  {object}  handlers.RespError
// @Router       /api/v1/checkout/donations [post]
func ApiCreateDonationCheckout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.DonationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		res, err := svc.CreateDonationCheckout(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Create recurring donation checkout
// @Description  Creates a paused recurring gift and starts a subscription checkout. The gift becomes active once the provider confirms the first charge.
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        request body checkout.RecurringRequest true "Recurring checkout request"
// @Success      200  {object}  handlers.RespCheckout
// @Failure      400  {object}  handlers.RespError
// @Failure      403  {object}  handlers.RespError
// @Failure      502  {object}  handlers.RespError
// @Router       /api/v1/checkout/recurring [post]
func ApiCreateRecurringCheckout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.RecurringRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		res, err := svc.CreateRecurringCheckout(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Create ticket checkout
// @Description  Reserves seats with a pending ticket order and starts a checkout for them.
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        request body checkout.TicketRequest true "Ticket checkout request"
// @Success      200  {object}  handlers.RespCheckout
// @Failure      400  {object}  handlers.RespError
// @Failure      403  {object}  handlers.RespError
// @Failure      502  {object}  handlers.RespError
// @Router       /api/v1/checkout/tickets [post]
func ApiCreateTicketCheckout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.TicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		res, err := svc.CreateTicketCheckout(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Record manual donation
// @Description  Records an offline gift (cash, cheque, bank transfer) as completed.
// @Tags         Donations
// @Accept       json
// @Produce      json
// @Param        X-Actor-ID header string false "Staff member recording the gift"
// @Param        request body checkout.ManualDonationRequest true "Manual donation"
// @Success      200  {object}  handlers.RespDonation
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Router       /api/v1/donations/manual [post]
func ApiRecordManualDonation(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.ManualDonationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.ActorID = actorID(c)
		d, err := svc.RecordManualDonation(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(d))
	}
}

func RegisterCheckoutRoutes(r gin.IRouter, svc *checkout.Service) {
	r.POST("/checkout/donations", ApiCreateDonationCheckout(svc))
	r.POST("/checkout/recurring", ApiCreateRecurringCheckout(svc))
	r.POST("/checkout/tickets", ApiCreateTicketCheckout(svc))
	r.POST("/donations/manual", ApiRecordManualDonation(svc))
}
