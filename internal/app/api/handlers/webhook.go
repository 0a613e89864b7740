package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/offertory/internal/app/service/webhook"
	"github.com/fatflowers/offertory/pkg/response"
	"github.com/fatflowers/offertory/pkg/types"
)

// MaxWebhookBody bounds webhook payloads read into memory.
const MaxWebhookBody = 1 << 20

type webhookAck struct {
	Received bool `json:"received"`
}

// ApiWebhook receives one provider delivery. A processed or duplicate
// delivery is acknowledged with 200. A bad signature is 400 and leaves no
// trace. Any processing failure is a 5xx so the provider retries.
//
// @Summary      Provider webhook
// @Description  Receives payment provider webhooks. Stripe deliveries are verified with the Stripe-Signature header, Paystack deliveries with x-paystack-signature.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body object true "Raw provider event"
// @Success      200  {object}  handlers.webhookAck
// @Failure      400  {object}  handlers.RespError
// @Failure      500  {object}  handlers.RespError
// @Router       /api/v1/webhooks/stripe [post]
// @Router       /api/v1/webhooks/paystack [post]
// @Router       /api/v1/webhooks/platform/stripe [post]
// @Router       /api/v1/webhooks/platform/paystack [post]
func ApiWebhook(svc *webhook.Service, provider types.PaymentProvider, scope types.GatewayScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		_, err = svc.Handle(c.Request.Context(), &webhook.Request{
			Provider: provider,
			Scope:    scope,
			Payload:  payload,
			Header:   c.Request.Header,
		})
		if err != nil {
			status, code := response.Classify(err)
			if status != http.StatusBadRequest {
				// anything but a rejected delivery must be retried
				status, code = http.StatusInternalServerError, response.APIResponseCodeError
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(status, response.ErrorT(code, &response.ErrorDetail{Error: err.Error()}))
			return
		}
		c.JSON(http.StatusOK, webhookAck{Received: true})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc *webhook.Service) {
	r.POST("/stripe", ApiWebhook(svc, types.PaymentProviderStripe, types.GatewayScopeGiving))
	r.POST("/paystack", ApiWebhook(svc, types.PaymentProviderPaystack, types.GatewayScopeGiving))
	r.POST("/platform/stripe", ApiWebhook(svc, types.PaymentProviderStripe, types.GatewayScopePlatform))
	r.POST("/platform/paystack", ApiWebhook(svc, types.PaymentProviderPaystack, types.GatewayScopePlatform))
}
