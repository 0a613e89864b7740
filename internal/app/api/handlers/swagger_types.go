package handlers

import (
	"github.com/fatflowers/offertory/internal/app/service/checkout"
	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/app/service/ledger"
	"github.com/fatflowers/offertory/internal/app/service/statistics"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/response"
	"github.com/fatflowers/offertory/pkg/types"
)

// Envelope types below exist for the API docs only; handlers build the
// generic response.APIResponse directly.

type RespError struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    response.ErrorDetail     `json:"data"`
}

type RespHealth struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    map[string]string        `json:"data"`
}

type RespCheckout struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.Result          `json:"data"`
}

type RespPlanCheckout struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    gateway.CheckoutSession  `json:"data"`
}

type RespDonation struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Donation          `json:"data"`
}

type RespRefund struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Refund            `json:"data"`
}

type RespGivingStatistics struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}

type RespEntitlements struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    subscription.Entitlements `json:"data"`
}

type RespTenantSubscription struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    models.TenantSubscription `json:"data"`
}

type RespWebhookEvents struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.ListResponse      `json:"data"`
}

type RespJobSummaries struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.JobSummary       `json:"data"`
}
