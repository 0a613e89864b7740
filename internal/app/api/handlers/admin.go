package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/offertory/internal/app/service/billingjobs"
	"github.com/fatflowers/offertory/internal/app/service/ledger"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/pkg/response"
	"github.com/fatflowers/offertory/pkg/types"
)

// runAllJobs is the job name that runs every billing job in order.
const runAllJobs = "all"

// @Summary      List webhook events (Admin)
// @Description  Pages through the webhook idempotency ledger, newest first. Filters accept provider, scope, status, event_type, external_event_id and the timestamp columns.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ListRequest true "Filters and pagination"
// @Success      200  {object}  handlers.RespWebhookEvents
// @Failure      400  {object}  handlers.RespError
// @Router       /api/v1/admin/list_webhook_events [post]
func ApiListWebhookEvents(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		res, err := svc.List(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Run billing job (Admin)
// @Description  Runs one billing job now, or every job in order when job is "all". Jobs are safe to re-run.
// @Tags         Admin
// @Produce      json
// @Param        job path string true "Job name" Enums(quota-sweep, suspend-past-due, dunning, backfill-metadata, dispute-alerts, all)
// @Success      200  {object}  handlers.RespJobSummaries
// @Failure      400  {object}  handlers.RespError
// @Router       /api/v1/admin/jobs/{job} [post]
func ApiRunJob(svc *billingjobs.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job := c.Param("job")
		if job == runAllJobs {
			sums, err := svc.RunAll(c.Request.Context())
			if err != nil {
				response.AbortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, response.OKT(sums))
			return
		}
		sum, err := svc.Run(c.Request.Context(), types.JobName(job))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT([]*types.JobSummary{sum}))
	}
}

// @Summary      Assign plan (Admin)
// @Description  Starts a subscription on the given plan for a church, canceling the active one. Lifts a past-due suspension.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        church_id path string true "Church ID"
// @Param        X-Actor-ID header string false "Staff member assigning the plan"
// @Param        request body subscription.AssignPlanRequest true "Plan assignment"
// @Success      200  {object}  handlers.RespTenantSubscription
// @Failure      400  {object}  handlers.RespError
// @Failure      404  {object}  handlers.RespError
// @Router       /api/v1/admin/churches/{church_id}/plan [post]
func ApiAssignPlan(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.AssignPlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.ChurchID = c.Param("church_id")
		req.ActorID = actorID(c)
		sub, err := svc.AssignPlan(c.Request.Context(), &req)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func RegisterAdminRoutes(r gin.IRouter, events *ledger.Service, jobs *billingjobs.Service, subs *subscription.Service) {
	r.POST("/list_webhook_events", ApiListWebhookEvents(events))
	r.POST("/jobs/:job", ApiRunJob(jobs))
	r.POST("/churches/:church_id/plan", ApiAssignPlan(subs))
}
