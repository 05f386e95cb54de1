package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Tour Guide API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the location-based tour guide app.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/v1/auth/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/v1/auth/login")
	postLogin.SetSummary("Login")
	postLogin.SetDescription("Authenticate with email and password. Returns an access/refresh token pair.")
	postLogin.AddReqStructure(LoginRequest{})
	postLogin.AddRespStructure(TokenResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/v1/auth/refresh
	postRefresh, _ := r.NewOperationContext(http.MethodPost, "/api/v1/auth/refresh")
	postRefresh.SetSummary("Refresh tokens")
	postRefresh.SetDescription("Exchange a refresh token for a new token pair.")
	postRefresh.AddReqStructure(RefreshRequest{})
	postRefresh.AddRespStructure(TokenResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRefresh.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postRefresh)

	// GET /api/v1/tours
	listTours, _ := r.NewOperationContext(http.MethodGet, "/api/v1/tours")
	listTours.SetSummary("List tours")
	listTours.SetDescription("Returns all published tours.")
	listTours.AddRespStructure([]TourSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listTours)

	// GET /api/v1/tours/{tourId}
	getTour, _ := r.NewOperationContext(http.MethodGet, "/api/v1/tours/{tourId}")
	getTour.SetSummary("Tour detail")
	getTour.SetDescription("Returns one tour with its ordered route spots.")
	getTour.AddRespStructure(TourDetailResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getTour.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getTour)

	// POST /api/v1/tours/{tourId}/run
	postRun, _ := r.NewOperationContext(http.MethodPost, "/api/v1/tours/{tourId}/run")
	postRun.SetSummary("Start or continue a run")
	postRun.SetDescription("Starts a new run (mode START) or resumes the in-progress one (mode CONTINUE). Requires Bearer token.")
	postRun.AddReqStructure(RunRequest{})
	postRun.AddRespStructure(RunResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRun.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postRun.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postRun)

	// GET /api/v1/tour-runs/{runId}/next-spot
	getNextSpot, _ := r.NewOperationContext(http.MethodGet, "/api/v1/tour-runs/{runId}/next-spot")
	getNextSpot.SetSummary("Next spot")
	getNextSpot.SetDescription("Returns the next unvisited route spot for the run, unlocking it; completes the run when none remain. Requires Bearer token.")
	getNextSpot.AddRespStructure(NextSpotResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getNextSpot.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getNextSpot.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getNextSpot)

	// GET /api/v1/content-steps/{stepId}/mission
	getMission, _ := r.NewOperationContext(http.MethodGet, "/api/v1/content-steps/{stepId}/mission")
	getMission.SetSummary("Mission step detail")
	getMission.SetDescription("Returns the mission attached to a content step; with a runId query the caller's latest attempt is reflected.")
	getMission.AddRespStructure(MissionStepDetailResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getMission)

	// POST /api/v1/tour-runs/{runId}/missions/{stepId}/submit
	postSubmit, _ := r.NewOperationContext(http.MethodPost, "/api/v1/tour-runs/{runId}/missions/{stepId}/submit")
	postSubmit.SetSummary("Submit mission")
	postSubmit.SetDescription("Submits an answer for the step's mission, records the attempt, and returns where to navigate next. Requires Bearer token.")
	postSubmit.AddReqStructure(MissionSubmitRequest{})
	postSubmit.AddRespStructure(MissionSubmitResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSubmit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSubmit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postSubmit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postSubmit)

	// GET /api/v1/tour-runs/{runId}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/v1/tour-runs/{runId}/events")
	getEvents.SetSummary("SSE progress stream")
	getEvents.SetDescription("Server-Sent Events stream of run progress. Pass the access token as a query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(spec)
	}
}
