package health

import (
	"context"
	"net/http"
	"time"

	"github.com/unrolled/render"
)

var renderer = render.New()

// LivenessHandler returns an HTTP handler for liveness probes. It reports OK
// whenever the process can serve HTTP.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = renderer.Text(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes. Degraded
// still counts as ready.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		switch OverallStatus(agg.CheckAll(ctx)) {
		case StatusHealthy:
			_ = renderer.Text(w, http.StatusOK, "OK")
		case StatusDegraded:
			_ = renderer.Text(w, http.StatusOK, "DEGRADED")
		default:
			_ = renderer.Text(w, http.StatusServiceUnavailable, "UNHEALTHY")
		}
	}
}

// HealthResponse is the JSON response for the detailed health endpoint.
type HealthResponse struct {
	Status    Status                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON response for a single health check.
type CheckResponse struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newCheckResponse(result Result) CheckResponse {
	resp := CheckResponse{
		Status:   result.Status,
		Message:  result.Message,
		Duration: result.Duration.String(),
		Details:  result.Details,
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	return resp
}

func httpStatus(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// DetailedHandler returns an HTTP handler with every check's result.
func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		results := agg.CheckAll(ctx)
		status := OverallStatus(results)

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC(),
			Checks:    make(map[string]CheckResponse, len(results)),
		}
		for name, result := range results {
			response.Checks[name] = newCheckResponse(result)
		}

		_ = renderer.JSON(w, httpStatus(status), response)
	}
}

// SingleCheckHandler returns an HTTP handler for one named checker.
func SingleCheckHandler(agg *Aggregator, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := agg.Check(ctx, name)
		if err != nil {
			_ = renderer.JSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		_ = renderer.JSON(w, httpStatus(result.Status), newCheckResponse(result))
	}
}
