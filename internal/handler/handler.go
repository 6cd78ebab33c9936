// Package handler provides the HTTP surface of the todo service: a
// REST handler and a WebSocket gesture session, both thin forwarders
// into the engine.
package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vkuznetsov/todolist/internal/auth"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// Operation outcome labels for the todoOperations metric.
const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// todoOperations counts engine operations by op and outcome.
var todoOperations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "todolist_operations_total",
		Help: "Total number of todo list operations by outcome",
	},
	[]string{"op", "outcome"},
)

// ownerID resolves the owner scoping the request's todos: the
// authenticated identity when present, otherwise the configured local
// owner (the single-user variant where auth is disabled).
func ownerID(r *http.Request, localOwner string) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.OwnerID
	}
	return localOwner
}
