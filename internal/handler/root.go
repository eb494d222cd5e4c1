package handler

import "net/http"

// API identity served at GET /.
const (
	APIName    = "ApplySync API is running"
	APIVersion = "1.0.0"
)

var endpoints = []string{
	"POST /subscribe - Subscribe to newsletter",
	"GET /health - Check API status",
	"GET /metrics - Prometheus metrics",
}

type rootResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// HandleRoot describes the API.
func HandleRoot(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, rootResponse{
		Message:   APIName,
		Version:   APIVersion,
		Endpoints: endpoints,
	})
}
