package handlers

import (
	"net/http"
)

// RootResponse points callers at the useful routes.
type RootResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Hint    string `json:"hint"`
}

// VersionResponse reports the running build.
type VersionResponse struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// Root handles GET /.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, RootResponse{
		OK:      true,
		Service: "policyrag",
		Hint:    "Try GET /health or POST /chat",
	})
}

// Version returns a handler for GET /api/version.
func Version(version, environment string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, VersionResponse{
			Service:     "policyrag",
			Version:     version,
			Environment: environment,
		})
	}
}
