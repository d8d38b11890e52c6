package server

import "net/http"

// Handler returns the routed, request-logging handler.
func (s *ServerContext) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/municipalities", s.HandleMunicipalities)
	mux.HandleFunc("/api/measurements", s.HandleMeasurements)
	mux.HandleFunc("/api/boundaries.geojson", s.HandleBoundaries)
	mux.HandleFunc("/overlays/", s.HandleOverlay)

	return RequestLogger(mux)
}
