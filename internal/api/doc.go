// Package api hosts the HTTP server, middleware, and REST handlers for the
// catalog. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/distros with filtering, sorting and pagination.
//   - GET /v1/distros/{id} and GET /v1/logo/{id} for single records.
//   - POST /v1/distros/refresh to rebuild the catalog in the background.
//   - GET /v1/cache/info to inspect the cache envelope.
package api
