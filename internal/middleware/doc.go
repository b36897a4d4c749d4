// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package middleware provides HTTP middleware for the MAChINE API.

All middleware uses the chi signature func(http.Handler) http.Handler so it
can be mounted with router.Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

RequestID honours an upstream X-Request-ID header, echoes it on the response
and stores it, with a fresh correlation ID, in the logging context.
PrometheusMetrics labels requests with the chi route pattern rather than the
raw path so user IDs do not explode label cardinality.
*/
package middleware
