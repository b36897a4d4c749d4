// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package api is the HTTP front-end of the workbench.

Every resource handler parses the request arguments, delegates to the
storage handler or the ML engine, and writes the result as JSON. The
handlers hold no state of their own besides a small catalog cache for
datasets and base models.

Routes:

	POST   /users                      log in: get or add the user named {username}
	POST   /users/{id}                 get or add user
	DELETE /users/{id}                 delete user and owned data
	GET    /users/{id}/models          list models
	PATCH  /users/{id}/models          create model
	GET    /users/{id}/molecules       list molecules with analyses
	PATCH  /users/{id}/molecules       add molecule
	GET    /users/{id}/fittings        list fittings
	POST   /users/{id}/analyze         analyze molecule with a fitting
	POST   /user/{id}/train            start training
	POST   /users/{id}/train           start training
	GET    /users/{id}/train           current training status
	DELETE /users/{id}/train           stop training
	GET    /datasets                   dataset catalog
	GET    /datasets/{id}              one dataset
	GET    /datasets/{id}/histograms   label histograms (?labels=a,b)
	GET    /baseModels                 base model catalog
	GET    /check                      heartbeat
	GET    /ws?userID=                 training event stream
	GET    /health/live, /health/ready probes
	GET    /metrics                    Prometheus exposition

Response format:

Successful responses carry the collaborator's result unwrapped. Errors use
a common envelope:

	{"success": false, "error": {"code": "NOT_FOUND", "message": "...", "details": {...}}}

Domain errors map to status codes with errors.Is: models.ErrNotFound to
404, models.ErrInvalidArgument to 400, models.ErrConflict to 409 and
models.ErrUnavailable to 503. Anything else is a 500 whose message is
logged but not returned.

Arguments:

Request fields come from a JSON body first (strings or numbers are both
accepted for scalar fields) and then from form or query values. See
ParseArgs.
*/
package api
