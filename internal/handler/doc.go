// Package handler implements the HTTP surface of the nodegraph server.
//
// Routes:
//
//	POST   /api/init-db            create tables
//	POST   /api/drop-tables        drop tables
//	POST   /api/save-node          upsert a node  -> {message, nodeId}
//	GET    /api/load-nodes         all nodes, or ?graph_id= members
//	GET    /api/node/{id}          one node
//	DELETE /api/delete-node/{id}   delete a node
//	GET    /api/export             snapshot (?format=json|yaml)
//	POST   /api/import             load a snapshot -> {message, imported}
//	GET    /health, /ready, /metrics
//
// Errors are returned as {error, details, type} with the status taken from
// the apperr type: VALIDATION 400, NOT_FOUND 404, CONSTRAINT 409,
// STORE_UNAVAILABLE 503, anything else 500.
package handler
