// Package http is the JSON transport for the runtime: request and response
// helpers plus the controller that exposes the command bus, the query bus
// and the state store.
//
// # Endpoints
//
//	POST /commands/{name}   200 {"data": result}
//	POST /queries/{name}    404 unknown name
//	                        422 {"errors": {"<name>": ["..."]}}
//	                        400 malformed JSON, 500 handler failure
//	GET  /handlers          {"data": {"commands": [...], "queries": [...]}}
//	GET  /state             {"data": {"state": {...}}}
//	GET  /state?path=a.b    {"data": <value>}, 404 when missing
//
// # Wiring
//
//	router := routing.New()
//	gohttp.NewDispatchController(cmds, queries, store).Routes(router)
//
// # Request / Response
//
//	req := gohttp.NewRequest(r)
//	body, err := req.Body()        // raw JSON, nil when empty
//	path := req.Query("path", "")
//	name := req.RouteParam("name")
//
//	res := gohttp.NewResponse(w)
//	res.Success(v)                 // 200 {"data": v}
//	res.NotFound()                 // 404 {"message": "Not found."}
//	res.ValidationError(bag)       // 422 {"errors": {...}}
package http
