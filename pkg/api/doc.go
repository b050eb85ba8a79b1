// Package api assembles folio's HTTP surface.
//
// Each domain package owns its handlers and exposes RegisterRoutes (and,
// for anonymous reads, RegisterPublicRoutes). Server mounts them on a
// gorilla/mux router behind a shared middleware stack:
//
//	request ID -> panic recovery -> body limit -> metrics
//	  public:  optional auth -> audit
//	  private: auth -> audit -> tenant -> rate limit
//
// and wraps the result in otelhttp so every request carries a span.
//
// # Usage
//
//	server := api.NewServer(api.Services{
//		Tokens:   tokens,
//		Identity: identitySvc,
//		Tenants:  tenantSvc,
//		Workflow: workflowSvc,
//	}, api.Options{DB: db, Logger: logger})
//	http.ListenAndServe(":8080", server)
package api
