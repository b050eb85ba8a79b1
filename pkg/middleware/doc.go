// Package middleware provides folio's HTTP middleware.
//
// # Ordering
//
// Outer to inner:
//
//	router.Use(middleware.RequestID)
//	router.Use(authMiddleware.Handler)              // sets auth context
//	router.Use(middleware.TenantMiddleware(tenants)) // needs auth context
//	router.Use(rateLimiter.Handler)                  // keys on user when present
//
// TenantMiddleware and the rate limiters read the user set by AuthMiddleware;
// mounted earlier they see anonymous requests only.
//
// RateLimitMiddleware keeps token buckets in memory. When REDIS_URL is set,
// DistributedRateLimitMiddleware shares fixed-window counters across
// instances and fails open on Redis errors.
package middleware
