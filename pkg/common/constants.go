package common

import "time"

const (
	RerankCacheTTL = 5 * time.Minute

	RequestIDHeader  = "X-Request-Id"
	ServiceKeyHeader = "X-RG-API-Key"
)
