package common

type contextKey string

const (
	RequestIdContextKey  contextKey = "request_id"
	ServiceKeyContextKey contextKey = "service_key"
	LatencyContextKey    contextKey = "__execution_time"
)
