package middleware

type contextKey string

// StartTimeKey stores the request start time for latency calculation.
const StartTimeKey contextKey = "start_time"
