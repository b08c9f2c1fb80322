package http

const (
	Ping       = "Ping"
	Version    = "Version"
	Notify     = "Notify"
	TriggerRun = "TriggerRun"
	ListRuns   = "ListRuns"
	RunStatus  = "RunStatus"
)
