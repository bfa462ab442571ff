package types

// GPUStatus reports the resident model and device memory.
type GPUStatus struct {
	// Whether the speech model currently occupies accelerator memory.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Lifecycle state: absent, loading or resident.
	// example: resident
	State string `json:"state" example:"resident"`
	// Whether a device was found. Memory fields are zero otherwise.
	// example: true
	Available bool `json:"gpu_available" example:"true"`
	// Device memory in use, GiB rounded to two decimals.
	// example: 3.42
	MemoryUsedGB float64 `json:"memory_used_gb" example:"3.42"`
	// Device memory capacity, GiB rounded to two decimals.
	// example: 23.99
	MemoryTotalGB float64 `json:"memory_total_gb" example:"23.99"`
	// Last time the model served a request (unix seconds, 0 if never).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Idle period after which the model is released; 0 when disabled.
	// example: 60
	IdleTimeoutSeconds int64 `json:"idle_timeout_seconds" example:"60"`
	// Successful model constructions since start.
	// example: 3
	Loads uint64 `json:"loads_total" example:"3"`
	// Failed model constructions since start.
	// example: 0
	LoadFailures uint64 `json:"load_failures_total" example:"0"`
	// Releases (forced, idle or shutdown) since start.
	// example: 2
	Releases uint64 `json:"releases_total" example:"2"`
	// Number of cached speaker embeddings.
	// example: 1
	CachedEmbeddings int `json:"cached_embeddings" example:"1"`
	// Last construction error, if any.
	LastError string `json:"last_error,omitempty"`
	// Most recent lifecycle events, oldest first.
	RecentEvents []LifecycleEvent `json:"recent_events,omitempty"`
}

// LifecycleEvent is one load or release of the model.
type LifecycleEvent struct {
	// load_start, load_done, load_error or release.
	// example: release
	Event string `json:"event" example:"release"`
	// example: 1700000000
	AtUnix int64 `json:"at_unix" example:"1700000000"`
	// Release reason: idle, forced or shutdown.
	// example: idle
	Reason string `json:"reason,omitempty" example:"idle"`
	// Construction time of a successful load.
	// example: 41250
	DurationMS int    `json:"duration_ms,omitempty" example:"41250"`
	Error      string `json:"error,omitempty"`
}
