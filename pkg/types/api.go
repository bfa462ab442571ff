package types

// SynthesisRequest is the payload of POST /api/tts and /api/tts/stream.
type SynthesisRequest struct {
	// Required text to speak.
	// example: Hello from the resident speech model.
	Text string `json:"text" example:"Hello from the resident speech model."`
	// Voice id. Built-in voices use their catalog name; uploaded voices use
	// custom/<name>.wav. Empty selects the server default.
	// example: expresso/ex03-ex01_happy_001_channel1_334s.wav
	Voice string `json:"voice,omitempty" example:"expresso/ex03-ex01_happy_001_channel1_334s.wav"`
	// Classifier-free guidance coefficient in [1, 3]; 0 or omitted means 2.0.
	// example: 2.0
	CFGCoef float64 `json:"cfg_coef,omitempty" example:"2.0"`
}

// VoicesResponse wraps a voice list.
type VoicesResponse struct {
	// Voice ids, sorted.
	Voices []string `json:"voices"`
}

// VoiceUploadResponse is returned by POST /api/voice/upload.
type VoiceUploadResponse struct {
	// example: success
	Status string `json:"status" example:"success"`
	// Voice id to pass as "voice" in synthesis requests.
	// example: custom/alice.wav
	VoicePath string `json:"voice_path" example:"custom/alice.wav"`
	// Whether the speaker embedding was extracted and cached.
	// example: true
	EmbeddingCached bool `json:"embedding_cached" example:"true"`
	// Length of the uploaded clip in seconds.
	// example: 7.5
	DurationSeconds float64 `json:"duration_seconds" example:"7.5"`
	// example: Voice uploaded and cached. Use "custom/alice.wav"
	Message string `json:"message" example:"Voice uploaded and cached. Use \"custom/alice.wav\""`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: text is required
	Error string `json:"error" example:"text is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// Whether an accelerator is visible to the host.
	// example: true
	GPU bool `json:"gpu" example:"true"`
}

// OffloadResponse is returned by POST /api/gpu/offload.
type OffloadResponse struct {
	// example: offloaded
	Status string `json:"status" example:"offloaded"`
	// True when a resident model was actually released.
	// example: true
	Released bool `json:"released" example:"true"`
}
