package protocol

// SubjectGenerate is the request/reply subject for the bus frontend of the
// generation operation.
const SubjectGenerate = "speech.generate"

// GenerateRequest mirrors the HTTP generation input. Audio always travels
// base64-encoded on the bus regardless of the requested format.
type GenerateRequest struct {
	Text       string `json:"text"`
	Credential string `json:"credential,omitempty"`
	Format     string `json:"format,omitempty"`
}

// GenerateReply is the bus response envelope.
type GenerateReply struct {
	AudioBase64     string         `json:"audio_base64,omitempty"`
	Groups          int            `json:"groups,omitempty"`
	Speakers        int            `json:"speakers,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Error           *GenerateError `json:"error,omitempty"`
}

// GenerateError names the failure kind and, when attributable, the failing
// group index (-1 otherwise).
type GenerateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Group   int    `json:"group"`
}
