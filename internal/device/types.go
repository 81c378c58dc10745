package device

type RawCommand[T any] struct {
	Command string `json:"command"`
	ReqID   int    `json:"id"`
	Data    T      `json:"data"`
}

type VersionData struct {
	Major   uint8  `json:"major"`
	Minor   uint16 `json:"minor"`
	Variant uint8  `json:"variant"`
}

// RegisterCommandData is the register request and response. ComponentID
// and Version override the relay's device defaults when set.
type RegisterCommandData struct {
	Code        string       `json:"code"`
	Secret      string       `json:"secret"`
	ComponentID *uint8       `json:"component_id,omitempty"`
	Version     *VersionData `json:"version,omitempty"`
}

// ReportData carries one output or input report.
type ReportData struct {
	ReportID byte   `json:"report_id"`
	Data     []byte `json:"data"`
}

// FeatureRequest asks for a feature report with a buffer of Length bytes.
type FeatureRequest struct {
	ReportID byte `json:"report_id"`
	Length   int  `json:"length"`
}

// AckData acknowledges an output report or reports a failed request.
type AckData struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}
