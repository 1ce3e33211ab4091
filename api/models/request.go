package models

type AnalysisRequest struct {
	// Text is the transcript to analyze, sent inline
	Text string `json:"text,omitempty"`

	// Source is a server-side locator for the transcript, used when
	// Text is empty (a file path, optionally .srt)
	Source string `json:"source,omitempty"`

	// Optional parameters to control analysis behavior
	Options AnalysisOptions `json:"options,omitempty"`
}

type AnalysisOptions struct {
	// Model overrides the configured model (e.g. "gpt-4")
	Model string `json:"model,omitempty"`

	// Language overrides the commentary language of the result
	Language string `json:"language,omitempty"`

	// Temperature controls randomness (0.0-2.0); nil keeps the
	// configured value
	Temperature *float64 `json:"temperature,omitempty"`
}
