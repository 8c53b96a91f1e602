package ui

// ProgressMsg is a stage update for the file being analysed.
type ProgressMsg struct {
	FileIndex int
	Stage     string  // processor.StageSpectrum and friends
	Progress  float64 // 0.0 to 1.0
}

// FileStartMsg indicates a new file has started
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileResult is the headline of a finished file.
type FileResult struct {
	Integrated  float64 // LUFS
	TruePeak    float64 // dBTP
	CentroidHz  float64
	StereoWidth float64
	Degraded    bool // measured by the internal fallback
	Suggestions int
	ReportPath  string
}

// FileCompleteMsg indicates a file has finished
type FileCompleteMsg struct {
	FileIndex int
	Result    FileResult
	Error     error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}

// tickMsg drives the spinner and elapsed timers
type tickMsg struct{}
