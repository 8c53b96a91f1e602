// Package ui provides the Bubbletea terminal interface for batch analysis.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/mixdesk/internal/processor"
)

// FileStatus represents the analysis state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusAnalysing
	StatusComplete
	StatusError
)

// Stages are the analysis stages shown per file, in display order.
var Stages = []string{processor.StageSpectrum, processor.StageLoudness, processor.StageStereo}

// FileProgress tracks progress for a single audio file
type FileProgress struct {
	InputPath string
	Status    FileStatus
	Stages    map[string]float64 // stage → 0.0 to 1.0
	StartTime time.Time
	Elapsed   time.Duration
	Result    FileResult
	Error     error
}

// Progress is the mean completion of all stages.
func (fp FileProgress) Progress() float64 {
	var sum float64
	for _, s := range Stages {
		sum += fp.Stages[s]
	}
	return sum / float64(len(Stages))
}

// Model is the Bubbletea model for the batch analysis UI
type Model struct {
	Files          []FileProgress
	CurrentIndex   int
	CompletedFiles int
	FailedFiles    int

	StartTime time.Time
	Done      bool
	Aborted   bool

	// Cancel stops background work when the user quits.
	Cancel func()

	spinnerIndex int

	Width  int
	Height int
}

// NewModel creates a UI model for the given input files
func NewModel(inputFiles []string, cancel func()) Model {
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
			Stages:    make(map[string]float64, len(Stages)),
		}
	}
	if cancel == nil {
		cancel = func() {}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1,
		StartTime:    time.Now(),
		Cancel:       cancel,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Cancel()
			m.Aborted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		if m.valid(m.CurrentIndex) && m.Files[m.CurrentIndex].Status == StatusAnalysing {
			m.Files[m.CurrentIndex].Elapsed = time.Since(m.Files[m.CurrentIndex].StartTime)
		}
		return m, tickCmd()

	case FileStartMsg:
		if !m.valid(msg.FileIndex) {
			return m, nil
		}
		m.CurrentIndex = msg.FileIndex
		fp := &m.Files[msg.FileIndex]
		fp.Status = StatusAnalysing
		fp.StartTime = time.Now()

	case ProgressMsg:
		if !m.valid(msg.FileIndex) {
			return m, nil
		}
		m.Files[msg.FileIndex] = updateFileProgress(m.Files[msg.FileIndex], msg)

	case FileCompleteMsg:
		if !m.valid(msg.FileIndex) {
			return m, nil
		}
		fp := &m.Files[msg.FileIndex]
		fp.Elapsed = time.Since(fp.StartTime)
		fp.Result = msg.Result
		fp.Error = msg.Error
		if msg.Error != nil {
			fp.Status = StatusError
			m.FailedFiles++
		} else {
			fp.Status = StatusComplete
			m.CompletedFiles++
		}

	case AllCompleteMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) valid(i int) bool {
	return i >= 0 && i < len(m.Files)
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return "Initializing..."
	}
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}

// updateFileProgress records a stage update. Stages only move forward.
func updateFileProgress(fp FileProgress, msg ProgressMsg) FileProgress {
	stages := make(map[string]float64, len(fp.Stages)+1)
	for k, v := range fp.Stages {
		stages[k] = v
	}
	if msg.Progress > stages[msg.Stage] {
		stages[msg.Stage] = min(msg.Progress, 1)
	}
	fp.Stages = stages
	if fp.Status == StatusQueued {
		fp.Status = StatusAnalysing
		fp.StartTime = time.Now()
	}
	return fp
}
