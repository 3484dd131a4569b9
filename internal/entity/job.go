package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchMode selects the search engine executable and its flags.
type SearchMode string

const (
	ModeBlastn    SearchMode = "blastn"
	ModeBlastp    SearchMode = "blastp"
	ModeBlastx    SearchMode = "blastx"
	ModeTblastn   SearchMode = "tblastn"
	ModeMegablast SearchMode = "megablast"
)

// SearchModes lists every mode in a stable order.
func SearchModes() []SearchMode {
	return []SearchMode{ModeBlastn, ModeBlastp, ModeBlastx, ModeTblastn, ModeMegablast}
}

type JobState string

const (
	StateCreated   JobState = "created"
	StateStaging   JobState = "staging"
	StateSubmitted JobState = "submitted"
	StatePending   JobState = "pending"
	StateComplete  JobState = "complete"
	StateFailed    JobState = "failed"
)

// OutputFormat is the search engine's -outfmt code.
type OutputFormat int

const (
	DefaultOutputFormat OutputFormat = 6
	maxOutputFormat     OutputFormat = 18
)

// ParseOutputFormat accepts the numeric -outfmt code; an empty string yields
// DefaultOutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultOutputFormat, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOutputFormat, s)
	}
	f := OutputFormat(n)
	if f < 0 || f > maxOutputFormat {
		return 0, fmt.Errorf("%w: %d is outside 0..%d", ErrInvalidOutputFormat, n, maxOutputFormat)
	}
	return f, nil
}

func (f OutputFormat) String() string {
	return strconv.Itoa(int(f))
}

// Job is one search request. Its files are the only record of its state.
type Job struct {
	ID         uuid.UUID    `json:"id"`
	Mode       SearchMode   `json:"mode"`
	Database   string       `json:"database"`
	Format     OutputFormat `json:"output_format"`
	InputPath  string       `json:"input_path"`
	ScriptPath string       `json:"script_path"`
	OutputPath string       `json:"output_path"`
	State      JobState     `json:"state"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Dataset is an indexed collection the search engine can read.
// StagedPath is the index prefix handed to -db.
type Dataset struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	StagedPath string `json:"staged_path"`
}

type PollStatus string

const (
	PollPending  PollStatus = "pending"
	PollComplete PollStatus = "complete"
	PollFailed   PollStatus = "failed"
	PollNotFound PollStatus = "not_found"
)

// PollResult is a point-in-time view of a job's output.
type PollResult struct {
	Status     PollStatus
	Content    []byte
	Diagnostic string
}

// State maps a poll status onto the job state machine.
func (s PollStatus) State() JobState {
	switch s {
	case PollComplete:
		return StateComplete
	case PollFailed:
		return StateFailed
	default:
		return StatePending
	}
}
