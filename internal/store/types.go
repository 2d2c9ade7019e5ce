// Package store provides durable typed access to memoria's entities: an
// embedded SQLite database with an FTS5 index, decay/GC for learnings,
// and search across sessions, decisions, and learnings.
//
// Every exported operation is failure-tolerant by contract: storage
// errors are logged and an empty/neutral value is returned rather than
// propagated, because the router that calls into this package must
// never let a hook fail the host assistant (spec.md §4.1 "Failure
// policy").
package store

import "time"

// ActionType classifies what kind of tool invocation an Action records.
type ActionType string

const (
	ActionEdit   ActionType = "edit"
	ActionCreate ActionType = "create"
	ActionTest   ActionType = "test"
	ActionBuild  ActionType = "build"
	ActionCommit ActionType = "commit"
	ActionDelete ActionType = "delete"
	ActionOther  ActionType = "other"
)

// Outcome is the result of an Action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// SnapshotTrigger identifies what caused a Snapshot to be captured.
type SnapshotTrigger string

const (
	TriggerPreCompact SnapshotTrigger = "pre-compact"
	TriggerCompact    SnapshotTrigger = "compact"
	TriggerOther      SnapshotTrigger = "other"
)

// Session is a single assistant conversation scoped to a project path.
type Session struct {
	ID                    string
	ProjectPath           string
	StartedAt             time.Time
	EndedAt               *time.Time
	Summary               string
	TaskDescription       string
	FilesModified         []string
	CompactionCount       int
	ContextUtilizationPeak *float64
	ParentSessionID       string
}

// Action is one observed tool invocation by the host assistant.
type Action struct {
	ID           int64
	SessionID    string
	Timestamp    time.Time
	ToolName     string
	FilePath     string
	ActionType   ActionType
	Description  string
	Outcome      Outcome
	ErrorMessage string
}

// Decision is a durable architectural/library/convention choice.
type Decision struct {
	ID            int64
	SessionID     string
	ProjectPath   string
	Timestamp     time.Time
	Category      string
	Decision      string
	Rationale     string
	FilesAffected []string
	SupersedesID  *int64
}

// Learning is a gotcha or pattern discovered during a session.
type Learning struct {
	ID             int64
	SessionID      string
	ProjectPath    string
	Timestamp      time.Time
	Category       string
	Learning       string
	Context        string
	RelevanceScore float64
	TimesReferenced int
}

// Snapshot is a pre-compaction or resumption state capture.
type Snapshot struct {
	ID              int64
	SessionID       string
	Timestamp       time.Time
	Trigger         SnapshotTrigger
	CurrentTask     string
	ProgressSummary string
	OpenQuestions   []string
	NextSteps       []string
	WorkingFiles    []string
}

// Metric is a time-stamped scalar observation keyed by name.
type Metric struct {
	ID         int64
	SessionID  string
	Timestamp  time.Time
	MetricName string
	Value      float64
}

// Prompt is a logged user prompt.
type Prompt struct {
	ID          int64
	SessionID   string
	ProjectPath string
	Timestamp   time.Time
	Prompt      string
}

// ActivitySummary aggregates action counts over a bounded window of
// recent sessions, backing the tool server's day/week metrics period.
type ActivitySummary struct {
	SessionsCounted int
	ActionCount     int
	FailureCount    int
	ByType          map[ActionType]int
}

// ProjectMetrics is the aggregate bundle returned by ProjectMetricsSummary.
type ProjectMetrics struct {
	SessionCount        int
	TotalActions        int
	TotalFailures        int
	AvgPeakUtilization   float64
	TotalCompactions     int
	DecisionCount        int
	LearningCount        int
	PromptCount          int
}

// SearchCategory selects which tables search_memory covers.
type SearchCategory string

const (
	CategorySessions  SearchCategory = "sessions"
	CategoryDecisions SearchCategory = "decisions"
	CategoryLearnings SearchCategory = "learnings"
	CategoryAll       SearchCategory = "all"
)

// SearchHit is a single unified search_memory result. ID holds the
// decision/learning row ID formatted as a string, or the session UUID
// directly, so callers can resolve the hit back to its source record
// regardless of which table's primary key shape produced it.
type SearchHit struct {
	Source  string // "session", "decision", or "learning"
	ID      string
	Snippet string
	Rank    float64 // lower (more negative) is more relevant
}

// SimilarPrompt is a find_similar_prompts match.
type SimilarPrompt struct {
	ID        int64
	SessionID string
	Prompt    string
	Timestamp time.Time
	Rank      float64
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
