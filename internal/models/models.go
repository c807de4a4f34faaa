package models

import (
	"time"
)

type SessionManifestVersion string

const (
	SessionManifestVersion_v1 SessionManifestVersion = "session.manifest/v1"
)

// ScheduledSnippet is a piece of code pushed onto the session's queue on a
// cron schedule while the session runs. Useful for keepalives or periodic
// state dumps in long-lived test sessions.
type ScheduledSnippet struct {
	Cron string `json:"cron" yaml:"cron"`
	Code string `json:"code" yaml:"code"`
}

// SessionManifestV1 describes how to build and run one REPL session. The
// generated script looks like:
//
//	// imports
//	(async () => {
//	  // before
//	  ...read-eval loop...
//	  // after, in reverse order
//	})();
type SessionManifestV1 struct {
	Version SessionManifestVersion `json:"version" yaml:"version"`

	// Code snippets spliced around the read-eval loop.
	Imports []string `json:"imports,omitempty" yaml:"imports,omitempty"`
	Before  []string `json:"before,omitempty" yaml:"before,omitempty"`
	After   []string `json:"after,omitempty" yaml:"after,omitempty"`

	NodeBinary     string `json:"node_binary,omitempty" yaml:"node_binary,omitempty"`
	NodeModules    string `json:"node_modules,omitempty" yaml:"node_modules,omitempty"`
	ScriptFileName string `json:"script_file_name,omitempty" yaml:"script_file_name,omitempty"`

	// Directories copied next to the generated script, for importing
	// custom code from inside the session.
	CopyDirs []string `json:"copy_dirs,omitempty" yaml:"copy_dirs,omitempty"`

	// When true, an evaluation error stops the consumption loop instead of
	// being logged and skipped.
	FailFast bool `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`

	Scheduled []ScheduledSnippet `json:"scheduled,omitempty" yaml:"scheduled,omitempty"`
}

type EvaluationStatus uint8

const (
	EvaluationStatus_SUCCEEDED EvaluationStatus = iota
	EvaluationStatus_FAILED
)

// Evaluation records one chunk run through the evaluator.
type Evaluation struct {
	Id string `json:"id"`

	SessionId string `json:"session_id"`

	Code   string `json:"code"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	Status EvaluationStatus `json:"status"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
