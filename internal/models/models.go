// Package models defines the data objects shared across t262export packages.
package models

// FileIdentity locates one file under both synced directories.
type FileIdentity struct {
	BaseFilePath        string // path relative to the synced directories, with a leading slash
	SourceFilePath      string
	TargetFilePath      string
	RenamedFilePath     string // new absolute source path when the source renamed the file
	RenamedBaseFilePath string
	IsSourceFilePath    bool // the raw path was anchored under the source directory
}

// BlockedStatus marks a curated file that must never be exported again.
const BlockedStatus = "DO_NOT_EXPORT_AND_BLOCK_FUTURE_EXPORTS"

// CurationLog is the persisted state anchoring the next run's diffs.
type CurationLog struct {
	SourceRevisionAtLastExport string            `json:"sourceRevisionAtLastExport"`
	TargetRevisionAtLastExport string            `json:"targetRevisionAtLastExport"`
	CuratedFiles               map[string]string `json:"curatedFiles"`
}

// Workspace holds the locations of a run. It replaces any reliance on the process working directory.
type Workspace struct {
	TempDir         string
	TargetRoot      string // target clone
	SourceRoot      string // source clone
	TargetDirectory string // synced sub directory inside the target clone
	SourceDirectory string // synced sub directory inside the source clone
	CurationLogPath string
	Branch          string
}
