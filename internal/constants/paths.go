package constants

// DilagentDir is the name of the per-run artifact directory created under the
// working root. All sandboxes, state, timeline, and logs live beneath it.
const DilagentDir = ".dilagent"

// Subdirectories of the dilagent working directory.
const (
	// LogsDir holds manager and worker log files.
	LogsDir = "logs"

	// ArtifactsDir holds files produced by workers (reports, captures).
	ArtifactsDir = "artifacts"

	// RootSandboxDir is the directory name of the root sandbox, the
	// version-controlled mirror of the original context directory.
	RootSandboxDir = "context-repo"
)

// Durable file names under the dilagent working directory.
const (
	// StateFileName holds the full run-state snapshot as UTF-8 JSON,
	// rewritten wholesale on every persisted mutation.
	StateFileName = "state.json"

	// TimelineFileName holds the append-only event history,
	// rewritten wholesale on every persisted append.
	TimelineFileName = "timeline.json"
)

// Log file names.
const (
	// ManagerLogFileName is the name of the rotating manager log file
	// written under <working-root>/.dilagent/logs/.
	ManagerLogFileName = "dilagent.log"
)

// Configuration file names.
const (
	// DilagentHome is the per-user dilagent directory name (~/.dilagent).
	DilagentHome = ".dilagent"

	// GlobalConfigName is the name of the global dilagent configuration file.
	// This file is located in the dilagent home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project-specific configuration file.
	// This file is located in the working root.
	ProjectConfigName = ".dilagent.yaml"
)

// Log rotation settings for the manager log file.
const (
	// LogMaxSizeMB is the maximum size in megabytes before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the maximum number of rotated files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age in days of a rotated file.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)

// RootBranchSuffix is the branch-name suffix of the root sandbox.
// The root sandbox of run "run-abc" is checked out to "run-abc/main".
const RootBranchSuffix = "main"
