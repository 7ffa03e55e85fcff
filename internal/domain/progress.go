package domain

// Stage is a step of the installation pipeline.
type Stage string

const (
	StageFetchingRelease Stage = "fetching_release"
	StageDownloading     Stage = "downloading"
	StageExtracting      Stage = "extracting"
	StageInstalling      Stage = "installing"
	StageVerifying       Stage = "verifying"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

// Terminal reports whether no further events follow a stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ProgressEvent is emitted by the pipeline at every stage transition and
// for every downloaded chunk. Progress is meaningful only while downloading;
// a negative value means the total size is unknown.
type ProgressEvent struct {
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Err      error   `json:"-"`
}

// ProgressFunc receives pipeline progress events.
type ProgressFunc func(event ProgressEvent)
