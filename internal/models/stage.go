package models

// Stage is a step of the linear orchestration state machine
type Stage int

const (
	StageStart Stage = iota
	StagePathResolved
	StageValidated
	StageConfigBuilt
	StageEngineInvoked
	StagePostProcessed
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageStart:         "START",
	StagePathResolved:  "PATH_RESOLVED",
	StageValidated:     "VALIDATED",
	StageConfigBuilt:   "CONFIG_BUILT",
	StageEngineInvoked: "ENGINE_INVOKED",
	StagePostProcessed: "POST_PROCESSED",
	StageDone:          "DONE",
	StageFailed:        "FAILED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}
