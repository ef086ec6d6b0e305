package events

// Stage is the last step an event reached.
type Stage int

const (
	StageReceived Stage = iota
	StageImageLocated
	StageDetected
	StageClustered
	StageAssembled
	StageValidated
	StagePersisted
	StageIndexed
	StageDone
)

var stageNames = [...]string{
	"received",
	"image_located",
	"detected",
	"clustered",
	"assembled",
	"validated",
	"persisted",
	"indexed",
	"done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText renders the stage name in logs and JSON.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
