package workunit

// PathColumn is the table column that holds a record's identifying path.
const PathColumn = "file"

// ResultRecord is one scored input. Attributes are engine-defined and opaque
// to the coordinator; Log holds the engine's diagnostic sub-log for the input.
type ResultRecord struct {
	Path       string           `json:"file"`
	Attributes map[string]any   `json:"attributes,omitempty"`
	Log        []map[string]any `json:"log,omitempty"`
}

// Outcome is what a resolved task yields: either records or a task error.
// It is returned from the worker boundary, never thrown.
type Outcome struct {
	Unit    WorkUnit
	Records []ResultRecord
	Err     error
}

// Failed reports whether the task ended in a task error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Success wraps scored records into an outcome.
func Success(unit WorkUnit, records []ResultRecord) Outcome {
	return Outcome{Unit: unit, Records: records}
}

// Failure wraps a task error into an outcome.
func Failure(unit WorkUnit, err error) Outcome {
	return Outcome{Unit: unit, Err: err}
}
