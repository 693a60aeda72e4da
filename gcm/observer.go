package gcm

// Observer receives progress callbacks from the image pipeline. It is
// the only hook a frontend needs: a job brackets one build or extract,
// tasks are its sequential steps.
//
// Callbacks run on the pipeline's goroutine and must return promptly;
// they must not mutate the tree or policy being operated on. A failed
// job may end without JobEnd — treat an error return as "job
// incomplete" regardless of callbacks already received.
type Observer interface {
	// JobStart announces the job's total byte size.
	JobStart(total uint64)
	// TaskDescribe names the task about to run and its byte size.
	TaskDescribe(name string, size uint64)
	// TaskComplete marks the described task finished.
	TaskComplete()
	// JobEnd marks the whole job finished.
	JobEnd()
}

// progress wraps a possibly-nil Observer so the pipeline can call it
// unconditionally.
type progress struct {
	o Observer
}

func (p progress) jobStart(total uint64) {
	if p.o != nil {
		p.o.JobStart(total)
	}
}

func (p progress) task(name string, size uint64) {
	if p.o != nil {
		p.o.TaskDescribe(name, size)
	}
}

func (p progress) done() {
	if p.o != nil {
		p.o.TaskComplete()
	}
}

func (p progress) jobEnd() {
	if p.o != nil {
		p.o.JobEnd()
	}
}
