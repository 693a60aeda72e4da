package cmd

import (
	"github.com/sirupsen/logrus"
)

// logObserver reports pipeline progress through logrus. It satisfies
// gcm.Observer; the pipeline is the only caller.
type logObserver struct {
	total uint64
	done  uint64
	task  string
	size  uint64
}

func (o *logObserver) JobStart(total uint64) {
	o.total = total
	o.done = 0
	log.WithField("total", total).Debug("job started")
}

func (o *logObserver) TaskDescribe(name string, size uint64) {
	o.task = name
	o.size = size
	log.WithFields(logrus.Fields{
		"task": name,
		"size": size,
	}).Debug("task")
}

func (o *logObserver) TaskComplete() {
	o.done += o.size
	if o.total > 0 {
		log.Debugf("%s done (%.1f%%)", o.task, float64(o.done)*100/float64(o.total))
	}
}

func (o *logObserver) JobEnd() {
	log.Debug("job finished")
}
