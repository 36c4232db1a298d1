// timer makes timing operations easier.
package timer

import (
	"time"

	"go.stacforge.org/infra/go/sflog"
)

// Timer is for timing events. When finished the duration is reported
// via sflog.
//
// The standard way to use Timer is at the top of the func you
// want to measure:
//
//	defer timer.New("scene transform time").Stop()
type Timer struct {
	Begin time.Time
	Name  string
}

func New(name string) *Timer {
	return &Timer{
		Begin: time.Now(),
		Name:  name,
	}
}

// Stop logs the elapsed time and returns it, for callers that also want the
// value.
func (t Timer) Stop() time.Duration {
	d := time.Since(t.Begin)
	sflog.Infof("%s %v", t.Name, d)
	return d
}
