package soundengine

import (
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

// engineLogger mirrors the teacher's error/debug logger pair (see
// logger.go in the teacher repo): a plain *log.Logger, with debug
// output gated behind a bool so normal play doesn't spam channel
// lifecycle events.
type engineLogger struct {
	out   *log.Logger
	debug bool
}

func newEngineLogger(debug bool) *engineLogger {
	return &engineLogger{out: log.New(os.Stderr, "", log.LstdFlags), debug: debug}
}

func (l *engineLogger) Errorf(format string, args ...interface{}) {
	l.out.Printf("[sound] error: "+format, args...)
}

func (l *engineLogger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.out.Printf("[sound] "+format, args...)
	}
}

// humanBytes and humanSince are small formatting helpers used by debug
// logging (cache footprint, how long a channel sat evicted) so the
// engine doesn't hand-roll duration/size math the way a one-off
// fmt.Sprintf would.
func humanBytes(n uint64) string {
	return humanize.Bytes(n)
}

func humanSince(start time.Time) string {
	d, err := durafmt.ParseString(time.Since(start).Round(time.Millisecond).String())
	if err != nil {
		return time.Since(start).String()
	}
	return d.String()
}
