package engine

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the structured logger every engine component logs
// through, matching the teacher pack's logrus.Fields style (the only pack
// repo with a real ambient logging stack). verbose raises the level to
// Debug; otherwise components only log Warn and above, keeping pipe mode
// quiet on stderr by default.
func NewLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}
