package ftlex

import (
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("ftlex")

// Debug traces scanning decisions to logger at DEBUG level.
//
// A nil logger uses the "ftlex" logger.
func Debug(logger *logging.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger == nil {
			logger = log
		}
		s.debug = logger
	}
}

func (s *Scanner) tracef(format string, args ...interface{}) {
	if s.debug == nil {
		return
	}
	s.debug.Debugf("%s: "+format, append([]interface{}{s.currentPosition()}, args...)...)
}
