package harness

import (
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/sutdb"
)

// Config controls how a Runner treats a scenario.
type Config struct {
	// User and Password sign in before the first case. An empty User skips
	// the login.
	User     string
	Password string
	// KeepGoing continues with the next case after an infrastructure error.
	KeepGoing bool
	// Screenshots captures the page of every failed case.
	Screenshots bool
}

// Session is the shared state of one scenario run: one browser session
// and one database handle. Sessions are never shared between scenarios
// that run at the same time.
type Session struct {
	Driver browser.Driver
	DB     *sutdb.DB
	Config Config
	Logger *zap.Logger
	Clock  Clock
}

// Close releases the browser and the database handle.
func (s *Session) Close() error {
	var errs []error
	if s.Driver != nil {
		errs = append(errs, s.Driver.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}
