package progress

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Reporter is the logging capability handed to an engine for one run. Each message
// goes to the structured logger and, with the current percentage, to the subscriber.
type Reporter struct {
	log  zerolog.Logger
	acct *Accountant
	sub  Callback
}

// NewReporter creates a reporter. sub may be nil.
func NewReporter(logger zerolog.Logger, acct *Accountant, sub Callback) *Reporter {
	if acct == nil {
		acct = NewAccountant(0)
	}
	return &Reporter{log: logger, acct: acct, sub: sub}
}

// Logger exposes the underlying logger for structured detail that should not reach
// the subscriber.
func (r *Reporter) Logger() *zerolog.Logger {
	return &r.log
}

// Accountant returns the run's accountant.
func (r *Reporter) Accountant() *Accountant {
	return r.acct
}

func (r *Reporter) Info(msg string) {
	r.log.Info().Msg(msg)
	r.forward(msg)
}

func (r *Reporter) Success(msg string) {
	r.log.Info().Str("outcome", "success").Msg(msg)
	r.forward(msg)
}

func (r *Reporter) Warning(msg string) {
	r.log.Warn().Msg(msg)
	r.forward(msg)
}

// Error logs msg with err attached and forwards "msg: err".
func (r *Reporter) Error(msg string, err error) {
	r.log.Error().Err(err).Msg(msg)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	r.forward("ERROR: " + msg)
}

// Status is a transient textual update, such as encoder elapsed time. It is logged
// at debug level.
func (r *Reporter) Status(msg string) {
	r.log.Debug().Msg(msg)
	r.forward(msg)
}

// Advance records one processed item and notifies the subscriber with msg.
func (r *Reporter) Advance(msg string) {
	r.acct.Advance()
	r.forward(msg)
}

// Complete emits 100% with msg.
func (r *Reporter) Complete(msg string) {
	r.acct.Complete()
	r.log.Info().Str("outcome", "success").Msg(msg)
	r.forward(msg)
}

func (r *Reporter) forward(msg string) {
	if r.sub == nil {
		return
	}
	r.sub(r.acct.Percent(), msg)
}
