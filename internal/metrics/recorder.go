// Package metrics records link and presence activity.
package metrics

// Activity update kinds.
const (
	KindSet   = "set"
	KindClear = "clear"
)

// Recorder defines the interface for recording presence metrics.
type Recorder interface {
	// ObserveLinkStatus records whether a Ready link is current.
	ObserveLinkStatus(up bool)
	// ObserveConnectAttempt records the outcome of one Connect call.
	ObserveConnectAttempt(success bool)
	// IncLinkLost counts links torn down after a failed send.
	IncLinkLost()
	// ObserveActivityUpdate records one SET_ACTIVITY exchange of the given kind.
	ObserveActivityUpdate(kind string, success bool)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a recorder that discards everything.
func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveLinkStatus(bool)             {}
func (NoopRecorder) ObserveConnectAttempt(bool)         {}
func (NoopRecorder) IncLinkLost()                       {}
func (NoopRecorder) ObserveActivityUpdate(string, bool) {}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
