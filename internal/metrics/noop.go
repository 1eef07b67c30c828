package metrics

// NoopMetrics discards every event
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a recorder for when metrics are disabled
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordDeviceCodeIssued(result string) {}
func (n *NoopMetrics) RecordDecision(outcome string)        {}
func (n *NoopMetrics) RecordDecisionError(code string)      {}
