package broker

// Metrics is the dispatcher's view of observability, satisfied by
// internal/monitoring without monitoring importing this package. Methods
// must be cheap and non-blocking — they run on the dispatcher goroutine.
type Metrics interface {
	ConnectionRegistered()
	ConnectionClosed()
	TopicDiscovered(total int)
	Published(topic string, fanout int)
	Subscribed(topic string, subscriberCount int)
	Cancelled(topic string, subscriberCount int)
	Dropped(reason string)
}

// NopMetrics returns a Metrics implementation that discards every
// observation, for callers (tests, or a transport.Server wired without a
// monitoring backend) that have none to provide.
func NopMetrics() Metrics { return noopMetrics{} }

// noopMetrics satisfies Metrics when a caller has none to wire in, such as
// in engine tests.
type noopMetrics struct{}

func (noopMetrics) ConnectionRegistered()  {}
func (noopMetrics) ConnectionClosed()      {}
func (noopMetrics) TopicDiscovered(int)    {}
func (noopMetrics) Published(string, int)  {}
func (noopMetrics) Subscribed(string, int) {}
func (noopMetrics) Cancelled(string, int)  {}
func (noopMetrics) Dropped(string)         {}
