package broker

// Publish submits a PUBLISH operation for topic carrying value.
func (e *Engine) Publish(topic, value string) {
	e.Submit(Event{Op: OpPublish, Topic: topic, Value: value})
}

// Subscribe submits a SUBSCRIBE operation binding sub to topic.
func (e *Engine) Subscribe(topic string, sub Subscriber) {
	e.Submit(Event{Op: OpSubscribe, Topic: topic, Sub: sub})
}

// Cancel submits a CANCEL operation unbinding sub from topic.
func (e *Engine) Cancel(topic string, sub Subscriber) {
	e.Submit(Event{Op: OpCancel, Topic: topic, Sub: sub})
}

// List submits a LIST operation and blocks for its reply. The reply
// channel is buffered so the dispatcher never blocks delivering it even if
// the caller has already given up.
func (e *Engine) List() []string {
	reply := make(chan []string, 1)
	e.Submit(Event{Op: OpList, Reply: reply})
	return <-reply
}
