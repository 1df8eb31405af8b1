package synapse

// Watch runs callback whenever a signal read by deps changes. The deps
// function executes under tracking on every pass and decides the watched
// set; the callback executes untracked, so its own reads never widen the
// subscription. The initial pass only establishes dependencies; the
// callback first fires on the first change after creation.
//
//	w := synapse.Watch(func() { _ = status.Get() }, func() {
//	    log.Println("status changed to", status.Peek())
//	})
//	defer w.Dispose()
func Watch(deps func(), callback func(), opts ...EffectOption) *Effect {
	first := true
	return CreateEffect(func() Cleanup {
		deps()
		if first {
			first = false
			return nil
		}
		Untracked(callback)
		return nil
	}, opts...)
}
