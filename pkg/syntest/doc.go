// Package syntest provides testing helpers for reactive code.
//
// The syntest package reduces boilerplate when asserting on effect
// execution order, captured diagnostic records, and asynchronous resource
// state.
//
// # Execution Order
//
// Effects run synchronously, so a shared log captures their order:
//
//	log := syntest.NewRunLog()
//	count := synapse.NewSignal(0)
//	synapse.CreateEffect(func() synapse.Cleanup {
//	    log.Addf("count=%d", count.Get())
//	    return nil
//	})
//	count.Set(1)
//	log.Expect(t, "count=0", "count=1")
//
// # Capturing Diagnostic Records
//
// Collect switches debug mode on for the duration of a test and returns
// everything the engine emitted while fn ran:
//
//	records := syntest.Collect(t, func() {
//	    s := synapse.NewSignal(1)
//	    s.Set(2)
//	})
//	syntest.ExpectOps(t, records, synapse.OpWrite)
//
// # Asynchronous Resources
//
// AwaitResource blocks until a resource settles:
//
//	users := resource.New(listUsers)
//	data, err := syntest.AwaitResource(t, users, 2*time.Second)
package syntest
