// Package devtools serves a live inspector for a running reactive graph.
//
// The inspector consumes the engine's diagnostic record stream: Server
// implements synapse.Sink, fanning every record out to connected WebSocket
// clients and, when a record path is configured, to an on-disk flight
// recorder. Attach it to the engine with:
//
//	cfg, _ := devtools.ConfigFromEnv()
//	srv, _ := devtools.NewServer(cfg, nil)
//	synapse.SetDebugMode(true)
//	synapse.SetSink(srv)
//	srv.Start()
//	defer srv.Shutdown(context.Background())
//
// Endpoints:
//
//	GET /healthz      liveness probe
//	GET /api/stream   WebSocket feed of diagnostic records (JSON)
//	GET /api/records  recorded history, ?from=N&limit=N
//	GET /metrics      Prometheus metrics
package devtools
