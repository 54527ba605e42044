// Package worker implements the template worker lifecycle and Redis Streams integration.
//
// The worker consumes render requests from a Redis Stream, renders the requested
// template for every selected inventory host and publishes the per-host results.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	inv, _ := inventory.LoadFile(cfg.InventoryFile)
//	evaluator, _ := cel.NewEvaluator()
//
//	worker := worker.NewWorker(cfg, redisClient, inv, evaluator, logger)
//	if err := worker.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Stop()
//
// A request is a JSON document in the "data" field of a stream entry:
//
//	{"request_id": "r-1", "template": "ntp.tmpl", "path": "ios", "filter": "host.platform == 'ios'", "data": {"ntp": "10.0.0.1"}}
//
// path is relative to TEMPLATE_DIR. Results are published to RESULT_STREAM and
// request-level failures to RESULT_STREAM + ".errors".
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8083, redisClient, inv, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
