// Package jobrun provides the execution pipeline a dispatched job instance
// goes through on a worker: a composable chain of logging, metrics,
// distributed locking, retry and timeout stages wrapped around the job body.
//
// jobrun is a library. The trigger loop that decides when a job is due, the
// persistence of job definitions and the hosting process are collaborators
// that plug in through narrow interfaces.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithLogger(logger),
//	    engine.WithLockProvider(redislock.New(client)),
//	)
//	err = eng.Register(
//	    job.NewDescriptor("send-report",
//	        job.WithTimeout(30*time.Second),
//	        job.WithRetryPolicy(job.DefaultRetryPolicy()),
//	    ),
//	    job.BodyFunc(sendReport),
//	)
//	out, inst, err := eng.Run(ctx, "send-report", nil)
//
// # Architecture
//
// Stages live in the middleware package and share one signature. The engine
// package assembles them in a fixed order:
//
//	Logging → Metrics → Lock → Retry → Timeout → body
//
// All instance IDs are prefix-qualified UUIDv7 values (see package id).
package jobrun
