// Package jobs accepts conversion requests, records them, and runs them
// either in-process or through a Redis-backed asynq queue.
//
// The flow for a submitted request is:
//
//	Manager.Submit -> Store.CreateJob -> Dispatcher.Dispatch
//	    -> Runner.Run -> converter.Convert
//	    -> events (progress..., result) -> Recorder -> Store + Hub
//
// With the queue backend the Runner lives in cmd/worker and publishes to
// Redis; the API process bridges those events back into its Recorder.
package jobs
