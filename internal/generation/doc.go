// Package generation defines the boundary between the pipeline and the
// remote text generation service (LLM). Stages depend only on the Client
// interface declared here; provider adapters live under internal/platform.
//
// Every call made by a stage goes through RetryingClient, which bounds each
// attempt with a timeout, retries transient failures with jittered waits and
// reports exhaustion as a *RemoteError.
package generation
