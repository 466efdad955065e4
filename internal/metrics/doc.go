// Package metrics records task and run observations.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay
// optional. The dev server exposes a PrometheusRecorder's registry at
// /__assetpipe/metrics.
package metrics
