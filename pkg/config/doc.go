// Package config loads bgflow's YAML configuration and watches it for changes.
//
// A file has five optional blocks:
//
//	log:
//	  level: debug
//	  console: true
//	scheduler:
//	  name: mailer
//	  failure_log_rate: 5
//	  failure_log_burst: 20
//	pool:
//	  enabled: true
//	  workers: 8
//	  queue_size: 256
//	producer:
//	  tick_interval: 100ms
//	  timezone: Europe/Berlin
//	metrics:
//	  enabled: true
//	  listen: ":9090"
//
// Unknown keys and malformed durations are errors. Watch reloads the file on
// change and only publishes versions that parse and validate.
package config
