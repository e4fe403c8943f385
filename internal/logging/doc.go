// Package logging provides a simple leveled logging interface for the
// desktop video compressor.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (filter decisions, settlement samples)
//   - INFO: Lifecycle transitions, job start and end
//   - WARN: Warning conditions (settlement timeouts, disposal problems)
//   - ERROR: Error conditions (transcode failures)
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the DEBUG or LOG_LEVEL environment variables.
// Lines go to stderr and, once SetOutputFile is called, are also appended to
// the configured log file so the history survives restarts of the agent.
package logging
