// Package transcoder runs the external HandBrakeCLI binary against a settled
// source file and reports what happened.
//
// It supports:
//   - A table of named presets ("4K", "1080p"), each a fixed argument bundle
//   - Locating the HandBrakeCLI executable by probing known install paths
//   - Synchronous invocation with exit status, elapsed time and a stderr tail
//   - Size statistics and cleanup of partial output on failure
//
// Active jobs are never killed: shutdown waits for them to finish.
package transcoder
