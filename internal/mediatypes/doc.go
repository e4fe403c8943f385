// Package mediatypes defines the video file vocabulary shared by the filter,
// the transcoder and the status surface: the recognized extension set, the
// "_compressed" output marker and the output naming rule.
package mediatypes
