/*
Package workers sizes and bounds the pool of concurrent transcodes.

# Overview

HandBrakeCLI spreads a single encode across every available core, so running
one process per CPU oversubscribes the machine. At the same time, strictly
serializing jobs means a two-hour screen recording blocks every short clip
dropped onto the desktop after it. ForTranscode picks a middle ground: one
slot per four CPUs with a floor of MinTranscodeSlots.

The calculation uses GOMAXPROCS rather than runtime.NumCPU so it respects
container CPU limits when the agent runs somewhere other than a laptop.

# Basic Usage

	slots := workers.NewSlots(workers.ForTranscode(4))

	if err := slots.Acquire(ctx); err != nil {
		return err
	}
	defer slots.Release()

# Environment Variable Override

COMPRESS_WORKERS overrides the computed count. ForTranscode still applies the
floor of two so files are never globally serialized:

	COMPRESS_WORKERS=3 desktop-video-compress
*/
package workers
