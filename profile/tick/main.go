// Profiling:
// go build ./profile/tick
// go tool pprof -http=":8000" -nodefraction=0.001 ./tick cpu.pprof

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/profile"

	"github.com/voxelforge/quarry"
)

func main() {
	entities := 100_000
	chunks := 256
	ticks := 2_000

	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	elapsed := run(entities, chunks, ticks)
	p.Stop()

	perTick := elapsed / time.Duration(ticks)
	fmt.Printf("%s entities over %s chunks, %s ticks in %v (%v/tick)\n",
		humanize.Comma(int64(entities)), humanize.Comma(int64(chunks)),
		humanize.Comma(int64(ticks)), elapsed.Round(time.Millisecond), perTick)
}

func run(numEntities, numChunks, ticks int) time.Duration {
	cfg := quarry.DefaultConfig()
	cfg.Logger = quarry.NewLoggerTo(io.Discard, io.Discard)
	sched, err := quarry.Factory.NewScheduler(cfg)
	if err != nil {
		panic(err)
	}
	defer sched.Shutdown()

	// One dependent entity per sixteenth chunk keeps a sequential tail in
	// the profile alongside the parallel batches.
	for i := 0; i < numEntities; i++ {
		chunk := quarry.ChunkPos{X: int32(i % numChunks)}
		flags := quarry.DefaultFlags()
		if i%numChunks == 0 && (i/numChunks)%16 == 0 {
			flags.WritesWorld = true
		}
		sched.RegisterEntity(quarry.EntityID(i+1), chunk, flags)
	}

	work := make([]float64, numEntities)
	start := time.Now()
	for i := 0; i < ticks; i++ {
		sched.ParallelTick(1.0/60.0, func(id quarry.EntityID, dt float64) {
			work[id-1] += dt
		})
	}
	return time.Since(start)
}
