// Profiling:
// go build ./profile/query
// go tool pprof -http=":8000" -nodefraction=0.001 ./query mem.pprof

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
	entities := 50_000
	iters := 2_000

	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	start := time.Now()
	run(entities, iters)
	elapsed := time.Since(start)
	p.Stop()

	fmt.Printf("%s entities, %s query iterations in %v\n",
		humanize.Comma(int64(entities)), humanize.Comma(int64(iters)),
		elapsed.Round(time.Millisecond))
}

func run(numEntities, iters int) {
	cfg := quarry.DefaultConfig()
	cfg.Logger = quarry.NewLoggerTo(io.Discard, io.Discard)
	world, err := quarry.Factory.NewWorld(quarry.Factory.NewRegistry(), cfg)
	if err != nil {
		panic(err)
	}
	defer world.Shutdown()

	if _, err := world.NewEntities(numEntities*9/10, quarry.PositionComponent); err != nil {
		panic(err)
	}
	if _, err := world.NewEntities(numEntities/10,
		quarry.PositionComponent, quarry.VelocityComponent); err != nil {
		panic(err)
	}

	node := quarry.Factory.NewQuery().And(
		quarry.PositionComponent, quarry.VelocityComponent)
	cursor := quarry.Factory.NewCursor(node, world)

	for i := 0; i < iters; i++ {
		for cursor.Next() {
			pos := quarry.PositionComponent.GetFromCursor(cursor)
			vel := quarry.VelocityComponent.GetFromCursor(cursor)
			pos.X += vel.X
			pos.Y += vel.Y
		}
	}
}
