// Command mapbatchdemo wires an in-memory upstream and a small CPU
// transform through a mapbatch.Operator and drains it to completion,
// the way the teacher's wordcount example exercises a constructed
// pipeline end to end.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/lostluck/mapbatch"
	"golang.org/x/sync/errgroup"
)

// rangeUpstream yields the integers [0, n) as single-component int64 records.
type rangeUpstream struct {
	n   int64
	cur int64
}

func (u *rangeUpstream) Next(ctx context.Context) (mapbatch.Record, bool, error) {
	if u.cur >= u.n {
		return nil, true, nil
	}
	v := u.cur
	u.cur++
	return mapbatch.Record{{Kind: mapbatch.KindInt64, Shape: mapbatch.Shape{}, Data: []int64{v}}}, false, nil
}

// squareAndString doubles as the demo's transform: it squares the input and
// also emits its decimal rendering, exercising a two-component result.
var squareAndString = mapbatch.TransformFunc(func(ctx context.Context, rec mapbatch.Record) (mapbatch.Result, error) {
	x := rec[0].Data.([]int64)[0]
	sq := x * x
	return mapbatch.Result{
		{Kind: mapbatch.KindInt64, Shape: mapbatch.Shape{}, Data: []int64{sq}},
		{Kind: mapbatch.KindString, Shape: mapbatch.Shape{}, Data: []string{fmt.Sprintf("%d", sq)}},
	}, nil
})

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	mapbatch.SetLogLevel(levelFromEnv())

	op, status := mapbatch.NewOperator(
		&rangeUpstream{n: 23},
		squareAndString,
		mapbatch.GoRunner{},
		mapbatch.BatchSize(4),
		mapbatch.Parallelism(8),
		mapbatch.DropRemainder(false),
	)
	if !status.Ok() {
		return fmt.Errorf("mapbatchdemo: %v", status)
	}
	defer op.Close(ctx)

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan mapbatch.Batch)

	g.Go(func() error {
		defer close(batches)
		for {
			batch, eos, status := op.NextBatch(ctx)
			if !status.Ok() {
				return fmt.Errorf("mapbatchdemo: %v", status)
			}
			if eos {
				return nil
			}
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for batch := range batches {
			ints := batch[0].Data.([]int64)
			strs := batch[1].Data.([]string)
			fmt.Printf("batch: ints=%v strings=%v\n", ints, strs)
		}
		return nil
	})

	return g.Wait()
}

func levelFromEnv() slog.Level {
	if os.Getenv("MAPBATCH_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
