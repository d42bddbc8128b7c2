// Command tilewarm prefetches a rectangular region of one or more
// in-memory datasets into the shared tile cache, one delivery operation
// per source, running concurrently.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/gracefulearth/tilecache"
	"github.com/gracefulearth/tilecache/cachemgr"
	"github.com/gracefulearth/tilecache/memsource"
)

func main() {
	sources := flag.Int("sources", 4, "number of synthetic in-memory sources to warm concurrently")
	globalRows := flag.Int("rows", 2000, "global row count of each synthetic source")
	globalCols := flag.Int("cols", 2000, "global column count of each synthetic source")
	tileRows := flag.Int("tile-rows", 256, "tile row count")
	tileCols := flag.Int("tile-cols", 256, "tile column count")
	flag.Parse()

	if *sources <= 0 {
		fmt.Fprintln(os.Stderr, "must specify at least one source")
		os.Exit(1)
	}

	scheme := tilecache.NewTilingScheme(
		tilecache.Dims{Rows: *globalRows, Cols: *globalCols},
		tilecache.Dims{Rows: *tileRows, Cols: *tileCols},
	)

	datasets := make([]*memsource.Dataset, *sources)
	for i := range datasets {
		datasets[i] = memsource.New(scheme, tilecache.Float)
	}

	mgr := cachemgr.Default()

	group, ctx := errgroup.WithContext(context.Background())
	for i, ds := range datasets {
		i, ds := i, ds
		group.Go(func() error {
			delivery, err := mgr.RequestTiles(ctx, ds, tilecache.Dims{}, scheme.Dimensions(), nil)
			if err != nil {
				return fmt.Errorf("source %d: %w", i, err)
			}
			if delivery != nil {
				delivery.WaitUntilFinished()
				if err := delivery.LastError(); err != nil {
					return fmt.Errorf("source %d: %w", i, err)
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("warmed %d source(s), cache now holding %d bytes of %d\n", *sources, mgr.CacheSize(), mgr.CacheCapacity())
}
