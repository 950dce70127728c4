package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
	"github.com/AbelMP17/OnlyNadesV2/view"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to file")
	heapprofile = flag.String("heapprofile", "", "write heap profile to file")
	numRecords  = flag.Int("records", 100000, "number of records to generate")
	bucketSize  = flag.Float64("bucket", cluster.DefaultBucketSize, "bucket size to profile")
	testall     = flag.Bool("testall", false, "test all configurations")
)

type result struct {
	build    time.Duration
	near     time.Duration
	render   time.Duration
	clusters int
	allocMB  float64
	gcRuns   uint32
}

// profile times one clustering pass, a focus lookup and a render of the
// largest cluster expanded.
func profile(records []cluster.Record, bucket float64) result {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	start := time.Now()
	clusters := cluster.Build(records, bucket)
	build := time.Since(start)

	start = time.Now()
	cluster.FindNear(records, cluster.Point{X: 50, Y: 50}, cluster.DefaultNearThreshold)
	near := time.Since(start)

	opts := view.DefaultOptions()
	opts.BucketSize = bucket
	engine := view.NewEngine(opts, view.Callbacks{}, coords.Fixed{Width: 1024, Height: 1024})
	engine.SetInput(view.Input{Records: records})
	largest := ""
	for i, size := 0, 0; i < len(clusters); i++ {
		if clusters[i].Count() > size {
			largest, size = clusters[i].Key, clusters[i].Count()
		}
	}
	start = time.Now()
	engine.ClickCluster(largest)
	engine.Render()
	render := time.Since(start)

	runtime.ReadMemStats(&after)
	return result{
		build:    build,
		near:     near,
		render:   render,
		clusters: len(clusters),
		allocMB:  float64(after.TotalAlloc-before.TotalAlloc) / 1024 / 1024,
		gcRuns:   after.NumGC - before.NumGC,
	}
}

func runSingleProfile(n int, bucket float64) {
	fmt.Printf("Profiling with %d records at bucket size %.2f\n", n, bucket)
	records := cluster.GenerateTestRecords(n, 42)

	r := profile(records, bucket)
	fmt.Printf("Clustering completed in %v (%d clusters)\n", r.build, r.clusters)
	fmt.Printf("Focus lookup completed in %v\n", r.near)
	fmt.Printf("Expanded render completed in %v\n", r.render)
	fmt.Printf("Memory allocated: %.2f MB\n", r.allocMB)
}

func runProfileBattery() {
	counts := []int{1000, 10000, 50000, 100000}
	buckets := []float64{0.5, 1, 2, 5, 10}

	fmt.Println("Running comprehensive profile battery...")
	fmt.Println("=======================================")
	fmt.Printf("%-10s | %-8s | %-9s | %-14s | %-14s | %-14s | %-11s | %-7s\n",
		"Records", "Bucket", "Clusters", "Build", "Near", "Render", "Memory (MB)", "GC Runs")
	fmt.Printf("%s\n", "------------------------------------------------------------------------------------------------------")

	for _, n := range counts {
		records := cluster.GenerateTestRecords(n, 42)
		for _, bucket := range buckets {
			r := profile(records, bucket)
			fmt.Printf("%-10d | %-8.2f | %-9d | %-14s | %-14s | %-14s | %-11.2f | %-7d\n",
				n, bucket, r.clusters, r.build, r.near, r.render, r.allocMB, r.gcRuns)
		}
		fmt.Printf("%s\n", "------------------------------------------------------------------------------------------------------")
	}
}

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	if *testall {
		runProfileBattery()
	} else {
		runSingleProfile(*numRecords, *bucketSize)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}

	if *heapprofile != "" {
		f, err := os.Create(*heapprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create heap profile: %v\n", err)
			return
		}
		defer f.Close()

		if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write heap profile: %v\n", err)
		}
	}
}
