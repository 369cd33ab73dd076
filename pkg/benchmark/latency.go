// Package benchmark measures per-operation latency and throughput of the
// transform pipeline stages.
package benchmark

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/teclabat/performance-go/pkg/buffers"
	"github.com/teclabat/performance-go/pkg/log"
	"github.com/teclabat/performance-go/pkg/transform"
)

// Results holds the results of a transform benchmark
type Results struct {
	MinLatency    time.Duration
	MaxLatency    time.Duration
	AvgLatency    time.Duration
	MedianLatency time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	OpsAttempted  int
	OpsDone       int
	TotalTime     time.Duration
	PayloadSize   int
	Transform     string
	Direction     Direction
}

// Direction specifies which side of the transform to benchmark
type Direction int

const (
	DirectionApply     Direction = iota // Forward transform only
	DirectionReverse                    // Inverse transform only
	DirectionRoundTrip                  // Apply followed by Reverse
)

func (d Direction) String() string {
	switch d {
	case DirectionApply:
		return "Apply"
	case DirectionReverse:
		return "Reverse"
	case DirectionRoundTrip:
		return "Round Trip"
	default:
		return "Unknown"
	}
}

// Options provides configuration for benchmarks
type Options struct {
	Transform   string
	Key         []byte
	Direction   Direction
	Iterations  int
	PayloadSize int
}

// DefaultOptions returns sensible defaults
func DefaultOptions() *Options {
	return &Options{
		Transform:   "xor",
		Key:         []byte("benchmark key material"),
		Direction:   DirectionRoundTrip,
		Iterations:  1000,
		PayloadSize: 1024,
	}
}

// Run measures the configured transform for the configured direction.
func Run(opts *Options) (*Results, error) {
	tr, err := transform.New(opts.Transform, opts.Key)
	if err != nil {
		return nil, fmt.Errorf("benchmark: creating transform %q: %w", opts.Transform, err)
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("benchmark: iterations must be positive, got %d", opts.Iterations)
	}
	if opts.PayloadSize <= 0 {
		return nil, fmt.Errorf("benchmark: payload size must be positive, got %d", opts.PayloadSize)
	}

	// Stage the payload through the shared pool when it fits
	var payload []byte
	if opts.PayloadSize <= buffers.DefaultBufferSize {
		buf := buffers.PayloadBufferPool.Get()
		defer buffers.PayloadBufferPool.Put(buf)
		payload = buf[:opts.PayloadSize]
	} else {
		payload = make([]byte, opts.PayloadSize)
	}
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	// Reverse-only runs need a pre-transformed input
	var transformed []byte
	if opts.Direction == DirectionReverse {
		transformed, err = tr.Apply(payload)
		if err != nil {
			return nil, fmt.Errorf("benchmark: preparing reverse input: %w", err)
		}
	}

	var latencies []time.Duration
	startTime := time.Now()

	for i := 0; i < opts.Iterations; i++ {
		iterStart := time.Now()

		switch opts.Direction {
		case DirectionApply:
			out, err := tr.Apply(payload)
			if err != nil {
				log.Printf("benchmark: Apply error: %v", err)
				continue
			}
			// Keep the compiler from optimizing the work away
			if len(out) == 0 && opts.PayloadSize > 0 {
				log.Printf("benchmark: verification failed: empty output")
				continue
			}
		case DirectionReverse:
			out, err := tr.Reverse(transformed)
			if err != nil {
				log.Printf("benchmark: Reverse error: %v", err)
				continue
			}
			if len(out) != opts.PayloadSize {
				log.Printf("benchmark: verification failed: got %d bytes, want %d", len(out), opts.PayloadSize)
				continue
			}
		case DirectionRoundTrip:
			out, err := tr.Apply(payload)
			if err != nil {
				log.Printf("benchmark: Apply error: %v", err)
				continue
			}
			restored, err := tr.Reverse(out)
			if err != nil {
				log.Printf("benchmark: Reverse error: %v", err)
				continue
			}
			if !bytes.Equal(restored, payload) {
				log.Printf("benchmark: verification failed: round trip mismatch")
				continue
			}
		default:
			return nil, fmt.Errorf("benchmark: unknown direction: %d", opts.Direction)
		}

		latencies = append(latencies, time.Since(iterStart))
	}

	totalTime := time.Since(startTime)

	results := calculateStats(latencies, opts.Iterations, totalTime)
	results.PayloadSize = opts.PayloadSize
	results.Transform = opts.Transform
	results.Direction = opts.Direction

	return results, nil
}

// RunAll benchmarks every registered transform with the given base options.
func RunAll(baseOpts *Options) ([]*Results, error) {
	var results []*Results

	for _, name := range transform.Names() {
		opts := *baseOpts // Copy options
		opts.Transform = name
		if !transform.NeedsKey(name) {
			opts.Key = nil
		}

		log.Printf("benchmark: running %s (%s)...", name, opts.Direction)
		result, err := Run(&opts)
		if err != nil {
			log.Printf("benchmark: error benchmarking %s: %v", name, err)
			continue
		}

		results = append(results, result)
		PrintResults(result)
	}

	return results, nil
}

// ThroughputMBps reports how many megabytes of payload the run pushed
// through per second.
func (r *Results) ThroughputMBps() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	processed := float64(r.OpsDone) * float64(r.PayloadSize)
	if r.Direction == DirectionRoundTrip {
		processed *= 2
	}
	return processed / (1024 * 1024) / r.TotalTime.Seconds()
}

// calculateStats calculates statistics from latency measurements
func calculateStats(latencies []time.Duration, iterations int, totalTime time.Duration) *Results {
	if len(latencies) == 0 {
		return &Results{
			OpsAttempted: iterations,
			OpsDone:      0,
			TotalTime:    totalTime,
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, latency := range latencies {
		sum += latency
	}

	min := latencies[0]
	max := latencies[len(latencies)-1]
	avg := sum / time.Duration(len(latencies))
	median := latencies[len(latencies)/2]

	p95 := latencies[(len(latencies)*95)/100]
	p99 := latencies[(len(latencies)*99)/100]

	return &Results{
		MinLatency:    min,
		MaxLatency:    max,
		AvgLatency:    avg,
		MedianLatency: median,
		P95Latency:    p95,
		P99Latency:    p99,
		OpsAttempted:  iterations,
		OpsDone:       len(latencies),
		TotalTime:     totalTime,
	}
}

// PrintResults prints the results of a transform benchmark
func PrintResults(results *Results) {
	fmt.Printf("=== Transform Benchmark: %s (%s) ===\n", results.Transform, results.Direction)
	fmt.Printf("Payload Size: %d bytes\n", results.PayloadSize)
	fmt.Printf("Ops Attempted: %d\n", results.OpsAttempted)
	fmt.Printf("Ops Completed: %d\n", results.OpsDone)

	if results.OpsAttempted > 0 {
		failPercent := 100.0 - (float64(results.OpsDone)/float64(results.OpsAttempted))*100.0
		fmt.Printf("Failed: %.2f%%\n", failPercent)
	}

	fmt.Printf("Total Time: %v\n", results.TotalTime)
	fmt.Printf("Throughput: %.2f MB/s\n", results.ThroughputMBps())
	fmt.Printf("Min Latency: %v\n", results.MinLatency)
	fmt.Printf("Avg Latency: %v\n", results.AvgLatency)
	fmt.Printf("Median Latency: %v\n", results.MedianLatency)
	fmt.Printf("95th Percentile: %v\n", results.P95Latency)
	fmt.Printf("99th Percentile: %v\n", results.P99Latency)
	fmt.Printf("Max Latency: %v\n", results.MaxLatency)
	fmt.Println("==========================================")
}

// SaveResultsToFile saves benchmark results to a CSV file
func SaveResultsToFile(results []*Results, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	f.WriteString("Transform,Direction,PayloadSize,OpsAttempted,OpsDone,MinLatency,AvgLatency,MedianLatency,P95Latency,P99Latency,MaxLatency,TotalTime,ThroughputMBps\n")

	for _, r := range results {
		f.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%.2f\n",
			r.Transform,
			r.Direction,
			r.PayloadSize,
			r.OpsAttempted,
			r.OpsDone,
			r.MinLatency.Nanoseconds(),
			r.AvgLatency.Nanoseconds(),
			r.MedianLatency.Nanoseconds(),
			r.P95Latency.Nanoseconds(),
			r.P99Latency.Nanoseconds(),
			r.MaxLatency.Nanoseconds(),
			r.TotalTime.Nanoseconds(),
			r.ThroughputMBps()))
	}

	return nil
}
