package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Hammers the report endpoints the way a busy admin team and a dashboard
// embedding the fragment would.
func main() {
	baseURL := flag.String("base", "http://localhost:8080", "report service base URL")
	totalRequests := flag.Int("requests", 5000, "total number of requests")
	concurrency := flag.Int("concurrency", 50, "number of concurrent requests")
	flag.Parse()

	paths := []string{
		"/api/v1/report",
		"/embed/loggedin-users",
		"/admin/loggedin-users",
	}

	fmt.Printf("Starting load test: %d requests across %d endpoints on %s with concurrency %d\n",
		*totalRequests, len(paths), *baseURL, *concurrency)

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)

	var successCount int64
	var failCount int64
	var totalLatency int64

	startTime := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		sem <- struct{}{}

		target := *baseURL + paths[i%len(paths)]

		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()

			begin := time.Now()
			resp, err := client.Get(url)
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				return
			}
			// drain so the connection is reused
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			atomic.AddInt64(&totalLatency, int64(time.Since(begin)))

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
		}(target)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", *totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(*totalRequests)/duration.Seconds())
	if answered := successCount + failCount; answered > 0 {
		fmt.Printf("Avg Latency:    %v\n", time.Duration(totalLatency/answered))
	}
}
