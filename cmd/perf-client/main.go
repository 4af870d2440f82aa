package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// PerfResult gathers aggregated metrics for the test run.
// Atomic counters are used to avoid lock-contention on hot paths.
// LatencySum & P95Latency are in nanoseconds.
//
// P95Latency is maintained via a lightweight reservoir sampler.
type PerfResult struct {
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	ValidCount    int64
	UsedCount     int64
	LatencySum    int64
	P95Latency    int64
}

const (
	fixedWorkers    = 50
	fixedRPSTarget  = 700
	defaultTimeout  = 30 * time.Second
	fixedTickets    = 5000
	attemptsPerCode = 4
	baseURL         = "http://localhost:8080"
)

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status"`
}

func main() {
	workers := fixedWorkers
	rps := fixedRPSTarget
	tickets := fixedTickets

	// ─── HTTP Client & Transport ─────────────────────────────────
	transport := &http.Transport{
		MaxIdleConns:        workers * 4,
		MaxIdleConnsPerHost: workers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}

	// ─── Seed tickets ────────────────────────────────────────────
	codes, err := seedTickets(httpClient, tickets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed tickets: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d tickets\n", len(codes))

	// Each code is attempted several times so concurrent duplicate scans
	// race against the same row.
	work := make(chan string, len(codes)*attemptsPerCode)
	for i := 0; i < attemptsPerCode; i++ {
		for _, code := range codes {
			work <- code
		}
	}
	close(work)

	// ─── Banner ──────────────────────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("ticket verify load test")
	fmt.Println("==========================================")
	fmt.Printf("tickets        : %d\n", tickets)
	fmt.Printf("attempts/code  : %d\n", attemptsPerCode)
	fmt.Printf("target RPS     : %d\n", rps)
	fmt.Printf("workers        : %d\n", workers)
	fmt.Println("==========================================")

	// ─── Rate limiter & context ─────────────────────────────────
	burst := rps / workers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup

	// latencyChan collects latencies for P95 estimation.
	latencyChan := make(chan time.Duration, 4096)
	go trackP95(latencyChan, &result)

	// ─── Workers ────────────────────────────────────────────────
	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range work {
				if err := limiter.Wait(ctx); err != nil { // context cancelled → exit
					return
				}
				doRequest(httpClient, code, &result, latencyChan)
			}
		}()
	}

	wg.Wait()
	close(latencyChan)
	totalDur := time.Since(start)

	// ─── Report ─────────────────────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("load test results")
	fmt.Println("==========================================")
	fmt.Printf("duration           : %.2fs\n", totalDur.Seconds())
	fmt.Printf("total requests     : %d\n", result.TotalRequests)
	fmt.Printf("successful requests: %d\n", result.SuccessCount)
	fmt.Printf("failed requests    : %d\n", result.ErrorCount)
	fmt.Printf("VALID outcomes     : %d\n", result.ValidCount)
	fmt.Printf("ALREADY_USED       : %d\n", result.UsedCount)

	actualRPS := float64(result.SuccessCount) / totalDur.Seconds()
	successRate := float64(result.SuccessCount) / float64(result.TotalRequests) * 100

	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}

	fmt.Printf("actual RPS         : %.2f\n", actualRPS)
	fmt.Printf("success rate       : %.2f%%\n", successRate)
	fmt.Printf("avg latency        : %v\n", avgLatency)
	fmt.Printf("P95 latency        : %v\n", time.Duration(result.P95Latency))
	fmt.Println("==========================================")

	// ─── Data Consistency Check ─────────────────────────────────
	// Every code must win the redemption exactly once no matter how many
	// concurrent attempts it received.
	fmt.Println("==========================================")
	fmt.Println("exactly-once redemption check")
	fmt.Println("==========================================")
	if result.ValidCount != int64(len(codes)) {
		fmt.Printf("FAIL: %d tickets, %d VALID outcomes (diff=%d)\n",
			len(codes), result.ValidCount, result.ValidCount-int64(len(codes)))
		os.Exit(1)
	}
	fmt.Printf("OK: %d tickets, %d VALID outcomes, %d duplicate scans rejected\n",
		len(codes), result.ValidCount, result.UsedCount)
	fmt.Println("==========================================")
}

// seedTickets issues the given number of tickets and returns their codes
func seedTickets(httpClient *http.Client, count int) ([]string, error) {
	validUntil := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	codes := make([]string, 0, count)

	for i := 0; i < count; i++ {
		code := fmt.Sprintf("PMF-LOAD-%06d", i)
		payload := map[string]interface{}{
			"code":         code,
			"customerName": fmt.Sprintf("Load Tester %d", i),
			"email":        "",
			"amount":       "5000",
			"validUntil":   validUntil,
			"eventDetails": map[string]string{"name": "Load Test Event"},
		}
		body, _ := json.Marshal(payload)

		resp, err := httpClient.Post(baseURL+"/api/tickets", "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("seed request failed: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("seed request returned status %d", resp.StatusCode)
		}
		codes = append(codes, code)
	}

	return codes, nil
}

// doRequest performs a single verify call and collects metrics.
func doRequest(httpClient *http.Client, code string, result *PerfResult, latencyChan chan<- time.Duration) {
	body, _ := json.Marshal(map[string]string{"code": code})

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	resp, err := httpClient.Post(baseURL+"/api/tickets/verify", "application/json", bytes.NewReader(body))
	latency := time.Since(start)

	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	defer resp.Body.Close()

	var vr verifyResponse
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&vr) != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}

	atomic.AddInt64(&result.SuccessCount, 1)
	atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
	switch vr.Status {
	case "VALID":
		atomic.AddInt64(&result.ValidCount, 1)
	case "ALREADY_USED":
		atomic.AddInt64(&result.UsedCount, 1)
	}

	select {
	case latencyChan <- latency:
	default:
	}
}

// trackP95 maintains a best-effort rolling P95 latency estimation.
func trackP95(latencies <-chan time.Duration, result *PerfResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else {
			// Replace random element (simple reservoir sampling)
			if idx := time.Now().UnixNano() % int64(size); idx < int64(size/10) {
				buf[idx] = lat.Nanoseconds()
			}
		}

		// Update P95 periodically
		if len(buf) >= 100 && len(buf)%100 == 0 {
			copyBuf := make([]int64, len(buf))
			copy(copyBuf, buf)
			quickSort(copyBuf)
			p95Index := int(float64(len(copyBuf)) * 0.95)
			if p95Index >= len(copyBuf) {
				p95Index = len(copyBuf) - 1
			}
			atomic.StoreInt64(&result.P95Latency, copyBuf[p95Index])
		}
	}
}

// quickSort sorts the array in ascending order
func quickSort(arr []int64) {
	if len(arr) < 2 {
		return
	}

	left, right := 0, len(arr)-1
	pivot := len(arr) / 2

	arr[pivot], arr[right] = arr[right], arr[pivot]

	for i := range arr {
		if arr[i] < arr[right] {
			arr[left], arr[i] = arr[i], arr[left]
			left++
		}
	}

	arr[left], arr[right] = arr[right], arr[left]

	quickSort(arr[:left])
	quickSort(arr[left+1:])
}
