// Command clicker fires concurrent add/remove actions at a running transfer
// map server, the way an impatient user double-clicks the map buttons. With a
// shared idempotency key exactly one click should mutate the store.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	// DefaultURL is the server the actions are sent to
	DefaultURL = "http://localhost:8080"

	// DefaultConcurrency is the number of concurrent clicks
	DefaultConcurrency = 50
)

// Options holds the clicker configuration
type Options struct {
	URL        string
	Action     string
	Key        string
	RandomKey  bool
	Concurrent int
	Timeout    time.Duration
}

// Results tracks the outcomes of all clicks
type Results struct {
	SuccessCount  int32
	CacheHitCount int32
	ConflictCount int32
	EmptyCount    int32
	ErrorCount    int32
	Duration      time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "clicker",
		Short: "Send concurrent add/remove actions to a transfer map server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Action != "add" && opts.Action != "remove" {
				return fmt.Errorf("unknown action %q: want add or remove", opts.Action)
			}
			if opts.Concurrent < 1 {
				return fmt.Errorf("concurrent must be at least 1")
			}
			if opts.RandomKey {
				opts.Key = uuid.NewString()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Endpoint:       %s\n", actionURL(opts))
			fmt.Fprintf(out, "Idempotency:    %q\n", opts.Key)
			fmt.Fprintf(out, "Concurrency:    %d clicks\n", opts.Concurrent)

			results := run(&http.Client{Timeout: opts.Timeout}, opts)
			printResults(cmd, results, opts)
			if opts.Key != "" && !passed(results, opts.Concurrent) {
				return fmt.Errorf("clicks were not deduplicated")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", DefaultURL, "server base URL")
	f.StringVar(&opts.Action, "action", "add", "action to trigger: add or remove")
	f.StringVar(&opts.Key, "key", "clicker-key", "idempotency key shared by every click; empty sends none")
	f.BoolVar(&opts.RandomKey, "random-key", false, "use a fresh random idempotency key")
	f.IntVar(&opts.Concurrent, "concurrent", DefaultConcurrency, "number of concurrent clicks")
	f.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	return cmd
}

func actionURL(opts Options) string {
	return opts.URL + "/actions/" + opts.Action
}

// run executes concurrent clicks and returns aggregated results
func run(client *http.Client, opts Options) Results {
	var (
		results Results
		wg      sync.WaitGroup
		start   = time.Now()
	)

	for i := 0; i < opts.Concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			click(client, opts, &results)
		}()
	}

	wg.Wait()
	results.Duration = time.Since(start)
	return results
}

// click sends a single action and classifies the response
func click(client *http.Client, opts Options, results *Results) {
	req, err := http.NewRequest(http.MethodPost, actionURL(opts), nil)
	if err != nil {
		atomic.AddInt32(&results.ErrorCount, 1)
		return
	}
	if opts.Key != "" {
		req.Header.Set("Idempotency-Key", opts.Key)
	}

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt32(&results.ErrorCount, 1)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.Header.Get("X-Idempotency-Hit") == "true":
		atomic.AddInt32(&results.CacheHitCount, 1)
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		atomic.AddInt32(&results.SuccessCount, 1)
	case resp.StatusCode == http.StatusConflict:
		// The server answers 409 both for a held idempotency lock and for
		// removing from an empty store; only the first is a deduplicated click.
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error == "empty" {
			atomic.AddInt32(&results.EmptyCount, 1)
			return
		}
		atomic.AddInt32(&results.ConflictCount, 1)
	default:
		atomic.AddInt32(&results.ErrorCount, 1)
	}
}

// passed reports whether exactly one click was applied and every other was deduplicated.
func passed(results Results, total int) bool {
	duplicates := results.CacheHitCount + results.ConflictCount
	return results.SuccessCount == 1 && duplicates == int32(total)-1 && results.ErrorCount == 0
}

func printResults(cmd *cobra.Command, results Results, opts Options) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Duration:                %v\n", results.Duration)
	fmt.Fprintf(out, "[APPLIED]  Successful:   %d\n", results.SuccessCount)
	fmt.Fprintf(out, "[CACHED]   Replayed:     %d\n", results.CacheHitCount)
	fmt.Fprintf(out, "[BLOCKED]  Conflicts:    %d\n", results.ConflictCount)
	fmt.Fprintf(out, "[EMPTY]    Empty store:  %d\n", results.EmptyCount)
	fmt.Fprintf(out, "[ERROR]    Errors:       %d\n", results.ErrorCount)

	if opts.Key == "" {
		return
	}
	if passed(results, opts.Concurrent) {
		fmt.Fprintln(out, "PASSED: exactly one click was applied")
	} else {
		fmt.Fprintln(out, "FAILED: clicks were not deduplicated")
	}
}
