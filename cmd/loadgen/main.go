// Package main - loadgen
// Opens many websocket clients against a running factory-server and
// spams player actions, measuring ack round trips.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/network"
)

// Config for the load generator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Output         string
}

// Stats tracks performance metrics
type Stats struct {
	Sent        int64
	Acked       int64
	Rejected    int64
	RateLimited int64
	Events      int64
	Errors      int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *Stats) observe(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var craftable = []item.ID{"iron-gear-wheel", "copper-cable", "wooden-chest", "stone-furnace"}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	output := flag.String("out", "loadgen_results.json", "Results file, empty to skip")
	flag.Parse()

	cfg := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Output:         *output,
	}

	fmt.Println("=========================================")
	fmt.Println("factory-server load generator")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", cfg.ServerURL)
	fmt.Printf("Clients:  %d\n", cfg.NumClients)
	fmt.Printf("Interval: %v\n", cfg.ActionInterval)
	fmt.Printf("Duration: %v\n", cfg.TestDuration)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := run(ctx, cfg)
	printResults(stats, cfg)
}

func run(ctx context.Context, cfg Config) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup

	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id, cfg, stats)
		}(i)
		// Stagger connects
		time.Sleep(10 * time.Millisecond)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%d acked=%d rejected=%d limited=%d errors=%d\n",
					atomic.LoadInt64(&stats.Sent), atomic.LoadInt64(&stats.Acked),
					atomic.LoadInt64(&stats.Rejected), atomic.LoadInt64(&stats.RateLimited),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, id int, cfg Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		log.Printf("client %d: connect: %v", id, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	var pending sync.Map // request id -> send time

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		for {
			var msg inbound
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case network.MessageAck:
				var ack network.Ack
				if err := json.Unmarshal(msg.Data, &ack); err != nil {
					atomic.AddInt64(&stats.Errors, 1)
					continue
				}
				if sent, ok := pending.LoadAndDelete(ack.RequestID); ok {
					stats.observe(time.Since(sent.(time.Time)))
				}
				switch {
				case ack.OK:
					atomic.AddInt64(&stats.Acked, 1)
				case ack.Error == network.ErrRateLimited.Error():
					atomic.AddInt64(&stats.RateLimited, 1)
				default:
					atomic.AddInt64(&stats.Rejected, 1)
				}
			case network.MessageEvent:
				atomic.AddInt64(&stats.Events, 1)
			}
		}
	}()

	ticker := time.NewTicker(cfg.ActionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			action, err := randomAction()
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			pending.Store(action.RequestID, time.Now())
			if err := conn.WriteJSON(action); err != nil {
				if ctx.Err() == nil {
					atomic.AddInt64(&stats.Errors, 1)
				}
				return
			}
			atomic.AddInt64(&stats.Sent, 1)
		}
	}
}

func randomAction() (network.PlayerAction, error) {
	var (
		kind    string
		payload interface{}
	)
	switch n := rand.Intn(10); {
	case n < 6:
		kind = network.ActionAddCraftingTask
		payload = network.CraftRequest{ItemID: craftable[rand.Intn(len(craftable))], Quantity: 1 + rand.Intn(3)}
	case n < 8:
		kind = network.ActionAddCraftingChain
		payload = network.ChainRequest{ItemID: "electronic-circuit", Quantity: 1}
	default:
		kind = network.ActionQueueResearch
		payload = network.ResearchRequest{TechID: "automation"}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return network.PlayerAction{}, err
	}
	return network.PlayerAction{Type: kind, RequestID: uuid.NewString(), Payload: raw}, nil
}

func printResults(stats *Stats, cfg Config) {
	sent := atomic.LoadInt64(&stats.Sent)
	acked := atomic.LoadInt64(&stats.Acked)
	rejected := atomic.LoadInt64(&stats.Rejected)
	limited := atomic.LoadInt64(&stats.RateLimited)
	errs := atomic.LoadInt64(&stats.Errors)
	throughput := float64(sent) / cfg.TestDuration.Seconds()

	fmt.Println("\n=========================================")
	fmt.Println("RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Sent:         %d\n", sent)
	fmt.Printf("Acked:        %d\n", acked)
	fmt.Printf("Rejected:     %d\n", rejected)
	fmt.Printf("Rate limited: %d\n", limited)
	fmt.Printf("Events seen:  %d\n", atomic.LoadInt64(&stats.Events))
	fmt.Printf("Errors:       %d\n", errs)
	fmt.Printf("Throughput:   %.2f msg/sec\n", throughput)

	stats.mu.Lock()
	lat := append([]time.Duration(nil), stats.latencies...)
	stats.mu.Unlock()
	results := map[string]interface{}{
		"sent":               sent,
		"acked":              acked,
		"rejected":           rejected,
		"rate_limited":       limited,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  cfg.NumClients,
			"interval": cfg.ActionInterval.String(),
			"duration": cfg.TestDuration.String(),
		},
	}
	if len(lat) > 0 {
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		p := func(q float64) time.Duration { return lat[int(q*float64(len(lat)-1))] }
		fmt.Printf("\nAck latency:\n  p50: %v\n  p95: %v\n  p99: %v\n  max: %v\n", p(0.5), p(0.95), p(0.99), lat[len(lat)-1])
		results["latency_p50_ms"] = p(0.5).Seconds() * 1000
		results["latency_p99_ms"] = p(0.99).Seconds() * 1000
	}

	if cfg.Output == "" {
		return
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("encode results: %v", err)
		return
	}
	if err := os.WriteFile(cfg.Output, data, 0644); err != nil {
		log.Printf("write results: %v", err)
		return
	}
	fmt.Printf("\nResults saved to %s\n", cfg.Output)
}
