package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/cache"
	httpserver "github.com/jarvis-assistant/jarvis-back/internal/http"
	"github.com/jarvis-assistant/jarvis-back/internal/http/handlers"
	"github.com/jarvis-assistant/jarvis-back/internal/queue"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/jarvis-assistant/jarvis-back/internal/service"
	"github.com/jarvis-assistant/jarvis-back/internal/worker"
	"github.com/rs/zerolog"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	Routing        map[string]int   `json:"routing"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server   *httptest.Server
	upstream *httptest.Server
	cancel   context.CancelFunc
}

// Prompts cover every classifier branch so the routing histogram shows
// how the selector spreads load over the catalog.
var benchmarkPrompts = []string{
	"Hallo, wie geht es dir?",
	"Schreibe eine Python Funktion für Primzahlen",
	"Erkläre die Relativitätstheorie im Detail",
	"Übersetze diesen Satz schnell ins Englische",
	"Analysiere die Architektur eines verteilten Systems",
	"Was ist 2+2?",
	"Schreibe ein kreatives Gedicht über den Herbst",
}

func main() {
	chatTotal := flag.Int("chat-total", 240, "total streamed chat requests")
	chatConcurrency := flag.Int("chat-concurrency", 24, "concurrency for streamed chat requests")
	conversationsTotal := flag.Int("conversations-total", 160, "total conversation create requests")
	conversationsConcurrency := flag.Int("conversations-concurrency", 16, "concurrency for conversation create requests")
	messagesTotal := flag.Int("messages-total", 160, "total message list requests")
	messagesConcurrency := flag.Int("messages-concurrency", 16, "concurrency for message list requests")
	upstreamDelay := flag.Duration("upstream-delay", 5*time.Millisecond, "delay between simulated upstream chunks")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("service", "jarvis-loadtest").
		Logger()

	env, err := startBenchmarkEnvironment(*upstreamDelay)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start local benchmark environment")
	}
	defer env.cancel()
	defer env.upstream.Close()
	defer env.server.Close()

	client := &http.Client{Timeout: 30 * time.Second}

	conversationID, err := createConversation(client, env.server.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed conversation")
	}

	chatScenario := runScenario("chat_stream", *chatTotal, *chatConcurrency, func(index int) error {
		payload := map[string]any{
			"messages": []map[string]string{
				{"role": "user", "content": benchmarkPrompts[index%len(benchmarkPrompts)]},
			},
			"conversation_id": conversationID,
		}
		return streamChat(client, env.server.URL+"/ai-chat", payload)
	})

	conversationsScenario := runScenario("conversations_create", *conversationsTotal, *conversationsConcurrency, func(index int) error {
		payload := map[string]any{
			"user_id": fmt.Sprintf("user-%d", index%20),
			"title":   fmt.Sprintf("Lasttest %d", index),
		}
		return postJSON(client, env.server.URL+"/conversations", payload, http.StatusCreated)
	})

	messagesScenario := runScenario("messages_list", *messagesTotal, *messagesConcurrency, func(int) error {
		return getJSON(client, env.server.URL+"/conversations/"+conversationID+"/messages", http.StatusOK)
	})

	results := []scenarioResult{chatScenario, conversationsScenario, messagesScenario}
	slo := map[string]bool{
		"chat_stream_p95_le_2000ms":           chatScenario.P95MS <= 2000,
		"conversations_create_p95_le_200ms":   conversationsScenario.P95MS <= 200,
		"chat_stream_error_rate_le_1_percent": chatScenario.Total == 0 || float64(chatScenario.Errors)/float64(chatScenario.Total) <= 0.01,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		Routing:        routingHistogram(),
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to marshal benchmark report")
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			logger.Fatal().Err(err).Str("path", *outputPath).Msg("failed to write output file")
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment(upstreamDelay time.Duration) (*benchmarkEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := zerolog.Nop()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, word := range []string{"Hallo", " aus", " dem", " Lasttest"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(upstreamDelay)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))

	repo := repository.NewMemoryConversationsRepository()
	localQueue := queue.NewLocalQueue(4096, 3, logger)
	gateway := ai.NewGatewayClient(ai.GatewayClientConfig{
		APIKey:  "loadtest",
		BaseURL: upstream.URL,
		Timeout: 30 * time.Second,
	})

	api := handlers.NewAPI(handlers.APIDependencies{
		Chat: service.NewChatService(service.ChatDependencies{
			Gateway:       gateway,
			Conversations: repo,
			Producer:      localQueue,
			Logger:        logger,
		}),
		Conversations: service.NewConversationsService(repo),
		Geo: service.NewGeoService(service.GeoDependencies{
			Client: gateway,
			Cache:  cache.NewMemoryCache(cache.Config{TTL: 10 * time.Minute, MaxEntries: 100}),
			Logger: logger,
		}),
		StreamIdleTimeout: 10 * time.Second,
		Logger:            logger,
	})
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	processor := worker.NewProcessor(localQueue, repo, logger)
	go processor.Start(ctx)

	return &benchmarkEnv{
		server:   httptest.NewServer(router),
		upstream: upstream,
		cancel:   cancel,
	}, nil
}

func routingHistogram() map[string]int {
	chat := service.NewChatService(service.ChatDependencies{})
	histogram := make(map[string]int, len(benchmarkPrompts))
	for _, prompt := range benchmarkPrompts {
		decision := chat.Route([]ai.Message{{Role: ai.RoleUser, Content: prompt}})
		histogram[decision.Model.ID]++
	}
	return histogram
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func createConversation(client *http.Client, baseURL string) (string, error) {
	response, err := doJSON(client, http.MethodPost, baseURL+"/conversations", map[string]any{"user_id": "loadtest"})
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		return "", unexpectedStatus(response, http.StatusCreated)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode conversation: %w", err)
	}
	return created.ID, nil
}

// streamChat reads the relayed SSE body to the end and fails unless the
// terminal [DONE] event arrived.
func streamChat(client *http.Client, url string, payload any) error {
	response, err := doJSON(client, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return unexpectedStatus(response, http.StatusOK)
	}

	scanner := bufio.NewScanner(response.Body)
	done := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "data: [DONE]" {
			done = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	if !done {
		return errors.New("stream ended without [DONE]")
	}
	return nil
}

func postJSON(client *http.Client, url string, payload any, expectedStatus int) error {
	response, err := doJSON(client, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		return unexpectedStatus(response, expectedStatus)
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	response, err := doJSON(client, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		return unexpectedStatus(response, expectedStatus)
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func doJSON(client *http.Client, method, url string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	return client.Do(request)
}

func unexpectedStatus(response *http.Response, expectedStatus int) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
	return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
