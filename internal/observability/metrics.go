package observability

import (
	"sort"
	"sync"
	"time"
)

// Process-local metrics registry. Counters aggregate by label; the
// /metrics handler snapshots them as JSON.

type counter struct {
	mu sync.Mutex
	v  float64
}

func (c *counter) Add(delta float64) {
	c.mu.Lock()
	c.v += delta
	c.mu.Unlock()
}

func (c *counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

type counterVec struct {
	mu sync.Mutex
	m  map[string]float64
}

func newCounterVec() *counterVec {
	return &counterVec{m: map[string]float64{}}
}

func (c *counterVec) Add(label string, delta float64) {
	c.mu.Lock()
	c.m[label] += delta
	c.mu.Unlock()
}

func (c *counterVec) Snapshot() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

type durationVec struct {
	mu    sync.Mutex
	sum   map[string]float64
	count map[string]int64
}

func newDurationVec() *durationVec {
	return &durationVec{sum: map[string]float64{}, count: map[string]int64{}}
}

func (d *durationVec) Observe(label string, seconds float64) {
	d.mu.Lock()
	d.sum[label] += seconds
	d.count[label]++
	d.mu.Unlock()
}

type gauge struct {
	mu sync.Mutex
	v  float64
}

func (g *gauge) Set(v float64) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}

type Metrics struct {
	stageRuns     *counterVec
	stageErrors   *counterVec
	stageDuration *durationVec

	llmRequests *counterVec
	llmTokensIn *counterVec
	llmTokensOu *counterVec
	llmCostUSD  *counterVec

	jobsCompleted *counterVec
	jobsFailed    *counterVec
	queueDepth    *gauge
	dlqDepth      *gauge

	crawlRuns   *counter
	crawlErrors *counter

	apiRequests *counterVec
	apiDuration *durationVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process registry, initialising it on first use.
func Current() *Metrics {
	initOnce.Do(func() {
		instance = &Metrics{
			stageRuns:     newCounterVec(),
			stageErrors:   newCounterVec(),
			stageDuration: newDurationVec(),
			llmRequests:   newCounterVec(),
			llmTokensIn:   newCounterVec(),
			llmTokensOu:   newCounterVec(),
			llmCostUSD:    newCounterVec(),
			jobsCompleted: newCounterVec(),
			jobsFailed:    newCounterVec(),
			queueDepth:    &gauge{},
			dlqDepth:      &gauge{},
			crawlRuns:     &counter{},
			crawlErrors:   &counter{},
			apiRequests:   newCounterVec(),
			apiDuration:   newDurationVec(),
		}
	})
	return instance
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.stageRuns.Add(stage, 1)
	m.stageDuration.Observe(stage, elapsed.Seconds())
	if !ok {
		m.stageErrors.Add(stage, 1)
	}
}

func (m *Metrics) AddLLMUsage(model string, tokensIn, tokensOut int, costUSD float64) {
	if m == nil || model == "" {
		return
	}
	m.llmRequests.Add(model, 1)
	m.llmTokensIn.Add(model, float64(tokensIn))
	m.llmTokensOu.Add(model, float64(tokensOut))
	m.llmCostUSD.Add(model, costUSD)
}

func (m *Metrics) ObserveJob(name string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.jobsCompleted.Add(name, 1)
	} else {
		m.jobsFailed.Add(name, 1)
	}
}

func (m *Metrics) SetQueueDepth(n int64)      { m.queueDepth.Set(float64(n)) }
func (m *Metrics) SetDeadLetterDepth(n int64) { m.dlqDepth.Set(float64(n)) }

func (m *Metrics) ObserveCrawl(ok bool) {
	if m == nil {
		return
	}
	m.crawlRuns.Add(1)
	if !ok {
		m.crawlErrors.Add(1)
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := method + " " + route + " " + status
	m.apiRequests.Add(label, 1)
	m.apiDuration.Observe(label, elapsed.Seconds())
}

// Snapshot renders everything as a flat JSON-friendly map.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return nil
	}
	out := map[string]any{
		"stage_runs":     m.stageRuns.Snapshot(),
		"stage_errors":   m.stageErrors.Snapshot(),
		"llm_requests":   m.llmRequests.Snapshot(),
		"llm_tokens_in":  m.llmTokensIn.Snapshot(),
		"llm_tokens_out": m.llmTokensOu.Snapshot(),
		"llm_cost_usd":   m.llmCostUSD.Snapshot(),
		"jobs_completed": m.jobsCompleted.Snapshot(),
		"jobs_failed":    m.jobsFailed.Snapshot(),
		"crawl_runs":     m.crawlRuns.Value(),
		"crawl_errors":   m.crawlErrors.Value(),
		"api_requests":   m.apiRequests.Snapshot(),
	}
	m.stageDuration.mu.Lock()
	avg := map[string]float64{}
	labels := make([]string, 0, len(m.stageDuration.sum))
	for k := range m.stageDuration.sum {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		if n := m.stageDuration.count[k]; n > 0 {
			avg[k] = m.stageDuration.sum[k] / float64(n)
		}
	}
	m.stageDuration.mu.Unlock()
	out["stage_avg_seconds"] = avg

	m.queueDepth.mu.Lock()
	out["queue_depth"] = m.queueDepth.v
	m.queueDepth.mu.Unlock()
	m.dlqDepth.mu.Lock()
	out["deadletter_depth"] = m.dlqDepth.v
	m.dlqDepth.mu.Unlock()
	return out
}
