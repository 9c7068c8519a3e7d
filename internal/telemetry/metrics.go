// Package telemetry keeps process-wide counters and renders them in the
// Prometheus text format.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var defaultRegistry = newRegistry()

var (
	durationBuckets      = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}
	durationBucketLabels = []string{"0.1", "0.5", "1", "2", "5", "10", "30", "60", "+Inf"}
)

type registry struct {
	mu                sync.Mutex
	operationCalls    map[string]map[string]int64
	operationDuration map[string][]int64
	upstreamErrors    map[string]map[int]int64
	tokenRefreshes    map[string]int64
	validationSteps   map[string]map[string]int64
}

func newRegistry() *registry {
	return &registry{
		operationCalls:    make(map[string]map[string]int64),
		operationDuration: make(map[string][]int64),
		upstreamErrors:    make(map[string]map[int]int64),
		tokenRefreshes:    make(map[string]int64),
		validationSteps:   make(map[string]map[string]int64),
	}
}

// Reset clears every counter. Tests only.
func Reset() {
	r := newRegistry()
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.operationCalls = r.operationCalls
	defaultRegistry.operationDuration = r.operationDuration
	defaultRegistry.upstreamErrors = r.upstreamErrors
	defaultRegistry.tokenRefreshes = r.tokenRefreshes
	defaultRegistry.validationSteps = r.validationSteps
}

func IncOperationCall(operation, status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	inc(defaultRegistry.operationCalls, operation, status)
}

func ObserveOperationDuration(operation string, d time.Duration) {
	sec := d.Seconds()

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.operationDuration[operation]; !ok {
		defaultRegistry.operationDuration[operation] = make([]int64, len(durationBuckets)+1)
	}
	idx := len(durationBuckets)
	for i, b := range durationBuckets {
		if sec <= b {
			idx = i
			break
		}
	}
	defaultRegistry.operationDuration[operation][idx]++
}

// IncUpstreamError counts a failed GitHub call. statusCode is 0 for network
// and GraphQL-level failures.
func IncUpstreamError(transport string, statusCode int) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.upstreamErrors[transport]; !ok {
		defaultRegistry.upstreamErrors[transport] = make(map[int]int64)
	}
	defaultRegistry.upstreamErrors[transport][statusCode]++
}

func IncTokenRefresh(outcome string) {
	defaultRegistry.mu.Lock()
	defaultRegistry.tokenRefreshes[outcome]++
	defaultRegistry.mu.Unlock()
}

func IncValidationStep(component, status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	inc(defaultRegistry.validationSteps, component, status)
}

func inc(m map[string]map[string]int64, outer, inner string) {
	if _, ok := m[outer]; !ok {
		m[outer] = make(map[string]int64)
	}
	m[outer][inner]++
}

func RenderPrometheus() string {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("# TYPE ghapp_operation_calls_total counter\n")
	for _, op := range sortedKeys(defaultRegistry.operationCalls) {
		for _, status := range sortedKeys(defaultRegistry.operationCalls[op]) {
			sb.WriteString(fmt.Sprintf("ghapp_operation_calls_total{operation=\"%s\",status=\"%s\"} %d\n", op, status, defaultRegistry.operationCalls[op][status]))
		}
	}

	sb.WriteString("# TYPE ghapp_operation_duration_seconds_bucket counter\n")
	for _, op := range sortedKeys(defaultRegistry.operationDuration) {
		for i, v := range defaultRegistry.operationDuration[op] {
			sb.WriteString(fmt.Sprintf("ghapp_operation_duration_seconds_bucket{operation=\"%s\",le=\"%s\"} %d\n", op, durationBucketLabels[i], v))
		}
	}

	sb.WriteString("# TYPE ghapp_upstream_errors_total counter\n")
	for _, transport := range sortedKeys(defaultRegistry.upstreamErrors) {
		statusCodes := make([]int, 0, len(defaultRegistry.upstreamErrors[transport]))
		for sc := range defaultRegistry.upstreamErrors[transport] {
			statusCodes = append(statusCodes, sc)
		}
		sort.Ints(statusCodes)
		for _, sc := range statusCodes {
			sb.WriteString(fmt.Sprintf("ghapp_upstream_errors_total{transport=\"%s\",status_code=\"%d\"} %d\n", transport, sc, defaultRegistry.upstreamErrors[transport][sc]))
		}
	}

	sb.WriteString("# TYPE ghapp_token_refreshes_total counter\n")
	for _, outcome := range sortedKeys(defaultRegistry.tokenRefreshes) {
		sb.WriteString(fmt.Sprintf("ghapp_token_refreshes_total{outcome=\"%s\"} %d\n", outcome, defaultRegistry.tokenRefreshes[outcome]))
	}

	sb.WriteString("# TYPE ghapp_validation_steps_total counter\n")
	for _, comp := range sortedKeys(defaultRegistry.validationSteps) {
		for _, status := range sortedKeys(defaultRegistry.validationSteps[comp]) {
			sb.WriteString(fmt.Sprintf("ghapp_validation_steps_total{component=\"%s\",status=\"%s\"} %d\n", comp, status, defaultRegistry.validationSteps[comp][status]))
		}
	}

	return sb.String()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
