// Package metricskey describes the metrics emitted by toolchat.
package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsAskSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_ask_succeeded",
		Help:         "stats_ask_succeeded provides total ask requests succeeded",
		RequiredTags: []string{},
	}

	StatsAskFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_ask_failed",
		Help:         "stats_ask_failed provides total ask requests failed",
		RequiredTags: []string{},
	}

	StatsAskDegraded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_ask_degraded",
		Help:         "stats_ask_degraded provides total ask requests that exhausted the loop bound",
		RequiredTags: []string{},
	}

	StatsInferenceCalls = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_inference_calls",
		Help:         "stats_inference_calls provides total inference calls",
		RequiredTags: []string{"model"},
	}

	StatsInferenceBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_inference_bytes_sent",
		Help:         "stats_inference_bytes_sent provides total conversation bytes sent to the inference service",
		RequiredTags: []string{"model"},
	}

	StatsParseFallbacks = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_parse_fallbacks",
		Help:         "stats_parse_fallbacks provides total model replies with no recoverable actions",
		RequiredTags: []string{},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls referencing unknown tools",
		RequiredTags: []string{"tool"},
	}

	StatsCacheHits = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_hits",
		Help:         "stats_cache_hits provides total weather cache hits",
		RequiredTags: []string{},
	}

	StatsCacheMisses = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_misses",
		Help:         "stats_cache_misses provides total weather cache misses",
		RequiredTags: []string{},
	}
)

// Perf
var (
	PerfAsk = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_ask",
		Help:         "perf_ask provides duration of one ask request",
		RequiredTags: []string{},
	}

	PerfInferenceCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_inference_call",
		Help:         "perf_inference_call provides duration of one inference call",
		RequiredTags: []string{"model"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of one tool invocation",
		RequiredTags: []string{"tool"},
	}
)
