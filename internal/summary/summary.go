// Package summary extracts metrics from the end-of-test summary k6 prints.
//
// Parsing is best effort. A metric whose line is missing or does not match
// is omitted from the result rather than reported as zero.
package summary

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DurationStats holds the trend values k6 prints for http_req_duration, in
// milliseconds.
type DurationStats struct {
	Avg float64 `json:"avg" yaml:"avg"`
	Min float64 `json:"min" yaml:"min"`
	Med float64 `json:"med" yaml:"med"`
	Max float64 `json:"max" yaml:"max"`
	P95 float64 `json:"p95" yaml:"p95"`
}

// IterationStats holds the average iteration duration in milliseconds.
type IterationStats struct {
	Avg float64 `json:"avg" yaml:"avg"`
}

// Metrics is the subset of k6 summary metrics k6ui reports. Nil fields were
// not found in the output.
type Metrics struct {
	HTTPReqs          *int            `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`
	HTTPReqDuration   *DurationStats  `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`
	HTTPReqFailed     *float64        `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`
	IterationDuration *IterationStats `json:"iteration_duration,omitempty" yaml:"iteration_duration,omitempty"`
	VUs               *int            `json:"vus,omitempty" yaml:"vus,omitempty"`
	VUsMax            *int            `json:"vus_max,omitempty" yaml:"vus_max,omitempty"`
}

// Empty reports whether no metric was extracted.
func (m Metrics) Empty() bool {
	return m.HTTPReqs == nil &&
		m.HTTPReqDuration == nil &&
		m.HTTPReqFailed == nil &&
		m.IterationDuration == nil &&
		m.VUs == nil &&
		m.VUsMax == nil
}

// Metric names may be followed by a colon, whitespace or k6's dot leaders.
const leader = `[.:\s]+`

var (
	httpReqsPattern = regexp.MustCompile(`\bhttp_reqs` + leader + `(\d+)`)

	httpReqDurationPattern = regexp.MustCompile(`\bhttp_req_duration` + leader +
		`avg=(\S+)\s+min=(\S+)\s+med=(\S+)\s+max=(\S+)\s+(?:p\(90\)=\S+\s+)?p\(95\)=(\S+)`)

	httpReqFailedPattern = regexp.MustCompile(`\bhttp_req_failed` + leader + `([\d.]+)%`)

	iterationDurationPattern = regexp.MustCompile(`\biteration_duration` + leader + `avg=(\S+)`)

	vusPattern = regexp.MustCompile(`\bvus` + leader + `(\d+)`)

	vusMaxPattern = regexp.MustCompile(`\bvus_max` + leader + `(\d+)`)
)

// Parse extracts metrics from combined k6 output.
func Parse(output string) Metrics {
	var m Metrics

	if v, ok := matchInt(httpReqsPattern, output); ok {
		m.HTTPReqs = &v
	}

	if match := httpReqDurationPattern.FindStringSubmatch(output); match != nil {
		values, ok := millisAll(match[1:])
		if ok {
			m.HTTPReqDuration = &DurationStats{
				Avg: values[0],
				Min: values[1],
				Med: values[2],
				Max: values[3],
				P95: values[4],
			}
		}
	}

	if match := httpReqFailedPattern.FindStringSubmatch(output); match != nil {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			m.HTTPReqFailed = &v
		}
	}

	if match := iterationDurationPattern.FindStringSubmatch(output); match != nil {
		if v, ok := millis(match[1]); ok {
			m.IterationDuration = &IterationStats{Avg: v}
		}
	}

	if v, ok := matchInt(vusPattern, output); ok {
		m.VUs = &v
	}

	if v, ok := matchInt(vusMaxPattern, output); ok {
		m.VUsMax = &v
	}

	return m
}

// Text returns the summary text shown to users: the output itself, or a
// fixed message when k6 printed nothing.
func Text(output string) string {
	if strings.TrimSpace(output) == "" {
		return "Load test completed."
	}
	return output
}

func matchInt(re *regexp.Regexp, s string) (int, bool) {
	match := re.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}
	v, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func millisAll(tokens []string) ([]float64, bool) {
	values := make([]float64, len(tokens))
	for i, tok := range tokens {
		v, ok := millis(tok)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// millis converts a k6 duration token such as 12.5ms, 830µs, 1.2s or 1m3s to
// milliseconds. A bare number is taken as milliseconds.
func millis(tok string) (float64, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, false
	}

	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return v, true
	}

	d, err := time.ParseDuration(tok)
	if err != nil {
		return 0, false
	}
	return float64(d) / float64(time.Millisecond), true
}
