// Package glossary describes the k6 summary metrics shown to users.
package glossary

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Entry explains one k6 metric.
type Entry struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

var entries = []Entry{
	{
		Name:        "http_reqs",
		Title:       "Total HTTP requests",
		Description: "Number of HTTP requests sent during the test, successful and failed alike.",
	},
	{
		Name:        "http_req_duration",
		Title:       "HTTP request duration",
		Description: "Time for a request to complete (sending + waiting + receiving). Reported as avg, min, med, max and p95 (95th percentile).",
	},
	{
		Name:        "http_req_failed",
		Title:       "HTTP request failure rate",
		Description: "Share of requests that failed: 4xx and 5xx responses or network errors.",
	},
	{
		Name:        "checks",
		Title:       "Check results",
		Description: "Outcome of the checks evaluated during the test, covering checks_total, checks_passed and checks_failed.",
	},
	{
		Name:        "checks_total",
		Title:       "Total checks",
		Description: "Number of conditions evaluated with check() over the whole test.",
	},
	{
		Name:        "checks_passed",
		Title:       "Passed checks",
		Description: "Number of checks whose condition evaluated to true.",
	},
	{
		Name:        "checks_failed",
		Title:       "Failed checks",
		Description: "Number of checks whose condition evaluated to false or raised an error.",
	},
	{
		Name:        "vus",
		Title:       "Current virtual users",
		Description: "Virtual users running at the moment of sampling. Changes over the test as stages ramp.",
	},
	{
		Name:        "vus_max",
		Title:       "Maximum virtual users",
		Description: "Highest number of virtual users allocated during the test.",
	},
	{
		Name:        "iteration_duration",
		Title:       "Iteration duration",
		Description: "Time for one full execution of the default function, including setup of the request.",
	},
	{
		Name:        "data_received",
		Title:       "Data received",
		Description: "Total bytes received from the target.",
	},
	{
		Name:        "data_sent",
		Title:       "Data sent",
		Description: "Total bytes sent to the target, request bodies and headers included.",
	},
	{
		Name:        "iterations",
		Title:       "Iterations",
		Description: "Times the default function ran, summed over all virtual users.",
	},
	{
		Name:        "http_req_waiting",
		Title:       "HTTP request waiting",
		Description: "Time spent waiting for the first response byte (TTFB, time to first byte).",
	},
	{
		Name:        "http_req_connecting",
		Title:       "HTTP connecting",
		Description: "Time spent establishing the TCP connection to the target.",
	},
	{
		Name:        "http_req_tls_handshaking",
		Title:       "TLS handshaking",
		Description: "Time spent on the TLS handshake for HTTPS targets.",
	},
	{
		Name:        "http_req_sending",
		Title:       "HTTP request sending",
		Description: "Time spent sending the request data to the target.",
	},
	{
		Name:        "http_req_receiving",
		Title:       "HTTP response receiving",
		Description: "Time spent receiving the response data from the target.",
	},
}

// Entries returns every glossary entry in display order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Get returns the entry with the exact metric name.
func Get(name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

type names []Entry

func (n names) String(i int) string { return n[i].Name }
func (n names) Len() int            { return len(n) }

// Lookup returns entries matching term, best match first. An exact name
// match is always first. An empty term returns every entry.
func Lookup(term string) []Entry {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" {
		return Entries()
	}

	var out []Entry
	exact, hasExact := Get(term)
	if hasExact {
		out = append(out, exact)
	}

	for _, m := range fuzzy.FindFrom(term, names(entries)) {
		if hasExact && entries[m.Index].Name == exact.Name {
			continue
		}
		out = append(out, entries[m.Index])
	}

	return out
}
