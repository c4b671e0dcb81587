package metrics

import "testing"

func TestMetricName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "adds prefix", input: "requests_total", expected: "bookstore_requests_total"},
		{name: "keeps prefixed", input: "bookstore_custom_metric", expected: "bookstore_custom_metric"},
		{name: "blank returns prefix", input: "", expected: "bookstore_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricName(tt.input); got != tt.expected {
				t.Fatalf("MetricName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMetricNameWithSubsystem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		subsystem  string
		metricName string
		expected   string
	}{
		{
			name:       "subsystem and name",
			subsystem:  "postgres",
			metricName: "transactions_total",
			expected:   "bookstore_postgres_transactions_total",
		},
		{
			name:       "subsystem trims underscore",
			subsystem:  "_http_",
			metricName: "requests_total",
			expected:   "bookstore_http_requests_total",
		},
		{name: "empty name", subsystem: "postgres", metricName: "", expected: "bookstore_postgres"},
		{
			name:       "already prefixed",
			subsystem:  "",
			metricName: "bookstore_existing_metric",
			expected:   "bookstore_existing_metric",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricNameWithSubsystem(tt.subsystem, tt.metricName); got != tt.expected {
				t.Fatalf("MetricNameWithSubsystem(%q, %q) = %q, want %q", tt.subsystem, tt.metricName, got, tt.expected)
			}
		})
	}
}
