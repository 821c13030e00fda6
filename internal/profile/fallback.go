package profile

func selector(s FieldSelector) *FieldSelector { return &s }

// Fallback returns the built-in profile used when no profile file is configured.
// It matches the field layout VictoriaLogs produces for OpenTelemetry logs.
func Fallback() *LogProfile {
	return &LogProfile{
		ID:      "fallback",
		Name:    "Fallback",
		Version: 1,
		CoreFields: CoreFields{
			Time:        Single("_time"),
			Message:     Single("_msg"),
			StreamID:    selector(Single("_stream_id")),
			Stream:      selector(Single("_stream")),
			Severity:    selector(Fallbacks("severity", "SeverityText")),
			ServiceName: selector(Single("service.name")),
			TraceID:     selector(Fallbacks("trace_id", "TraceId")),
			SpanID:      selector(Fallbacks("span_id", "SpanId")),
		},
		TieBreaker: TieBreaker{
			Fields: []string{"_stream_id", "span_id", "SpanId", "trace_id", "TraceId", "_msg"},
		},
		LogTable: LogTable{
			Columns: []FieldEntry{
				{ID: "time", Title: "Time", Field: "_time"},
				{ID: "level", Title: "Level", Fields: []string{"severity", "SeverityText"}},
				{ID: "service", Title: "Service", Field: "service.name"},
				{ID: "message", Title: "Message", Field: "_msg"},
				{ID: "trace-id", Title: "TraceId", Fields: []string{"trace_id", "TraceId"}},
				{ID: "span-id", Title: "SpanId", Fields: []string{"span_id", "SpanId"}},
			},
		},
		LogDetails: LogDetails{
			FieldSets: []FieldSet{
				{
					ID:   "core",
					Name: "Core",
					Fields: []FieldEntry{
						{Title: "Time", Field: "_time"},
						{Title: "Level", Fields: []string{"severity", "SeverityText"}},
						{Title: "Service", Field: "service.name"},
						{Title: "Message", Field: "_msg"},
					},
				},
			},
		},
	}
}
