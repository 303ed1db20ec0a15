package observability

import "go.opentelemetry.io/otel"

// Tracer is the process-wide tracer. Without a configured provider it is a
// no-op, so spans cost nothing in the CLI.
var Tracer = otel.Tracer("ftree")
