package session

import "go.opentelemetry.io/otel"

// tracer uses the global provider, a no-op unless the binary installs one.
var tracer = otel.Tracer("github.com/skobkin/clemremote/internal/session")
