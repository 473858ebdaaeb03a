package apm

type emptyTraceProvider struct{}

// NewEmptyTraceProvider returns a provider that leaves the global no-op
// tracer in place.
func NewEmptyTraceProvider() TraceProvider {
	return emptyTraceProvider{}
}

func (emptyTraceProvider) Stop() error {
	return nil
}
