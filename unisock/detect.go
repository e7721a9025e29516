package unisock

import "os"

// Variant classifies the hosting environment by which native socket
// construction path it supports.
type Variant int

const (
	// VariantGeneric hosts only expose a plain client-side socket
	// constructor: no handshake headers, canonical message shapes.
	VariantGeneric Variant = iota
	// VariantEdgeSandbox hosts provide an upgrade/pairing primitive
	// behind a fetch-style request.
	VariantEdgeSandbox
	// VariantProcessHost hosts provide a full network stack with an
	// emitter-style socket honoring handshake headers.
	VariantProcessHost
)

func (v Variant) String() string {
	switch v {
	case VariantEdgeSandbox:
		return "edge-sandbox"
	case VariantProcessHost:
		return "process-host"
	}
	return "generic"
}

// Process-environment markers the detector probes for. A host that
// provides the corresponding primitive advertises it here.
const (
	EnvEdgePairing = "UNISOCK_EDGE_PAIRING"
	EnvNetProcess  = "UNISOCK_NET_PROCESS"
)

// Detect classifies the current process. The edge marker wins over
// the process marker, since test harnesses for process hosts may
// expose edge-style markers as well; everything else is Generic.
// Detect never fails and has no side effects.
func Detect() Variant {
	if _, ok := os.LookupEnv(EnvEdgePairing); ok {
		return VariantEdgeSandbox
	}
	if _, ok := os.LookupEnv(EnvNetProcess); ok {
		return VariantProcessHost
	}
	return VariantGeneric
}
