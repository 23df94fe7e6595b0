package access

// GateState is the outcome of a feature gate.
type GateState string

const (
	GateLoading GateState = "loading"
	GateGranted GateState = "granted"
	GateDenied  GateState = "denied"
)

// Render tells the presentation layer what to show for a gate.
type Render string

const (
	RenderPending    Render = "pending"
	RenderContent    Render = "content"
	RenderFallback   Render = "fallback"
	RenderRestricted Render = "restricted"
	RenderNothing    Render = "nothing"
)

const RestrictedMessage = "Access Restricted"

// GateOptions describes a gated region. At least one of Feature or
// MinimumRole should be set, otherwise the gate always grants.
type GateOptions struct {
	Feature     Feature
	MinimumRole Role
	HasFallback bool
	ShowDenied  bool
}

type GateResult struct {
	State  GateState `json:"state"`
	Render Render    `json:"render"`
}

// Evaluate runs the gate. While the overlay is unresolved neither the content
// nor a denial is shown.
func Evaluate(d *Decider, opts GateOptions) GateResult {
	if !d.Resolved() {
		return GateResult{State: GateLoading, Render: RenderPending}
	}
	if d.HasAccess(opts.Feature, opts.MinimumRole) {
		return GateResult{State: GateGranted, Render: RenderContent}
	}
	switch {
	case opts.HasFallback:
		return GateResult{State: GateDenied, Render: RenderFallback}
	case opts.ShowDenied:
		return GateResult{State: GateDenied, Render: RenderRestricted}
	default:
		return GateResult{State: GateDenied, Render: RenderNothing}
	}
}
