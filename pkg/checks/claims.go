package checks

import (
	"github.com/fullbleed/verify/pkg/evidence"
)

// Claim-seed checks default to manual_needed; the claim evidence resolver
// in the evaluator upgrades them to pass when the registry-declared
// attestation fields are all supplied as true.

// keyboardOperableSeed seeds the keyboard-operability judgment.
type keyboardOperableSeed struct{}

func (keyboardOperableSeed) ID() string { return "fb.a11y.keyboard.operable_seed" }

func (c keyboardOperableSeed) Run(_ *Input) *Finding {
	return manualNeeded(c.ID(), "keyboard operability requires human assessment")
}

// technologySupportBaseline seeds the accessibility-supported technology
// judgment.
type technologySupportBaseline struct{}

func (technologySupportBaseline) ID() string { return "fb.a11y.technology.support_baseline" }

func (c technologySupportBaseline) Run(_ *Input) *Finding {
	return manualNeeded(c.ID(), "technology support baseline requires human assessment")
}

// nonwebExceptions seeds the Section 508 non-web document exceptions
// judgment. The registry marks it conditional on the delivery target: for
// an "html" target the evaluator reports not_applicable before this check
// runs, and no attestation can override that.
type nonwebExceptions struct{}

func (nonwebExceptions) ID() string { return "fb.a11y.s508.nonweb_exceptions" }

func (c nonwebExceptions) Run(in *Input) *Finding {
	f := manualNeeded(c.ID(), "non-web document exception scope requires human assessment")
	f.Evidence = append(f.Evidence, evidence.NewRecord().
		Set("delivery_target", evidence.StringValue(in.DeliveryTarget)))
	return f
}
