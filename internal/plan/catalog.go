package plan

// Capability is a feature flag granted by a plan.
type Capability string

const (
	CapVoiceUpload          Capability = "voice_upload"
	CapMelodyEditor         Capability = "melody_editor"
	CapKeyOverride          Capability = "key_override"
	CapHumanRequestForm     Capability = "human_request_form"
	CapStemExport           Capability = "stem_export"
	CapUnlimitedGenerations Capability = "unlimited_generations"
)

// EntitlementSet describes what a plan grants.
type EntitlementSet struct {
	// DailyTokenQuota is the number of tokens credited each UTC day.
	// Zero with CapUnlimitedGenerations means the plan is unmetered.
	DailyTokenQuota int
	// CostPerGeneration is the token price of one committed generation.
	CostPerGeneration int
	capabilities      map[Capability]struct{}
}

// Has reports whether the plan grants the capability.
func (e EntitlementSet) Has(cap Capability) bool {
	_, ok := e.capabilities[cap]
	return ok
}

// Unlimited reports whether generations are unmetered on this plan.
func (e EntitlementSet) Unlimited() bool {
	return e.Has(CapUnlimitedGenerations)
}

// Capabilities returns the granted capabilities in stable order.
func (e EntitlementSet) Capabilities() []Capability {
	ordered := []Capability{
		CapVoiceUpload,
		CapMelodyEditor,
		CapKeyOverride,
		CapHumanRequestForm,
		CapStemExport,
		CapUnlimitedGenerations,
	}
	out := make([]Capability, 0, len(e.capabilities))
	for _, cap := range ordered {
		if e.Has(cap) {
			out = append(out, cap)
		}
	}
	return out
}

func caps(list ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(list))
	for _, c := range list {
		set[c] = struct{}{}
	}
	return set
}

var catalog = map[Plan]EntitlementSet{
	Basic: {
		DailyTokenQuota:   20,
		CostPerGeneration: 4,
		capabilities:      caps(),
	},
	Pro: {
		DailyTokenQuota:   40,
		CostPerGeneration: 2,
		capabilities: caps(
			CapVoiceUpload,
			CapMelodyEditor,
			CapKeyOverride,
		),
	},
	ProPlus: {
		DailyTokenQuota:   0,
		CostPerGeneration: 0,
		capabilities: caps(
			CapVoiceUpload,
			CapMelodyEditor,
			CapKeyOverride,
			CapHumanRequestForm,
			CapStemExport,
			CapUnlimitedGenerations,
		),
	},
}

// Entitlements returns the entitlement set for a plan. Unknown plans
// degrade to Basic so a bad value can never grant extra access.
func Entitlements(p Plan) EntitlementSet {
	if set, ok := catalog[p]; ok {
		return set
	}
	return catalog[Basic]
}
