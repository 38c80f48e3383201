package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tool names the engine knows how to gate and dispatch.
const (
	ToolUpdateProfile       = "update_profile"
	ToolGeneratePaymentLink = "generate_payment_link"
	ToolGetSystemStatus     = "get_system_status"
)

// Persona is one named system-prompt + capability-set configuration.
type Persona struct {
	Name         string
	SystemPrompt string
	AllowedTools []string
	Model        string // empty means the engine default
}

// Allows reports whether the persona exposes the named tool.
func (p Persona) Allows(name string) bool {
	for _, t := range p.AllowedTools {
		if t == name {
			return true
		}
	}
	return false
}

// PersonaKind tags the resolved persona variant.
type PersonaKind int

const (
	PersonaStandard PersonaKind = iota
	PersonaElevated
)

// PersonaSelection is resolved exactly once per request, before assembly.
// Elevation is all-or-nothing: the elevated variant replaces the standard
// persona entirely rather than extending it.
type PersonaSelection struct {
	Kind    PersonaKind
	Persona Persona
}

// CallerContext carries everything persona resolution and prompt rendering
// need to know about the caller.
type CallerContext struct {
	URN        string // conversation identity
	Phone      string // phone identity, matched against the admin allow-list
	Groups     []string
	Subscriber bool
	Profile    map[string]any
}

// ResolvePersona picks the persona for this request. Callers on the admin
// allow-list get the elevated persona with the system-status tool appended
// to the baseline capability set.
func ResolvePersona(caller CallerContext, adminPhones []string) PersonaSelection {
	for _, phone := range adminPhones {
		if phone != "" && phone == caller.Phone {
			return PersonaSelection{Kind: PersonaElevated, Persona: elevatedPersona()}
		}
	}
	return PersonaSelection{Kind: PersonaStandard, Persona: standardPersona(caller)}
}

func standardPersona(caller CallerContext) Persona {
	status := "LEAD"
	if caller.Subscriber {
		status = "SUBSCRIBER"
	}

	groups := "None"
	if len(caller.Groups) > 0 {
		groups = strings.Join(caller.Groups, ", ")
	}

	tier := "STANDARD"
	if hasAnyGroup(caller.Groups, "Premium", "Beta") {
		tier = "PREMIUM"
	}

	profile := "None"
	if len(caller.Profile) > 0 {
		if data, err := json.MarshalIndent(caller.Profile, "", "  "); err == nil {
			profile = string(data)
		}
	}

	prompt := fmt.Sprintf(`You are Sarah, the AI Specialist at KonexPro.
Your goal is to help businesses automate their customer service.

### USER CONTEXT
* Status: %s
* Groups: %s
* Access Level: %s
* Known Profile: %s`, status, groups, tier, profile)

	return Persona{
		Name:         "Sarah",
		SystemPrompt: prompt,
		AllowedTools: []string{ToolUpdateProfile, ToolGeneratePaymentLink},
	}
}

func elevatedPersona() Persona {
	return Persona{
		Name: "Operator",
		SystemPrompt: `You are in operator mode with access to internal system tools.
Use 'get_system_status' when asked about system health.`,
		AllowedTools: []string{ToolUpdateProfile, ToolGeneratePaymentLink, ToolGetSystemStatus},
	}
}

func hasAnyGroup(groups []string, wanted ...string) bool {
	for _, g := range groups {
		for _, w := range wanted {
			if g == w {
				return true
			}
		}
	}
	return false
}
