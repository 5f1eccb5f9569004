/*
Package cep resolves Brazilian postal codes (CEP) into street addresses
by querying external lookup services in priority order.

FALLBACK CHAIN:
  1. República Virtual - usable iff the payload carries a positive
     result flag and at least a street or sublocality.
  2. ViaCEP            - usable iff the payload lacks the explicit
     "erro" marker.

CONTRACT:
  - The raw code is normalized to 8 digits before any network call;
    anything else fails fast with no provider contact.
  - One attempt per provider per resolution, each with its own short
    timeout. Provider failures and timeouts are absorbed: they mean
    "try the next provider", never a hard error to the caller.
  - The second provider is only contacted after the first is confirmed
    unusable.
  - "Not found" is a nil result, not an error.
*/
package cep

import (
	"context"
	"log"
	"regexp"
)

// Fields is a resolved partial address. City and State are carried
// through when a provider supplies them; the scheduling core does not
// consume them.
type Fields struct {
	PostalCode  string // canonical 00000-000
	Sublocality string
	Street      string
	City        string
	State       string
}

// Provider is one postal-code lookup service. Lookup receives a cleaned
// 8-digit code and returns nil fields when the service has no usable
// answer for it; errors indicate transport-level failure.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, cleanCode string) (*Fields, error)
}

// Resolver queries a fixed-priority provider chain.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver over the given chain, in priority order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// NewDefaultResolver wires the production chain: República Virtual first,
// ViaCEP as fallback.
func NewDefaultResolver() *Resolver {
	return NewResolver(NewRepublicaVirtual(), NewViaCEP())
}

var nonDigits = regexp.MustCompile(`\D`)

// Clean strips all non-digit characters from a CEP.
func Clean(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// Format renders an 8-digit code in the canonical 00000-000 display form.
func Format(cleanCode string) string {
	if len(cleanCode) != 8 {
		return cleanCode
	}
	return cleanCode[:5] + "-" + cleanCode[5:]
}

// Resolve normalizes raw and walks the provider chain, returning the
// first usable result or nil when no provider recognizes the code.
func (r *Resolver) Resolve(ctx context.Context, raw string) *Fields {
	clean := Clean(raw)
	if len(clean) != 8 {
		return nil
	}

	for _, p := range r.providers {
		if ctx.Err() != nil {
			return nil
		}

		fields, err := p.Lookup(ctx, clean)
		if err != nil {
			log.Printf("[cep] %s lookup for %s failed: %v", p.Name(), clean, err)
			continue
		}
		if fields == nil {
			continue
		}

		fields.PostalCode = Format(clean)
		log.Printf("[cep] %s resolved via %s", clean, p.Name())
		return fields
	}

	log.Printf("[cep] %s not found by any provider", clean)
	return nil
}
