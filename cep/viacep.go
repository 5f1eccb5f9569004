/*
viacep.go - ViaCEP provider (priority 2, fallback)

WIRE SHAPE:
  GET /ws/<digits>/json/. An unknown CEP still answers 200, with an
  explicit {"erro": true} marker in the body.

USABILITY:
  Any payload without the erro marker is usable.
*/
package cep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const viaCEPBaseURL = "https://viacep.com.br"

// ViaCEP queries the viacep.com.br JSON endpoint.
type ViaCEP struct {
	baseURL string
	client  *http.Client
}

// NewViaCEP creates the provider with the production endpoint and a
// 10 second timeout.
func NewViaCEP() *ViaCEP {
	return NewViaCEPWithClient(viaCEPBaseURL, &http.Client{Timeout: 10 * time.Second})
}

// NewViaCEPWithClient allows overriding the endpoint and client.
func NewViaCEPWithClient(baseURL string, client *http.Client) *ViaCEP {
	return &ViaCEP{baseURL: baseURL, client: client}
}

func (p *ViaCEP) Name() string { return "viacep" }

type viaCEPPayload struct {
	Erro       bool   `json:"erro"`
	UF         string `json:"uf"`
	Localidade string `json:"localidade"`
	Bairro     string `json:"bairro"`
	Logradouro string `json:"logradouro"`
}

// Lookup fetches the cleaned code and maps a usable payload to Fields.
func (p *ViaCEP) Lookup(ctx context.Context, cleanCode string) (*Fields, error) {
	url := fmt.Sprintf("%s/ws/%s/json/", p.baseURL, cleanCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload viaCEPPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if payload.Erro {
		return nil, nil
	}

	return &Fields{
		Sublocality: payload.Bairro,
		Street:      payload.Logradouro,
		City:        payload.Localidade,
		State:       payload.UF,
	}, nil
}
