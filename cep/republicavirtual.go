/*
republicavirtual.go - República Virtual CEP provider (priority 1)

WIRE SHAPE:
  POST web_cep.php with form fields cep=<digits>&formato=json.
  The payload signals success with "resultado": 1 - but the service is
  loose about types, so the flag may arrive as a number or as a string.

USABILITY:
  A response counts as usable only when the result flag is positive AND
  it carries at least a street or a sublocality. A bare positive flag
  with empty fields helps nobody downstream.
*/
package cep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const republicaVirtualBaseURL = "https://cep.republicavirtual.com.br"

// RepublicaVirtual queries the República Virtual web_cep endpoint.
type RepublicaVirtual struct {
	baseURL string
	client  *http.Client
}

// NewRepublicaVirtual creates the provider with the production endpoint
// and a 10 second timeout.
func NewRepublicaVirtual() *RepublicaVirtual {
	return NewRepublicaVirtualWithClient(republicaVirtualBaseURL, &http.Client{Timeout: 10 * time.Second})
}

// NewRepublicaVirtualWithClient allows overriding the endpoint and client
// (tests point this at an httptest server).
func NewRepublicaVirtualWithClient(baseURL string, client *http.Client) *RepublicaVirtual {
	return &RepublicaVirtual{baseURL: baseURL, client: client}
}

func (p *RepublicaVirtual) Name() string { return "republica_virtual" }

// flexFlag tolerates a JSON field arriving as number or string.
type flexFlag string

func (f *flexFlag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*f = flexFlag(s)
	return nil
}

type republicaVirtualPayload struct {
	Resultado  flexFlag `json:"resultado"`
	UF         string   `json:"uf"`
	Cidade     string   `json:"cidade"`
	Distrito   string   `json:"distrito"`
	Logradouro string   `json:"logradouro"`
}

// Lookup posts the cleaned code and maps a usable payload to Fields.
func (p *RepublicaVirtual) Lookup(ctx context.Context, cleanCode string) (*Fields, error) {
	form := url.Values{}
	form.Set("cep", cleanCode)
	form.Set("formato", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/web_cep.php", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload republicaVirtualPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Negative result flag means "no such CEP" - a normal miss.
	if payload.Resultado != "1" {
		return nil, nil
	}
	if payload.Logradouro == "" && payload.Distrito == "" {
		return nil, nil
	}

	return &Fields{
		Sublocality: payload.Distrito,
		Street:      payload.Logradouro,
		City:        payload.Cidade,
		State:       payload.UF,
	}, nil
}
