// Package places wraps the external place-search web service used to
// verify school identities: autocomplete predictions for free-text
// lookup and a details call for address, phone and postal code.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/noah-isme/opportunity-tracker-api/pkg/config"
)

const statusOK = "OK"

// Prediction is one autocomplete candidate.
type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
	MainText    string `json:"main_text"`
}

// Details is the resolved record for a confirmed place.
type Details struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	PhoneNumber      string
	PostalCode       string
}

// Client talks to the place-search HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient builds a place-search client from configuration.
func NewClient(cfg config.PlacesConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

type autocompleteResponse struct {
	Status      string `json:"status"`
	Predictions []struct {
		PlaceID              string `json:"place_id"`
		Description          string `json:"description"`
		StructuredFormatting struct {
			MainText string `json:"main_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

// Autocomplete returns prediction candidates for a free-text input.
// An empty slice with a nil error means the service found nothing.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	endpoint := fmt.Sprintf("%s/autocomplete/json?input=%s&key=%s", c.baseURL, url.QueryEscape(input), url.QueryEscape(c.apiKey))

	var payload autocompleteResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	if payload.Status != statusOK {
		if payload.Status == "ZERO_RESULTS" {
			return nil, nil
		}
		return nil, fmt.Errorf("place autocomplete status %s", payload.Status)
	}

	predictions := make([]Prediction, 0, len(payload.Predictions))
	for _, p := range payload.Predictions {
		predictions = append(predictions, Prediction{
			PlaceID:     p.PlaceID,
			Description: p.Description,
			MainText:    p.StructuredFormatting.MainText,
		})
	}
	return predictions, nil
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		PlaceID           string `json:"place_id"`
		Name              string `json:"name"`
		FormattedAddress  string `json:"formatted_address"`
		FormattedPhone    string `json:"formatted_phone_number"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"result"`
}

var sixDigitZip = regexp.MustCompile(`\b\d{6}\b`)

// GetDetails fetches the full record for a place id. The postal code
// comes from the structured component when present, with a 6-digit
// scan of the formatted address as fallback.
func (c *Client) GetDetails(ctx context.Context, placeID string) (*Details, error) {
	endpoint := fmt.Sprintf("%s/details/json?place_id=%s&fields=%s&key=%s",
		c.baseURL,
		url.QueryEscape(placeID),
		url.QueryEscape("name,formatted_address,place_id,address_components,formatted_phone_number"),
		url.QueryEscape(c.apiKey),
	)

	var payload detailsResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	if payload.Status != statusOK {
		return nil, fmt.Errorf("place details status %s", payload.Status)
	}

	details := &Details{
		PlaceID:          payload.Result.PlaceID,
		Name:             payload.Result.Name,
		FormattedAddress: payload.Result.FormattedAddress,
		PhoneNumber:      payload.Result.FormattedPhone,
	}

	for _, component := range payload.Result.AddressComponents {
		for _, t := range component.Types {
			if t == "postal_code" {
				details.PostalCode = component.LongName
			}
		}
	}
	if details.PostalCode == "" {
		details.PostalCode = sixDigitZip.FindString(payload.Result.FormattedAddress)
	}

	return details, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build place request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("place request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("place request status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode place response: %w", err)
	}
	return nil
}
