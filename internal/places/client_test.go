package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opportunity-tracker-api/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PlacesConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestAutocomplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/autocomplete/json", r.URL.Path)
		assert.Equal(t, "greenwood", r.URL.Query().Get("input"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"predictions": [
				{"place_id": "p1", "description": "Greenwood High, Bangalore", "structured_formatting": {"main_text": "Greenwood High"}}
			]
		}`))
	})

	predictions, err := client.Autocomplete(context.Background(), "greenwood")
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, "p1", predictions[0].PlaceID)
	assert.Equal(t, "Greenwood High", predictions[0].MainText)
}

func TestAutocompleteZeroResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "predictions": []}`))
	})

	predictions, err := client.Autocomplete(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, predictions)
}

func TestGetDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("place_id"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"result": {
				"place_id": "p1",
				"name": "Greenwood High",
				"formatted_address": "Sarjapur Rd, Bengaluru, Karnataka 560035, India",
				"formatted_phone_number": "080 1234 5678",
				"address_components": [
					{"long_name": "560035", "types": ["postal_code"]}
				]
			}
		}`))
	})

	details, err := client.GetDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Greenwood High", details.Name)
	assert.Equal(t, "560035", details.PostalCode)
	assert.Equal(t, "080 1234 5678", details.PhoneNumber)
}

func TestGetDetailsZipFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"result": {
				"place_id": "p2",
				"name": "Lakeside Academy",
				"formatted_address": "MG Road, Pune 411001",
				"address_components": []
			}
		}`))
	})

	details, err := client.GetDetails(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "411001", details.PostalCode)
}

func TestGetDetailsErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "REQUEST_DENIED"}`))
	})

	_, err := client.GetDetails(context.Background(), "p3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}
