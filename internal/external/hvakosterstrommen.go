package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kjannette/npt-backend/internal/httputil"
	"github.com/kjannette/npt-backend/internal/models"
)

const hvakosterstrommenURL = "https://www.hvakosterstrommen.no/api/v1/prices"

// maxPayload bounds a single day's response; a 15-minute day is ~10 KB.
const maxPayload = 4 << 20

// TransportError wraps a network failure or a non-2xx answer.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError means the payload was not the expected JSON list.
type SchemaError struct {
	URL string
	Got string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected payload from %s: expected list, got %s", e.URL, e.Got)
}

// HvakosterstrommenOptions tunes the client. Zero values take defaults:
// the public base URL, a 20 second timeout and a single attempt.
type HvakosterstrommenOptions struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

type HvakosterstrommenClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewHvakosterstrommenClient(opts HvakosterstrommenOptions) *HvakosterstrommenClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = hvakosterstrommenURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retry := httputil.NoRetry
	if opts.MaxAttempts > 1 {
		retry = httputil.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		}
	}
	return &HvakosterstrommenClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

// BuildURL returns {base}/{YYYY}/{MM-DD}_{ZONE}.json.
func (c *HvakosterstrommenClient) BuildURL(day time.Time, zone models.Zone) (string, error) {
	z, err := models.ParseZone(string(zone))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d/%s_%s.json", c.baseURL, day.Year(), day.Format("01-02"), z), nil
}

// FetchRaw downloads one day's payload for a zone without interpreting it.
func (c *HvakosterstrommenClient) FetchRaw(ctx context.Context, day time.Time, zone models.Zone) ([]byte, error) {
	url, err := c.BuildURL(day, zone)
	if err != nil {
		return nil, err
	}

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, &TransportError{URL: url, StatusCode: httputil.StatusCode(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload+1))
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxPayload {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("response exceeds %d bytes", maxPayload)}
	}
	return body, nil
}

// FetchDay downloads and decodes one day's prices for a zone.
func (c *HvakosterstrommenClient) FetchDay(ctx context.Context, day time.Time, zone models.Zone) ([]models.PricePoint, error) {
	raw, err := c.FetchRaw(ctx, day, zone)
	if err != nil {
		return nil, err
	}
	url, _ := c.BuildURL(day, zone)
	return Decode(raw, zone, url)
}

// wirePrice mirrors one element of the API response. Pointers let Decode
// tell a missing field from a zero price.
type wirePrice struct {
	NOKPerKWh *float64   `json:"NOK_per_kWh"`
	EURPerKWh *float64   `json:"EUR_per_kWh"`
	EXR       *float64   `json:"EXR"`
	TimeStart *time.Time `json:"time_start"`
	TimeEnd   *time.Time `json:"time_end"`
}

// Decode parses a raw payload into price points for zone. A payload that
// is not a JSON list is a *SchemaError; an element missing a required
// field is a *models.ValidationError naming the fields.
func Decode(raw []byte, zone models.Zone, source string) ([]models.PricePoint, error) {
	z, err := models.ParseZone(string(zone))
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &SchemaError{URL: source, Got: jsonKind(trimmed)}
	}

	var wire []wirePrice
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, &SchemaError{URL: source, Got: fmt.Sprintf("malformed list (%v)", err)}
	}

	out := make([]models.PricePoint, 0, len(wire))
	for i, w := range wire {
		var missing []string
		if w.NOKPerKWh == nil {
			missing = append(missing, "NOK_per_kWh")
		}
		if w.EURPerKWh == nil {
			missing = append(missing, "EUR_per_kWh")
		}
		if w.EXR == nil {
			missing = append(missing, "EXR")
		}
		if w.TimeStart == nil {
			missing = append(missing, "time_start")
		}
		if w.TimeEnd == nil {
			missing = append(missing, "time_end")
		}
		if len(missing) > 0 {
			return nil, &models.ValidationError{
				Fields: missing,
				Reason: fmt.Sprintf("record %d from %s missing required fields", i, source),
			}
		}
		out = append(out, models.PricePoint{
			Zone:      z,
			TimeStart: w.TimeStart.UTC(),
			TimeEnd:   w.TimeEnd.UTC(),
			NOKPerKWh: *w.NOKPerKWh,
			EURPerKWh: *w.EURPerKWh,
			EXR:       *w.EXR,
			Source:    models.SourceHvakosterstrommen,
		})
	}
	return out, nil
}

func jsonKind(b []byte) string {
	if len(b) == 0 {
		return "empty body"
	}
	switch b[0] {
	case '{':
		return "object"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		return "number"
	}
	return "non-JSON"
}

// BronzePath returns {dir}/hks_{YYYY}_{MM-DD}_{ZONE}.json.
func BronzePath(dir string, day time.Time, zone models.Zone) string {
	return filepath.Join(dir, fmt.Sprintf("hks_%d_%s_%s.json", day.Year(), day.Format("01-02"), zone))
}

// SaveBronze writes the unmodified payload bytes under dir.
func SaveBronze(dir string, day time.Time, zone models.Zone, raw []byte) (string, error) {
	z, err := models.ParseZone(string(zone))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bronze dir: %w", err)
	}
	path := BronzePath(dir, day, z)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write bronze: %w", err)
	}
	return path, nil
}
