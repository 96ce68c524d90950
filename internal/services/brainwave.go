package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
)

// BrainwaveClient reads band-power samples from the EEG feed (GET /brainwaves, no auth).
//
// The feed is best effort: every failure is reported as [shared.KindSensorUnavailable].
type BrainwaveClient struct {
	client *resty.Client
	logger *log.Logger
}

// NewBrainwaveClient creates a [BrainwaveClient] for the feed at baseURL.
func NewBrainwaveClient(baseURL string, timeout time.Duration, logger *log.Logger) *BrainwaveClient {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &BrainwaveClient{client: client, logger: shared.WithLogger(logger, "component", "eeg")}
}

// brainwavePayload detects missing bands, which unmarshal to zero otherwise.
type brainwavePayload struct {
	Delta         *float64 `json:"delta"`
	Theta         *float64 `json:"theta"`
	Alpha         *float64 `json:"alpha"`
	Beta          *float64 `json:"beta"`
	Gamma         *float64 `json:"gamma"`
	Concentration *float64 `json:"concentration"`
}

// Sample fetches one [models.BandSample].
func (b *BrainwaveClient) Sample(ctx context.Context) (models.BandSample, error) {
	const op = "GET /brainwaves"

	resp, err := b.client.R().SetContext(ctx).Get("/brainwaves")
	if err != nil {
		return models.BandSample{}, shared.NewError(shared.KindSensorUnavailable, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return models.BandSample{}, &shared.Error{Kind: shared.KindSensorUnavailable, Op: op, Status: resp.StatusCode()}
	}

	var raw brainwavePayload
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return models.BandSample{}, shared.NewError(shared.KindSensorUnavailable, op, fmt.Errorf("malformed body: %w", err))
	}
	if raw.Delta == nil || raw.Theta == nil || raw.Alpha == nil || raw.Beta == nil || raw.Gamma == nil {
		return models.BandSample{}, shared.NewError(shared.KindSensorUnavailable, op, fmt.Errorf("malformed body: missing band"))
	}

	sample := models.BandSample{
		Delta:         *raw.Delta,
		Theta:         *raw.Theta,
		Alpha:         *raw.Alpha,
		Beta:          *raw.Beta,
		Gamma:         *raw.Gamma,
		Concentration: raw.Concentration,
	}
	if err := sample.Validate(); err != nil {
		return models.BandSample{}, shared.NewError(shared.KindSensorUnavailable, op, err)
	}

	b.logger.Debug("sample received", "alpha", sample.Alpha, "beta", sample.Beta, "theta", sample.Theta, "gamma", sample.Gamma)
	return sample, nil
}
