package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

type reverseResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

type overpassResponse struct {
	Elements []struct {
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// GeocodeClient resolves place names through a Nominatim-style reverse
// endpoint and nearby landmarks through an Overpass-style endpoint. All
// requests share one limiter so sequential calls are spaced out.
type GeocodeClient struct {
	reverseURL   string
	landmarksURL string
	userAgent    string
	radius       int
	client       *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

func NewGeocodeClient(reverseURL, landmarksURL, userAgent string, rps float64, timeout time.Duration, logger *slog.Logger) *GeocodeClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if userAgent == "" {
		userAgent = "sos-service"
	}
	return &GeocodeClient{
		reverseURL:   strings.TrimRight(reverseURL, "/"),
		landmarksURL: landmarksURL,
		userAgent:    userAgent,
		radius:       500,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Enrich returns place, address and up to three landmarks. A landmark failure
// still yields the place; both failing is an error.
func (c *GeocodeClient) Enrich(ctx context.Context, coord models.Coordinate) (*models.LocationEnrichment, error) {
	placeName, address, revErr := c.reverse(ctx, coord)
	if revErr != nil {
		c.logger.Warn("reverse geocoding failed", slog.Any("error", revErr))
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	landmarks, lmErr := c.landmarks(ctx, coord)
	if lmErr != nil {
		c.logger.Warn("landmark lookup failed", slog.Any("error", lmErr))
	}
	if revErr != nil && lmErr != nil {
		return nil, errors.Join(revErr, lmErr)
	}

	e := models.LocationEnrichment{
		PlaceName:       placeName,
		Address:         address,
		NearbyLandmarks: landmarks,
	}.Trimmed()
	if e.Empty() {
		return nil, nil
	}
	return &e, nil
}

func (c *GeocodeClient) reverse(ctx context.Context, coord models.Coordinate) (string, string, error) {
	if c.reverseURL == "" {
		return "", "", errors.New("geocoder: no reverse endpoint configured")
	}
	path := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		c.reverseURL,
		url.QueryEscape(fmt.Sprintf("%.6f", coord.Lat)),
		url.QueryEscape(fmt.Sprintf("%.6f", coord.Lng)),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", "", err
	}

	var body reverseResponse
	if err := c.do(req, &body); err != nil {
		return "", "", err
	}
	if body.Error != "" {
		return "", "", fmt.Errorf("geocoder error: %s", body.Error)
	}

	placeName := body.Name
	if placeName == "" {
		placeName, _, _ = strings.Cut(body.DisplayName, ",")
		placeName = strings.TrimSpace(placeName)
	}
	return placeName, body.DisplayName, nil
}

func (c *GeocodeClient) landmarks(ctx context.Context, coord models.Coordinate) ([]string, error) {
	if c.landmarksURL == "" {
		return nil, errors.New("geocoder: no landmarks endpoint configured")
	}
	query := fmt.Sprintf("[out:json][timeout:5];node(around:%d,%.6f,%.6f)[name][~\"^(amenity|tourism|shop|railway)$\"~\".\"];out 10;",
		c.radius, coord.Lat, coord.Lng)
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.landmarksURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body overpassResponse
	if err := c.do(req, &body); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	names := make([]string, 0, models.MaxLandmarks)
	for _, el := range body.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
		if len(names) == models.MaxLandmarks {
			break
		}
	}
	return names, nil
}

func (c *GeocodeClient) do(req *http.Request, out interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
