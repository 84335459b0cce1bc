// Package deezer provides a catalog client for the Deezer search API served through RapidAPI.
package deezer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/domain/track"
)

const (
	// SourceName tags tracks produced by this client.
	SourceName = "deezer"

	defaultHost = "deezerdevs-deezer.p.rapidapi.com"
)

// Client is a Deezer API client.
type Client struct {
	apiKey     string
	host       string
	baseURL    string
	httpClient *http.Client
}

// Config represents Deezer client configuration.
type Config struct {
	APIKey  string        // RapidAPI key
	Host    string        // RapidAPI host (optional)
	Timeout time.Duration // Request timeout (optional)
}

// SearchResponse represents the response from the search endpoint.
type SearchResponse struct {
	Data  []TrackDTO `json:"data"`
	Total int        `json:"total"`
	Error *APIError  `json:"error,omitempty"`
}

// TrackDTO represents a track in a search response.
type TrackDTO struct {
	ID       json.Number `json:"id"`
	Title    string      `json:"title"`
	Duration int         `json:"duration"` // seconds, full track
	Preview  string      `json:"preview"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title    string `json:"title"`
		Cover    string `json:"cover"`
		CoverBig string `json:"cover_big"`
	} `json:"album"`
}

// APIError represents an error response from the Deezer API.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// New creates a new Deezer client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deezer RapidAPI key is required")
	}

	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		host:       host,
		baseURL:    "https://" + host + "/",
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Search searches for tracks matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}

	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	reqURL := c.baseURL + "search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("deezer API returned status %d", resp.StatusCode)
	}

	var response SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if response.Error != nil {
		return nil, errors.Newf("deezer API error %d (%s): %s",
			response.Error.Code, response.Error.Type, response.Error.Message)
	}

	tracks := make([]track.Track, 0, len(response.Data))
	for _, dto := range response.Data {
		tracks = append(tracks, dto.toTrack())
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}

	zlog.Debug().Msgf("deezer: search %q returned %d tracks (total %d)", query, len(tracks), response.Total)
	return tracks, nil
}

// toTrack converts a search result to a domain Track.
// The preview clip is the playable source; its length is unknown until prepared.
func (d TrackDTO) toTrack() track.Track {
	cover := d.Album.CoverBig
	if cover == "" {
		cover = d.Album.Cover
	}
	return track.Track{
		ID:          d.ID.String(),
		Title:       d.Title,
		ArtistName:  d.Artist.Name,
		AlbumArtRef: cover,
		SourceURL:   d.Preview,
		Source:      SourceName,
	}
}
