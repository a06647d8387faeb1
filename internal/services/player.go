package services

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/spotsync/internal/models"
)

func deviceQuery(deviceID string) url.Values {
	q := url.Values{}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return q
}

// PlaybackState returns the current playback state, or nil when nothing is
// playing on any device (204 No Content).
func (c *SpotifyClient) PlaybackState(ctx context.Context) (*models.PlaybackState, error) {
	var state models.PlaybackState
	status, err := c.Do(ctx, http.MethodGet, "/me/player", nil, nil, &state)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &state, nil
}

// Devices lists the user's available Spotify Connect devices.
func (c *SpotifyClient) Devices(ctx context.Context) ([]models.Device, error) {
	var resp models.DevicesResponse
	if _, err := c.Do(ctx, http.MethodGet, "/me/player/devices", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// Play starts or resumes playback. An empty request resumes; a non-empty
// deviceID scopes the command to that device, which also moves playback there.
func (c *SpotifyClient) Play(ctx context.Context, deviceID string, req models.PlayRequest) error {
	var body any
	if !req.Empty() {
		body = req
	}
	_, err := c.Do(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), body, nil)
	return err
}

func (c *SpotifyClient) Pause(ctx context.Context, deviceID string) error {
	_, err := c.Do(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID), nil, nil)
	return err
}

func (c *SpotifyClient) Next(ctx context.Context, deviceID string) error {
	_, err := c.Do(ctx, http.MethodPost, "/me/player/next", deviceQuery(deviceID), nil, nil)
	return err
}

func (c *SpotifyClient) Previous(ctx context.Context, deviceID string) error {
	_, err := c.Do(ctx, http.MethodPost, "/me/player/previous", deviceQuery(deviceID), nil, nil)
	return err
}

func (c *SpotifyClient) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	q := deviceQuery(deviceID)
	q.Set("state", strconv.FormatBool(on))
	_, err := c.Do(ctx, http.MethodPut, "/me/player/shuffle", q, nil, nil)
	return err
}

func (c *SpotifyClient) SetRepeat(ctx context.Context, deviceID string, mode models.RepeatMode) error {
	q := deviceQuery(deviceID)
	q.Set("state", string(mode))
	_, err := c.Do(ctx, http.MethodPut, "/me/player/repeat", q, nil, nil)
	return err
}
