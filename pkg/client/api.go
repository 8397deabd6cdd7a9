package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type AuthClient struct {
	httpClient *HttpClient
}

func NewAuthClient(baseURL string) *AuthClient {
	return &AuthClient{httpClient: NewHttpClient(baseURL)}
}

func (c *AuthClient) Register(ctx context.Context, email, password string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/auth/register", map[string]string{"email": email, "password": password})
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

// Token logs in and returns the bearer token.
func (c *AuthClient) Token(ctx context.Context, email, password string) (string, error) {
	resp, err := c.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := resp.DecodeJSON(&body); err != nil || body.Token == "" {
		return "", fmt.Errorf("login failed with status %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}
	return body.Token, nil
}

func (c *AuthClient) Profile(ctx context.Context, token string) (*Response, error) {
	return c.httpClient.WithToken(token).GET(ctx, "/api/users/profile")
}

type StationClient struct {
	httpClient *HttpClient
}

func NewStationClient(baseURL string) *StationClient {
	return &StationClient{httpClient: NewHttpClient(baseURL)}
}

func (c *StationClient) GetAll(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/stations")
}

func (c *StationClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/stations/id/"+url.PathEscape(id))
}

type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL, token string) *ReservationClient {
	return &ReservationClient{httpClient: NewHttpClient(baseURL).WithToken(token)}
}

func (c *ReservationClient) Create(ctx context.Context, stationID string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/reservations", map[string]string{"stationId": stationID})
}

// CreateIdempotent sends the reservation with an Idempotency-Key header.
func (c *ReservationClient) CreateIdempotent(ctx context.Context, stationID, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(ctx, "/api/reservations",
		map[string]string{"stationId": stationID},
		map[string]string{"Idempotency-Key": key},
	)
}

func (c *ReservationClient) GetAll(ctx context.Context, limit int, offset int64) (*Response, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))
	return c.httpClient.GET(ctx, "/api/reservations?"+q.Encode())
}

func (c *ReservationClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/reservations/id/"+url.PathEscape(id))
}

func (c *ReservationClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/reservations/id/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *ReservationClient) QRCode(ctx context.Context, id string, size int) (*Response, error) {
	return c.httpClient.GET(ctx, fmt.Sprintf("/api/reservations/id/%s/qr.png?size=%d", url.PathEscape(id), size))
}

func (c *ReservationClient) Verify(ctx context.Context, code string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/reservations/verify", map[string]string{"qrCode": code})
}

func (c *ReservationClient) Complete(ctx context.Context, code string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/reservations/complete", map[string]string{"qrCode": code})
}
