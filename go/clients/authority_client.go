package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// AuthorityClient reads display-facing data from the game operator's HTTP
// API. Both endpoints are scoped by the display session token; neither
// carries any reconciliation logic. Their results prime state that push
// events keep current afterwards.
type AuthorityClient struct {
	base *BaseClient
}

// PlacedBet is one cartela the authority has already accepted a bet for.
type PlacedBet struct {
	CartelaID int       `json:"cartelaId"`
	PlacedAt  time.Time `json:"placedAt"`
	Status    string    `json:"status"`
}

func NewAuthorityClient(baseURL string) *AuthorityClient {
	base := NewBaseClient(baseURL)
	base.SetHeader("Accept", "application/json")
	return &AuthorityClient{base: base}
}

// FetchSelectableCartelas returns the cartela ids a player may currently
// pick in this session.
func (c *AuthorityClient) FetchSelectableCartelas(ctx context.Context, sessionID string) ([]int, error) {
	endpoint := "/api/display/cartelas?s=" + url.QueryEscape(sessionID)
	body, err := c.base.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch selectable cartelas: %w", err)
	}

	var resp struct {
		Cartelas []int `json:"cartelas"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode selectable cartelas: %w", err)
	}
	return resp.Cartelas, nil
}

// FetchPlacedBets returns the cartelas with a confirmed bet in this
// session, used to build the placed-bet index behind the overlay.
func (c *AuthorityClient) FetchPlacedBets(ctx context.Context, sessionID string) ([]PlacedBet, error) {
	endpoint := "/api/display/placed-bets?s=" + url.QueryEscape(sessionID)
	body, err := c.base.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch placed bets: %w", err)
	}

	var resp struct {
		Bets []PlacedBet `json:"bets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode placed bets: %w", err)
	}
	return resp.Bets, nil
}
