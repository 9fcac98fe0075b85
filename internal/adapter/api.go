package adapter

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pricewaze/ingest-cli/internal/fetcher"
	"github.com/pricewaze/ingest-cli/internal/model"
)

// APIAdapter pulls listings and market stats from a commercial real estate
// API. Enabled only when a base URL is configured.
type APIAdapter struct {
	baseURL string
	client  *fetcher.HTTPFetcher
}

func NewAPIAdapter(baseURL, apiKey string, client *fetcher.HTTPFetcher) *APIAdapter {
	if client == nil {
		headers := map[string]string{}
		if apiKey != "" {
			headers["Authorization"] = "Bearer " + apiKey
		}
		client = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Headers: headers})
	}
	return &APIAdapter{baseURL: baseURL, client: client}
}

func (a *APIAdapter) Name() string         { return "paid_api" }
func (a *APIAdapter) Source() model.Source { return model.SourceAPI }
func (a *APIAdapter) Weight() float64      { return model.WeightFor(model.SourceAPI) }
func (a *APIAdapter) Enabled() bool        { return a.baseURL != "" }

func (a *APIAdapter) GetListings(ctx context.Context, zone model.Zone) ([]model.RawProperty, error) {
	var payload struct {
		Listings []model.RawProperty `json:"listings"`
	}
	if err := a.client.GetJSON(ctx, a.endpoint("listings", zone), &payload); err != nil {
		return nil, err
	}
	return payload.Listings, nil
}

func (a *APIAdapter) GetMarketStats(ctx context.Context, zone model.Zone) (*MarketStats, error) {
	var stats MarketStats
	if err := a.client.GetJSON(ctx, a.endpoint("stats", zone), &stats); err != nil {
		return nil, err
	}
	if stats.TotalListings == 0 {
		return nil, nil
	}
	stats.ZoneID = zone.ID
	stats.Source = a.Name()
	return &stats, nil
}

// GetRecentSales implements SalesProvider.
func (a *APIAdapter) GetRecentSales(ctx context.Context, zone model.Zone) ([]SaleRecord, error) {
	var payload struct {
		Sales []SaleRecord `json:"sales"`
	}
	if err := a.client.GetJSON(ctx, a.endpoint("sales", zone), &payload); err != nil {
		return nil, err
	}
	for i := range payload.Sales {
		payload.Sales[i].Source = a.Name()
	}
	return payload.Sales, nil
}

// GetHistoricalPrices implements HistoryProvider.
func (a *APIAdapter) GetHistoricalPrices(ctx context.Context, zone model.Zone, months int) ([]PriceHistory, error) {
	u := a.endpoint("history", zone) + fmt.Sprintf("&months=%d", months)
	var payload struct {
		History []PriceHistory `json:"history"`
	}
	if err := a.client.GetJSON(ctx, u, &payload); err != nil {
		return nil, err
	}
	return payload.History, nil
}

func (a *APIAdapter) endpoint(path string, zone model.Zone) string {
	return fmt.Sprintf("%s/%s?zone=%s&city=%s",
		a.baseURL, path, url.QueryEscape(zone.Name), url.QueryEscape(zone.City))
}

var _ interface {
	Adapter
	SalesProvider
	HistoryProvider
} = (*APIAdapter)(nil)
