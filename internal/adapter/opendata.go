package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/fetcher"
	"github.com/pricewaze/ingest-cli/internal/model"
)

// OpenDataAdapter reads government CSV drops from an FTP server. Exports are
// organized one file per city (lowercased, spaces as underscores). Enabled
// only when an FTP address is configured.
type OpenDataAdapter struct {
	ftpAddr string
	ftp     *fetcher.FTPFetcher
}

func NewOpenDataAdapter(ftpAddr string, f *fetcher.FTPFetcher) *OpenDataAdapter {
	if f == nil {
		f = fetcher.NewFTPFetcher(fetcher.FTPOptions{})
	}
	return &OpenDataAdapter{ftpAddr: ftpAddr, ftp: f}
}

func (a *OpenDataAdapter) Name() string         { return "opendata" }
func (a *OpenDataAdapter) Source() model.Source { return model.SourceOpenData }
func (a *OpenDataAdapter) Weight() float64      { return model.WeightFor(model.SourceOpenData) }
func (a *OpenDataAdapter) Enabled() bool        { return a.ftpAddr != "" }

func (a *OpenDataAdapter) GetListings(ctx context.Context, zone model.Zone) ([]model.RawProperty, error) {
	body, err := a.ftp.Download(ctx, a.exportURL(zone.City))
	if err != nil {
		return nil, eris.Wrapf(err, "opendata: download export for %s", zone.City)
	}
	defer body.Close()

	header, rows, err := fetcher.ReadCSV(body, true)
	if err != nil {
		return nil, eris.Wrapf(err, "opendata: parse export for %s", zone.City)
	}

	raws := fetcher.MapRows(header, rows)
	zap.L().Info("opendata export loaded",
		zap.String("city", zone.City), zap.Int("rows", len(raws)))
	return raws, nil
}

// GetMarketStats returns nil: the portal publishes raw listings only, so
// stats come from the ingested data instead.
func (a *OpenDataAdapter) GetMarketStats(_ context.Context, _ model.Zone) (*MarketStats, error) {
	return nil, nil
}

func (a *OpenDataAdapter) exportURL(city string) string {
	slug := strings.ReplaceAll(strings.ToLower(city), " ", "_")
	return fmt.Sprintf("ftp://%s/exports/%s.csv", a.ftpAddr, slug)
}

var _ Adapter = (*OpenDataAdapter)(nil)
