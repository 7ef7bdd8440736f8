package reader

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rpattn/permitsync/internal/domain"
)

// arcgisBaseQuery is the fixed MapServer query; per-source query settings
// override individual parameters.
var arcgisBaseQuery = map[string]string{
	"where":     "1=1",
	"outFields": "*",
	"f":         "json",
}

// ArcGIS reads an ArcGIS MapServer layer query endpoint. Records are the
// attribute maps of the returned features.
type ArcGIS struct {
	Client Doer
}

type arcgisResponse struct {
	Features []map[string]any `json:"features"`
	Error    *arcgisError     `json:"error,omitempty"`
}

type arcgisError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r *ArcGIS) Read(ctx context.Context, source domain.SourceDefinition) ([]map[string]any, error) {
	if source.URL == "" {
		return nil, fmt.Errorf("%w: source %s has no url", domain.ErrInvalidSourceData, source.Key)
	}

	query := url.Values{}
	for key, value := range arcgisBaseQuery {
		query.Set(key, value)
	}
	for key, value := range source.Query {
		query.Set(key, value)
	}

	endpoint := strings.TrimRight(source.URL, "/")
	if !strings.HasSuffix(endpoint, "/query") {
		endpoint += "/query"
	}
	endpoint += "?" + query.Encode()

	var resp arcgisResponse
	if err := getJSON(ctx, r.Client, source, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: source %s mapserver error %d: %s",
			domain.ErrFetchFailed, source.Key, resp.Error.Code, resp.Error.Message)
	}

	records := make([]map[string]any, 0, len(resp.Features))
	for _, feature := range resp.Features {
		records = append(records, featureAttributes(feature))
	}
	return records, nil
}

// featureAttributes prefers the attributes map, then properties (GeoJSON
// style), then the raw feature itself.
func featureAttributes(feature map[string]any) map[string]any {
	if attrs, ok := feature["attributes"].(map[string]any); ok {
		return attrs
	}
	if props, ok := feature["properties"].(map[string]any); ok {
		return props
	}
	return feature
}
