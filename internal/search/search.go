// Package search keeps an Elasticsearch copy of the church directory for
// fuzzy text search.  MySQL stays the source of truth; the index can be
// rebuilt from it at any time.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/olivere/elastic/v7"

	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/repository"
)

// Doc is the indexed form of a church.
type Doc struct {
	ID           uint64           `json:"id"`
	Name         string           `json:"name"`
	Denomination string           `json:"denomination"`
	City         string           `json:"city"`
	State        string           `json:"state"`
	Description  string           `json:"description"`
	Location     elastic.GeoPoint `json:"location"`
	Schedule     model.Schedule   `json:"schedule"`
	Languages    model.Languages  `json:"languages"`
	ServiceDays  []string         `json:"service_days"`
	ImageURL     string           `json:"image_url,omitempty"`
	Verified     bool             `json:"verified"`
}

// DocFrom converts a stored church to its index document.
func DocFrom(c *model.Church) Doc {
	return Doc{
		ID:           c.ID,
		Name:         c.Name,
		Denomination: c.Denomination,
		City:         c.City,
		State:        c.State,
		Description:  c.Description,
		Location:     elastic.GeoPoint{Lat: c.Latitude, Lon: c.Longitude},
		Schedule:     c.Schedule,
		Languages:    c.Languages,
		ServiceDays:  serviceDays(c.Schedule),
		ImageURL:     c.ImageURL,
		Verified:     c.Verified,
	}
}

// serviceDays lists the weekdays that have at least one service, in
// calendar order.
func serviceDays(s model.Schedule) []string {
	days := []string{}
	for _, d := range model.Weekdays {
		if len(s[d]) > 0 {
			days = append(days, d)
		}
	}
	return days
}

// Summary converts a document back to the list representation.
func (d Doc) Summary() model.ChurchSummary {
	return model.ChurchSummary{
		ID:           d.ID,
		Name:         d.Name,
		Denomination: d.Denomination,
		City:         d.City,
		State:        d.State,
		Latitude:     d.Location.Lat,
		Longitude:    d.Location.Lon,
		Schedule:     d.Schedule,
		Languages:    d.Languages,
		ImageURL:     d.ImageURL,
		Verified:     d.Verified,
	}
}

// mapping stores the filterable text fields twice: analyzed for matching and
// as a lower-cased keyword ("raw") for exact filters.
const mapping = `{
  "settings": {
    "analysis": {
      "normalizer": {
        "lower": {"type": "custom", "filter": ["lowercase"]}
      }
    }
  },
  "mappings": {
    "properties": {
      "id":           {"type": "long"},
      "name":         {"type": "text"},
      "denomination": {"type": "text", "fields": {"raw": {"type": "keyword", "normalizer": "lower"}}},
      "city":         {"type": "text", "fields": {"raw": {"type": "keyword", "normalizer": "lower"}}},
      "state":        {"type": "text", "fields": {"raw": {"type": "keyword", "normalizer": "lower"}}},
      "description":  {"type": "text"},
      "location":     {"type": "geo_point"},
      "schedule":     {"type": "object", "enabled": false},
      "languages":    {"type": "keyword"},
      "service_days": {"type": "keyword"},
      "image_url":    {"type": "keyword", "index": false},
      "verified":     {"type": "boolean"}
    }
  }
}`

// searchFields are matched by the text query; name matches weigh most.
var searchFields = []string{"name^3", "denomination", "city", "description"}

// Index is a church index in one Elasticsearch cluster.
type Index struct {
	client *elastic.Client
	name   string
}

// NewClient connects to url.  Sniffing is off so the cluster may sit behind
// a proxy or in a single container.
func NewClient(url string) (*elastic.Client, error) {
	return elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
}

// New wraps an existing client.
func New(client *elastic.Client, name string) *Index {
	return &Index{client: client, name: name}
}

// EnsureIndex creates the index with its mapping unless it exists.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	exists, err := ix.client.IndexExists(ix.name).Do(ctx)
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	if exists {
		return nil
	}
	res, err := ix.client.CreateIndex(ix.name).BodyString(mapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("create index %s not acknowledged", ix.name)
	}
	return nil
}

// IndexChurch adds or replaces one church.
func (ix *Index) IndexChurch(ctx context.Context, c *model.Church) error {
	_, err := ix.client.Index().
		Index(ix.name).
		Id(strconv.FormatUint(c.ID, 10)).
		BodyJson(DocFrom(c)).
		Do(ctx)
	return err
}

// Bulk indexes churches in one request and returns how many items the
// cluster rejected.
func (ix *Index) Bulk(ctx context.Context, churches []model.Church) (int, error) {
	if len(churches) == 0 {
		return 0, nil
	}
	req := ix.client.Bulk().Index(ix.name)
	for i := range churches {
		c := &churches[i]
		req = req.Add(elastic.NewBulkIndexRequest().Id(strconv.FormatUint(c.ID, 10)).Doc(DocFrom(c)))
	}
	res, err := req.Do(ctx)
	if err != nil {
		return 0, err
	}
	return len(res.Failed()), nil
}

// Query builds the Elasticsearch query for q.  Every term must match one of
// the search fields, with edit-distance tolerance; the exact filters are
// applied on the raw keyword fields.
func Query(q repository.ChurchQuery) elastic.Query {
	b := elastic.NewBoolQuery()
	for _, term := range q.Terms {
		b.Must(elastic.NewMultiMatchQuery(term, searchFields...).Fuzziness("AUTO"))
	}
	if q.State != "" {
		b.Filter(elastic.NewTermQuery("state.raw", strings.ToLower(q.State)))
	}
	if q.City != "" {
		b.Filter(elastic.NewTermQuery("city.raw", strings.ToLower(q.City)))
	}
	if q.Denomination != "" {
		b.Filter(elastic.NewTermQuery("denomination.raw", strings.ToLower(q.Denomination)))
	}
	if q.Language != "" {
		b.Filter(elastic.NewTermQuery("languages", strings.ToLower(q.Language)))
	}
	if q.Day != "" {
		b.Filter(elastic.NewTermQuery("service_days", strings.ToLower(q.Day)))
	}
	if q.Verified != nil {
		b.Filter(elastic.NewTermQuery("verified", *q.Verified))
	}
	if q.Point != nil {
		b.Filter(elastic.NewGeoDistanceQuery("location").
			Point(q.Point.Lat, q.Point.Lng).
			Distance(strconv.FormatFloat(q.RadiusKm, 'f', -1, 64) + "km"))
	}
	return b
}

// Search runs q and returns one page of matches, best match first, and the
// total hit count.
func (ix *Index) Search(ctx context.Context, q repository.ChurchQuery) ([]model.ChurchSummary, int64, error) {
	res, err := ix.client.Search().
		Index(ix.name).
		Query(Query(q)).
		SortBy(elastic.NewScoreSort(), elastic.NewFieldSort("id").Asc()).
		From(q.Page.Offset()).
		Size(q.Page.Limit()).
		TrackTotalHits(true).
		Do(ctx)
	if err != nil {
		return nil, 0, err
	}

	out := make([]model.ChurchSummary, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var d Doc
		if err := json.Unmarshal(hit.Source, &d); err != nil {
			return nil, 0, fmt.Errorf("decode hit %s: %w", hit.Id, err)
		}
		out = append(out, d.Summary())
	}
	return out, res.TotalHits(), nil
}
