package patents

import (
	"context"
	"math"
	"sort"
	"strings"
)

// StaticClient searches a fixed in-memory catalog. It is used in dev and tests
// when no search endpoint is configured.
type StaticClient struct {
	Catalog []Candidate
	Limit   int
}

// NewStaticClient returns a client over DefaultCatalog.
func NewStaticClient() *StaticClient {
	return &StaticClient{Catalog: DefaultCatalog(), Limit: defaultResultsPerQuery}
}

// Search scores every catalog entry by term overlap with the query and
// returns the best matches. Relevance is in (0, 1].
func (s *StaticClient) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(q.Text + " " + q.Focus)
	out := make([]Candidate, 0, len(s.Catalog))
	for _, c := range s.Catalog {
		doc := tokenize(c.Title + " " + c.Abstract)
		hits := 0
		for term := range terms {
			if _, ok := doc[term]; ok {
				hits++
			}
		}
		score := 0.1
		if len(terms) > 0 {
			score += 0.9 * float64(hits) / float64(len(terms))
		}
		c.Relevance = math.Round(score*1000) / 1000
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	limit := s.Limit
	if limit <= 0 {
		limit = defaultResultsPerQuery
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func tokenize(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(field) >= 4 {
			out[field] = struct{}{}
		}
	}
	return out
}

// DefaultCatalog is a small fictional reference set.
func DefaultCatalog() []Candidate {
	return []Candidate{
		{PatentNumber: "US10000001B2", Title: "Photocatalytic self-cleaning coating for solar panels", Assignee: "Helio Materials Inc.", FilingDate: "2016-03-14", LegalStatus: StatusActive, Abstract: "A titanium dioxide coating layer that breaks down organic deposits on photovoltaic glass under sunlight."},
		{PatentNumber: "US10000002B1", Title: "Wireless charging surface embedded in furniture", Assignee: "Induct Living LLC", FilingDate: "2017-07-02", LegalStatus: StatusActive, Abstract: "Induction coils mounted beneath a table surface deliver power to mobile devices placed on marked zones."},
		{PatentNumber: "US20210000003A1", Title: "Machine learning model for predicting battery degradation", Assignee: "Cellwise Analytics", FilingDate: "2020-11-20", LegalStatus: StatusPending, Abstract: "A neural network trained on charge cycles and temperature data estimates remaining battery capacity."},
		{PatentNumber: "US9000004B2", Title: "Rotating drum mixer with adjustable paddles", Assignee: "Blendtech Industrial", FilingDate: "2012-05-09", LegalStatus: StatusExpired, Abstract: "A drum mixer whose paddle angle can be adjusted during operation to control shear."},
		{PatentNumber: "US10000005B2", Title: "Drone delivery landing platform with secure storage", Assignee: "SkyDrop Logistics", FilingDate: "2018-02-27", LegalStatus: StatusActive, Abstract: "A rooftop platform with a locking compartment that receives packages from unmanned aerial vehicles."},
		{PatentNumber: "US20220000006A1", Title: "Smart irrigation controller using soil moisture sensors", Assignee: "Verdant Systems", FilingDate: "2021-06-15", LegalStatus: StatusPending, Abstract: "Soil moisture and weather forecast data drive a valve controller that schedules watering."},
		{PatentNumber: "US10000007B1", Title: "Wearable glucose monitor with optical sensor", Assignee: "Lumen Health", FilingDate: "2018-09-30", LegalStatus: StatusActive, Abstract: "A wrist worn device estimates blood glucose from near infrared optical sensor readings."},
		{PatentNumber: "US8000008B2", Title: "Biodegradable food packaging film from seaweed", Assignee: "Oceanwrap Ltd.", FilingDate: "2009-01-12", LegalStatus: StatusExpired, Abstract: "An alginate based film that dissolves in water and is suitable for single use food packaging."},
		{PatentNumber: "US10000009B2", Title: "Voice assistant with on-device speech recognition", Assignee: "Quietware Corp.", FilingDate: "2019-04-04", LegalStatus: StatusActive, Abstract: "Speech recognition runs on a local neural accelerator so audio never leaves the device."},
		{PatentNumber: "US20230000010A1", Title: "Modular battery pack for electric bicycles", Assignee: "Pedalpower GmbH", FilingDate: "2022-08-08", LegalStatus: StatusPending, Abstract: "Hot swappable battery modules slide into a bicycle frame and share a common management circuit."},
		{PatentNumber: "US10000011B1", Title: "Augmented reality furniture placement application", Assignee: "Roomsight Inc.", FilingDate: "2017-12-01", LegalStatus: StatusActive, Abstract: "A mobile application renders scaled furniture models in a camera view of the user's room."},
		{PatentNumber: "US9000012B2", Title: "Heat exchanger with additively manufactured lattice", Assignee: "Thermoform Aero", FilingDate: "2014-10-22", LegalStatus: StatusActive, Abstract: "A lattice core produced by metal additive manufacturing increases heat transfer surface area."},
	}
}

var _ Client = (*StaticClient)(nil)
