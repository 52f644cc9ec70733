package importer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/model"
)

type memStore struct {
	byRef []*model.Church
	err   error
}

func (m *memStore) UpsertBySourceRef(_ context.Context, c *model.Church) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	for i, old := range m.byRef {
		if *old.SourceRef == *c.SourceRef {
			c.ID = old.ID
			m.byRef[i] = c
			return c.ID, nil
		}
	}
	c.ID = uint64(len(m.byRef) + 1)
	m.byRef = append(m.byRef, c)
	return c.ID, nil
}

func (m *memStore) ListAfter(_ context.Context, after uint64, limit int) ([]model.Church, error) {
	var out []model.Church
	for _, c := range m.byRef {
		if c.ID > after && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

type countingIndex struct {
	batches [][]uint64
	reject  int
}

func (ix *countingIndex) Bulk(_ context.Context, cs []model.Church) (int, error) {
	ids := make([]uint64, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	ix.batches = append(ix.batches, ids)
	return ix.reject, nil
}

const tsv = "source_ref\tname\tdenomination\tcity\tstate\tlat\tlng\tschedule\tlanguages\n" +
	"osm-1\tFirst Baptist\tBaptist\tAustin\tTX\t30.27\t-97.74\tsunday=9:00 AM|11:00 AM; wednesday=7:00 PM\tEnglish;Spanish\n" +
	"\t\t\t\t\t\t\t\t\n" +
	"osm-2\tNo Location\tMethodist\tAustin\tTX\tabc\t-97.74\t\t\n" +
	"osm-3\tSt. Mary\tCatholic\tAustin\tTX\t30.26\t-97.73\t{\"Saturday\":[\"5:00 PM\"]}\tlatin\n" +
	"osm-1\tFirst Baptist Church\tBaptist\tAustin\tTX\t30.27\t-97.74\t\t\n"

func TestReaderTSV(t *testing.T) {
	rd, err := NewReader(strings.NewReader(tsv))
	require.NoError(t, err)

	c, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "osm-1", *c.SourceRef)
	assert.Equal(t, "US", c.Country)
	assert.Equal(t, model.Schedule{"sunday": {"9:00 AM", "11:00 AM"}, "wednesday": {"7:00 PM"}}, c.Schedule)
	assert.Equal(t, model.Languages{"english", "spanish"}, c.Languages)

	_, err = rd.Next()
	var rowErr RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 4, rowErr.Line)
	assert.Contains(t, rowErr.Reason, "latitude")

	c, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, model.Schedule{"saturday": {"5:00 PM"}}, c.Schedule)

	_, err = rd.Next()
	require.NoError(t, err)
	_, err = rd.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderCSVWithAliases(t *testing.T) {
	in := "\ufeffID,Name,Address,Zip,Latitude,Longitude,Founded\n" +
		`ref-9,"Grace Chapel, North",12 Elm St,73301,30.3,-97.7,1921` + "\n"
	rd, err := NewReader(strings.NewReader(in))
	require.NoError(t, err)
	c, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "Grace Chapel, North", c.Name)
	assert.Equal(t, "12 Elm St", c.Street)
	assert.Equal(t, "73301", c.PostalCode)
	require.NotNil(t, c.FoundedYear)
	assert.EqualValues(t, 1921, *c.FoundedYear)
}

func TestReaderRequiresCoreColumns(t *testing.T) {
	_, err := NewReader(strings.NewReader("name,city\nX,Y\n"))
	assert.ErrorContains(t, err, "source_ref")

	_, err = NewReader(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseScheduleRejectsGarbage(t *testing.T) {
	_, err := ParseSchedule("sunday 9am")
	assert.Error(t, err)
	_, err = ParseSchedule("{not json")
	assert.Error(t, err)
	s, err := ParseSchedule("")
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestRunUpsertsAndReindexes(t *testing.T) {
	store := &memStore{}
	idx := &countingIndex{}
	invalidated := 0
	im := &Importer{
		Store: store,
		Index: idx,
		Invalidate: func(context.Context) error {
			invalidated++
			return nil
		},
		Log:       zap.NewNop(),
		BatchSize: 1,
	}

	res, err := im.Run(context.Background(), strings.NewReader(tsv))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)

	require.Len(t, store.byRef, 2)
	assert.Equal(t, "First Baptist Church", store.byRef[0].Name)
	assert.Equal(t, 1, invalidated)

	assert.Equal(t, [][]uint64{{1}, {2}}, idx.batches)
	assert.Equal(t, 2, res.Indexed)
}

func TestRunStopsOnStoreError(t *testing.T) {
	im := &Importer{Store: &memStore{err: errors.New("db gone")}, Log: zap.NewNop()}
	res, err := im.Run(context.Background(), strings.NewReader(tsv))
	assert.EqualError(t, err, "db gone")
	assert.Zero(t, res.Imported)
}

func TestRunSkipsOversizedRows(t *testing.T) {
	in := "source_ref,name,lat,lng,description\n" +
		strings.Repeat("r", 65) + ",Long Ref,30.1,-97.1,\n" +
		"osm-9,Long Text,30.1,-97.1," + strings.Repeat("d", model.MaxDescriptionBytes+1) + "\n" +
		"osm-10,Fits,30.1,-97.1,short\n"
	store := &memStore{}
	im := &Importer{Store: store, Log: zap.NewNop()}

	res, err := im.Run(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0].Reason, "source_ref")
	assert.Contains(t, res.Errors[1].Reason, "description")
	require.Len(t, store.byRef, 1)
	assert.Equal(t, "osm-10", *store.byRef[0].SourceRef)
}
