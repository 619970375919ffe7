package analytics

import (
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca/backend/internal/models"
)

type fixture struct {
	in        EventInput
	attendees map[string]models.Attendee
}

func day(d int) civil.Date {
	return civil.Date{Year: 2025, Month: time.June, Day: d}
}

func newFixture() *fixture {
	return &fixture{
		in:        EventInput{Event: models.Event{ID: uuid.New(), Name: "E", StartDate: day(1), EndDate: day(30)}},
		attendees: make(map[string]models.Attendee),
	}
}

func (f *fixture) person(name, region string) models.Attendee {
	phone := fmt.Sprintf("55119%07d", len(f.attendees)+1)
	a := models.Attendee{ID: uuid.New(), Name: name, Phone: phone, RegionLabel: region}
	f.attendees[name] = a
	return a
}

func (f *fixture) meeting(d int, seq int64, names ...string) models.Meeting {
	m := models.Meeting{ID: uuid.New(), EventID: f.in.Event.ID, Date: day(d), Seq: seq}
	f.in.Meetings = append(f.in.Meetings, m)
	for _, n := range names {
		a := f.attendees[n]
		f.in.Entries = append(f.in.Entries, models.AttendanceEntry{
			Attendance: models.Attendance{ID: uuid.New(), MeetingID: m.ID, AttendeeID: a.ID},
			Attendee:   a,
		})
	}
	return m
}

func TestComputeDelta(t *testing.T) {
	f := newFixture()
	f.person("A", "X")
	f.person("B", "X")
	f.person("C", "Y")
	f.meeting(3, 1, "A", "B")
	f.meeting(10, 2, "B", "C")

	rows := Compute(f.in, Filter{})
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 2, first.NewCount)
	assert.Equal(t, 0, first.MissingCount)
	assert.Equal(t, 0, first.ReturningCount)

	second := rows[1]
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, 1, second.NewCount)
	assert.Equal(t, 1, second.MissingCount)
	assert.Equal(t, 1, second.ReturningCount)
	assert.Equal(t, []uuid.UUID{f.attendees["C"].ID}, second.NewIDs)
	assert.Equal(t, []uuid.UUID{f.attendees["A"].ID}, second.MissingIDs)
}

func TestComputeOrdersByDateThenInsertion(t *testing.T) {
	f := newFixture()
	f.person("A", "X")
	late := f.meeting(20, 1, "A")
	second := f.meeting(5, 3)
	first := f.meeting(5, 2, "A")

	rows := Compute(f.in, Filter{})
	require.Len(t, rows, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, late.ID},
		[]uuid.UUID{rows[0].Meeting.ID, rows[1].Meeting.ID, rows[2].Meeting.ID})
	// Consecutive comparison only: A misses the second meeting and is new again in the third.
	assert.Equal(t, 1, rows[1].MissingCount)
	assert.Equal(t, 1, rows[2].NewCount)
}

func TestComputeRegionAlignment(t *testing.T) {
	f := newFixture()
	f.person("A", "X")
	f.person("B", "X")
	f.person("C", "Y")
	f.meeting(3, 1, "A", "B")
	f.meeting(10, 2, "C")

	rows := Compute(f.in, Filter{})
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]int{"X": 2, "Y": 0}, rows[0].ByRegion)
	assert.Equal(t, map[string]int{"X": 0, "Y": 1}, rows[1].ByRegion)
	_, hasZ := rows[1].ByRegion["Z"]
	assert.False(t, hasZ)
}

func TestComputeRegionFallbacks(t *testing.T) {
	f := newFixture()
	regionID := uuid.New()
	structured := f.person("A", "LEGACY")
	structured.RegionID = &regionID
	structured.RegionName = "NORTE"
	f.attendees["A"] = structured
	f.person("B", "LEGACY")
	f.person("C", "")
	f.meeting(3, 1, "A", "B", "C")

	rows := Compute(f.in, Filter{})
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]int{"NORTE": 1, "LEGACY": 1, Unassigned: 1}, rows[0].ByRegion)
}

func TestComputeFilter(t *testing.T) {
	f := newFixture()
	regionID := uuid.New()
	f.person("ANA", "X")
	bruno := f.person("BRUNO", "Y")
	bruno.RegionID = &regionID
	bruno.RegionName = "Y"
	f.attendees["BRUNO"] = bruno
	f.person("CARLA", "X")
	m1 := f.meeting(3, 1, "ANA", "CARLA")
	m2 := f.meeting(10, 2, "BRUNO", "CARLA")
	m3 := f.meeting(17, 3, "ANA")

	tests := []struct {
		name   string
		filter Filter
		want   []uuid.UUID
	}{
		{"no filter keeps all", Filter{}, []uuid.UUID{m1.ID, m2.ID, m3.ID}},
		{"name substring case-insensitive", Filter{Query: "brU"}, []uuid.UUID{m2.ID}},
		{"phone digits", Filter{Query: f.attendees["ANA"].Phone}, []uuid.UUID{m1.ID, m3.ID}},
		{"region", Filter{RegionID: &regionID}, []uuid.UUID{m2.ID}},
		{"name and region checked independently", Filter{Query: "carla", RegionID: &regionID}, []uuid.UUID{m2.ID}},
		{"name and region both required", Filter{Query: "ana", RegionID: &regionID}, nil},
		{"no match drops everything", Filter{Query: "zz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []uuid.UUID
			for _, r := range Compute(f.in, tt.filter) {
				got = append(got, r.Meeting.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("deltas keep the unfiltered neighbour", func(t *testing.T) {
		rows := Compute(f.in, Filter{Query: "ana"})
		require.Len(t, rows, 2)
		// m3 is compared with m2, which the filter dropped.
		assert.Equal(t, 1, rows[1].NewCount)
		assert.Equal(t, 2, rows[1].MissingCount)
		assert.Equal(t, 1, rows[1].Total)
	})
}

func TestComputeCountsDistinctAttendees(t *testing.T) {
	f := newFixture()
	f.person("A", "X")
	f.meeting(3, 1, "A", "A")

	rows := Compute(f.in, Filter{})
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Total)
	assert.Equal(t, 1, rows[0].ByRegion["X"])
}

func TestRegionTotals(t *testing.T) {
	rows := []Row{
		{ByRegion: map[string]int{"X": 2, "Y": 0}},
		{ByRegion: map[string]int{"X": 1, "Y": 3}},
	}
	assert.Equal(t, map[string]int{"X": 3, "Y": 3}, RegionTotals(rows))
	assert.Empty(t, RegionTotals([]Row{{ByRegion: map[string]int{"X": 0}}}))
}

func TestAbsentees(t *testing.T) {
	f := newFixture()
	f.person("CARLA", "X")
	f.person("ANA", "X")
	f.person("BRUNO", "X")
	f.meeting(3, 1, "ANA", "BRUNO", "CARLA")
	m2 := f.meeting(10, 2, "BRUNO")

	got := Absentees(f.in, m2.ID)
	require.Len(t, got, 2)
	assert.Equal(t, "ANA", got[0].Name)
	assert.Equal(t, "CARLA", got[1].Name)
}

func TestBuildMatrix(t *testing.T) {
	f := newFixture()
	f.person("BRUNO", "X")
	f.person("ANA", "Y")
	m2 := f.meeting(10, 2, "BRUNO")
	m1 := f.meeting(3, 1, "ANA", "BRUNO")

	mx := BuildMatrix(f.in)
	require.Len(t, mx.Meetings, 2)
	assert.Equal(t, m1.ID, mx.Meetings[0].ID)
	assert.Equal(t, m2.ID, mx.Meetings[1].ID)
	require.Len(t, mx.Rows, 2)
	assert.Equal(t, "ANA", mx.Rows[0].Attendee.Name)
	assert.Equal(t, []bool{true, false}, mx.Rows[0].Present)
	assert.Equal(t, 1, mx.Rows[0].Total)
	assert.Equal(t, []bool{true, true}, mx.Rows[1].Present)
	assert.Equal(t, 2, mx.Rows[1].Total)
}
