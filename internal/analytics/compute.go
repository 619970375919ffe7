// Package analytics derives per-meeting statistics from the attendance log.
//
// Compute is pure: it takes an event's meetings and attendance entries and returns one row
// per meeting in date order. The Service loads the inputs from the store.
package analytics

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/pkg/utils"
)

// Unassigned labels attendees with neither a region nor a legacy label.
const Unassigned = "SEM REGIÃO"

// EventInput is everything Compute needs for one event.
type EventInput struct {
	Event    models.Event
	Meetings []models.Meeting
	Entries  []models.AttendanceEntry
}

// Filter narrows rows to meetings with at least one matching attendee. The name query and the
// region are checked independently: a meeting is kept when some attendee matches the query and
// some attendee, possibly another one, is in the region.
type Filter struct {
	Query    string     // case-insensitive name substring, or phone digits
	RegionID *uuid.UUID // structured region reference
}

// Empty reports whether the filter keeps every row.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Query) == "" && f.RegionID == nil
}

func (f Filter) inRegion(a *models.Attendee) bool {
	return a.RegionID != nil && *a.RegionID == *f.RegionID
}

func (f Filter) matchQuery(a *models.Attendee) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if strings.Contains(strings.ToLower(a.Name), q) {
		return true
	}
	digits := utils.CanonicalPhone(q)
	return digits != "" && strings.Contains(a.Phone, digits)
}

// Row is the statistics of one meeting.
type Row struct {
	Meeting        models.Meeting `json:"meeting"`
	Label          string         `json:"label"`
	Total          int            `json:"total"`
	NewCount       int            `json:"new_count"`
	MissingCount   int            `json:"missing_count"`
	ReturningCount int            `json:"returning_count"`
	ByRegion       map[string]int `json:"by_region"`
	NewIDs         []uuid.UUID    `json:"new_ids"`
	MissingIDs     []uuid.UUID    `json:"missing_ids"`
}

// RegionLabel is the label an attendee is counted under.
func RegionLabel(a *models.Attendee) string {
	if l := a.Label(); l != "" {
		return l
	}
	return Unassigned
}

// SortMeetings orders meetings by date, same-day meetings by insertion order.
func SortMeetings(ms []models.Meeting) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Date != ms[j].Date {
			return ms[i].Date.Before(ms[j].Date)
		}
		return ms[i].Seq < ms[j].Seq
	})
}

type meetingSet struct {
	ids       map[uuid.UUID]struct{}
	attendees []*models.Attendee
}

// group returns the distinct attendees of every meeting, keyed by meeting id.
func group(entries []models.AttendanceEntry) map[uuid.UUID]*meetingSet {
	sets := make(map[uuid.UUID]*meetingSet)
	for i := range entries {
		e := &entries[i]
		s := sets[e.Attendance.MeetingID]
		if s == nil {
			s = &meetingSet{ids: make(map[uuid.UUID]struct{})}
			sets[e.Attendance.MeetingID] = s
		}
		if _, seen := s.ids[e.Attendee.ID]; seen {
			continue
		}
		s.ids[e.Attendee.ID] = struct{}{}
		s.attendees = append(s.attendees, &e.Attendee)
	}
	return sets
}

// Compute returns one row per meeting in date order. New and missing counts compare each
// meeting with the one before it in the full sequence, so filtering drops rows without
// shifting the comparison. Every region seen anywhere in the event appears in every row.
func Compute(in EventInput, f Filter) []Row {
	meetings := append([]models.Meeting(nil), in.Meetings...)
	SortMeetings(meetings)
	sets := group(in.Entries)

	universe := make(map[string]struct{})
	for _, s := range sets {
		for _, a := range s.attendees {
			universe[RegionLabel(a)] = struct{}{}
		}
	}

	rows := make([]Row, 0, len(meetings))
	var prev *meetingSet
	for i, m := range meetings {
		curr := sets[m.ID]
		if curr == nil {
			curr = &meetingSet{ids: map[uuid.UUID]struct{}{}}
		}
		row := Row{
			Meeting:  m,
			Label:    m.Label(),
			Total:    len(curr.ids),
			ByRegion: make(map[string]int, len(universe)),
		}
		for label := range universe {
			row.ByRegion[label] = 0
		}
		for _, a := range curr.attendees {
			row.ByRegion[RegionLabel(a)]++
		}
		if i == 0 {
			row.NewCount = row.Total
			row.NewIDs = sortedIDs(curr.ids)
			row.MissingIDs = []uuid.UUID{}
		} else {
			row.NewIDs = difference(curr.ids, prev.ids)
			row.MissingIDs = difference(prev.ids, curr.ids)
			row.NewCount = len(row.NewIDs)
			row.MissingCount = len(row.MissingIDs)
		}
		row.ReturningCount = row.Total - row.NewCount
		prev = curr

		if !f.keeps(curr.attendees) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (f Filter) keeps(attendees []*models.Attendee) bool {
	if strings.TrimSpace(f.Query) != "" && !anyMatch(attendees, f.matchQuery) {
		return false
	}
	return f.RegionID == nil || anyMatch(attendees, f.inRegion)
}

func anyMatch(attendees []*models.Attendee, match func(*models.Attendee) bool) bool {
	for _, a := range attendees {
		if match(a) {
			return true
		}
	}
	return false
}

func difference(a, b map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0)
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sortUUIDs(out)
	return out
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sortUUIDs(out)
	return out
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

// RegionTotals sums the per-region counts of rows, leaving out zeros.
func RegionTotals(rows []Row) map[string]int {
	totals := make(map[string]int)
	for _, r := range rows {
		for label, n := range r.ByRegion {
			if n > 0 {
				totals[label] += n
			}
		}
	}
	return totals
}

// Absentees returns attendees present at some meeting of the event but not at meetingID,
// ordered by name.
func Absentees(in EventInput, meetingID uuid.UUID) []models.Attendee {
	present := make(map[uuid.UUID]struct{})
	for _, e := range in.Entries {
		if e.Attendance.MeetingID == meetingID {
			present[e.Attendee.ID] = struct{}{}
		}
	}
	seen := make(map[uuid.UUID]struct{})
	var out []models.Attendee
	for _, e := range in.Entries {
		id := e.Attendee.ID
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, e.Attendee)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MatrixRow is one attendee's presence across the event's meetings.
type MatrixRow struct {
	Attendee models.Attendee `json:"attendee"`
	Present  []bool          `json:"present"`
	Total    int             `json:"total"`
}

// Matrix is the attendee x meeting presence grid.
type Matrix struct {
	Meetings []models.Meeting `json:"meetings"`
	Rows     []MatrixRow      `json:"rows"`
}

// BuildMatrix lays out every attendee of the event against its meetings in date order.
// Rows are ordered by name.
func BuildMatrix(in EventInput) Matrix {
	meetings := append([]models.Meeting(nil), in.Meetings...)
	SortMeetings(meetings)
	col := make(map[uuid.UUID]int, len(meetings))
	for i, m := range meetings {
		col[m.ID] = i
	}

	byAttendee := make(map[uuid.UUID]*MatrixRow)
	var order []uuid.UUID
	for _, e := range in.Entries {
		c, ok := col[e.Attendance.MeetingID]
		if !ok {
			continue
		}
		r := byAttendee[e.Attendee.ID]
		if r == nil {
			r = &MatrixRow{Attendee: e.Attendee, Present: make([]bool, len(meetings))}
			byAttendee[e.Attendee.ID] = r
			order = append(order, e.Attendee.ID)
		}
		if !r.Present[c] {
			r.Present[c] = true
			r.Total++
		}
	}

	m := Matrix{Meetings: meetings, Rows: make([]MatrixRow, 0, len(order))}
	for _, id := range order {
		m.Rows = append(m.Rows, *byAttendee[id])
	}
	sort.SliceStable(m.Rows, func(i, j int) bool { return m.Rows[i].Attendee.Name < m.Rows[j].Attendee.Name })
	return m
}
