package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/models"
)

const dateLayout = "02/01/2006"

func formatDate(m models.Meeting) string {
	return m.Date.In(time.UTC).Format(dateLayout)
}

// DashboardTable lists every analytics row of the dashboard, one region column per label seen
// in any event.
func DashboardTable(d *analytics.Dashboard) Table {
	labels := make(map[string]struct{})
	for _, ev := range d.Events {
		for _, r := range ev.Rows {
			for l := range r.ByRegion {
				labels[l] = struct{}{}
			}
		}
	}
	regions := make([]string, 0, len(labels))
	for l := range labels {
		regions = append(regions, l)
	}
	sort.Strings(regions)

	t := Table{
		Title:   "Estatísticas de presença",
		Columns: []string{"Evento", "Reunião", "Data", "Total", "Novos", "Faltaram", "Retornaram"},
	}
	for _, l := range regions {
		t.Columns = append(t.Columns, "Região "+l)
	}
	for _, ev := range d.Events {
		for _, r := range ev.Rows {
			row := []any{ev.Event.Name, r.Label, formatDate(r.Meeting), r.Total, r.NewCount, r.MissingCount, r.ReturningCount}
			for _, l := range regions {
				row = append(row, r.ByRegion[l])
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// MeetingTable is the attendance list of one meeting, ordered by attendee name.
func MeetingTable(m models.Meeting, entries []models.AttendanceEntry) Table {
	sorted := append([]models.AttendanceEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Attendee.Name < sorted[j].Attendee.Name })

	t := Table{
		Title:    "Lista de presença",
		Subtitle: fmt.Sprintf("%s - %s", m.Label(), formatDate(m)),
		Columns:  []string{"Código", "Nome", "Telefone", "Região", "Confirmado em"},
		Rows:     make([][]any, 0, len(sorted)),
	}
	for i, e := range sorted {
		t.Rows = append(t.Rows, []any{
			i + 1,
			e.Attendee.Name,
			e.Attendee.Phone,
			analytics.RegionLabel(&e.Attendee),
			e.Attendance.ConfirmedAt.Format(dateLayout + " 15:04"),
		})
	}
	t.Totals = []any{"", "", "", "Total presentes", len(sorted)}
	return t
}

// MatrixTable marks each attendee PRESENTE or FALTOU per meeting, with a totals row of
// present and absent counts per meeting.
func MatrixTable(e models.Event, mx analytics.Matrix) Table {
	t := Table{
		Title:    "Lista de presença",
		Subtitle: e.Name,
		Columns:  []string{"Código", "Nome", "Telefone", "Região"},
		Rows:     make([][]any, 0, len(mx.Rows)),
	}
	for _, m := range mx.Meetings {
		t.Columns = append(t.Columns, formatDate(m))
	}
	t.Columns = append(t.Columns, "Total")

	present := make([]int, len(mx.Meetings))
	for i, r := range mx.Rows {
		row := []any{i + 1, r.Attendee.Name, r.Attendee.Phone, analytics.RegionLabel(&r.Attendee)}
		for c, ok := range r.Present {
			if ok {
				present[c]++
				row = append(row, Present)
			} else {
				row = append(row, Absent)
			}
		}
		t.Rows = append(t.Rows, append(row, r.Total))
	}
	if len(mx.Rows) > 0 {
		totals := []any{"", "", "", "Totais:"}
		for _, p := range present {
			totals = append(totals, fmt.Sprintf("P %d / F %d", p, len(mx.Rows)-p))
		}
		t.Totals = append(totals, "")
	}
	return t
}
