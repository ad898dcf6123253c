package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clerkbot/activity-clerk/internal/wikitext"
)

// Row background colours, keyed by tier.
var tierColours = map[Tier]string{
	TierFresh:    "#ccffcc",
	TierStale:    "#eaffea",
	TierNone:     "#ffffcc",
	TierInactive: "#eeeeee",
}

// TierColour returns the row background used for tier on the report page.
func TierColour(t Tier) string {
	return tierColours[t]
}

// Lookup fields addressable on the data page.
const (
	FieldStatus = "status"
	FieldFirst  = "first"
	FieldLast   = "last"
	FieldCount  = "count"
	FieldDays   = "days"
)

// LookupFields lists the lookup fields in rendering order.
var LookupFields = []string{FieldStatus, FieldFirst, FieldLast, FieldCount, FieldDays}

const missingTimestamp = "—"

// RenderOptions controls the wording of the report page.
type RenderOptions struct {
	// Banner is the first line of the page, normally an HTML comment
	// warning editors that the page is generated.
	Banner string

	// ParticipantColumn is the heading of the name column.
	ParticipantColumn string
}

// RenderReport renders the display page: one linked heading and one
// sortable table per proceeding.
func RenderReport(r *Report, opts RenderOptions) string {
	blocks := make([]string, 0, len(r.Proceedings)+1)
	if opts.Banner != "" {
		blocks = append(blocks, opts.Banner)
	}
	column := opts.ParticipantColumn
	if column == "" {
		column = "Participant"
	}

	for _, pr := range r.Proceedings {
		p := pr.Proceeding
		lines := []string{
			fmt.Sprintf("=== [[%s#%s|%s]] ===", p.Page, p.Anchor, p.Label),
			`{| class="wikitable sortable"`,
			fmt.Sprintf("! %s !! Activity status !! First comment !! Last comment !! # Comments", column),
		}
		for _, row := range pr.Rows {
			first, last, count := missingTimestamp, missingTimestamp, 0
			if row.Stats != nil {
				first = wikitext.FormatTimestamp(row.Stats.First)
				last = wikitext.FormatTimestamp(row.Stats.Last)
				count = row.Stats.Count
			}
			name := row.Participant.Name
			lines = append(lines,
				fmt.Sprintf(`|- style="background:%s"`, TierColour(row.Result.Tier)),
				fmt.Sprintf("| [[User:%s|%s]] || %s || %s || %s || %d", name, name, row.Result.Label, first, last, count),
			)
		}
		lines = append(lines, "|}")
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// Lookup is the machine-queryable form of a report, addressed by
// lower-cased proceeding anchor, then participant name, then field.
type Lookup struct {
	anchors []string
	entries map[string]*lookupProceeding
}

type lookupProceeding struct {
	names  []string
	values map[string]map[string]string
}

// BuildLookup derives the lookup structure from a report. Ordering follows
// the report so rendering is deterministic. Proceedings sharing an anchor
// collapse into one entry where the earliest proceeding wins.
func BuildLookup(r *Report) *Lookup {
	l := &Lookup{entries: make(map[string]*lookupProceeding)}
	for _, pr := range r.Proceedings {
		key := strings.ToLower(pr.Proceeding.Anchor)
		entry, ok := l.entries[key]
		if !ok {
			entry = &lookupProceeding{values: make(map[string]map[string]string)}
			l.entries[key] = entry
			l.anchors = append(l.anchors, key)
		}
		for _, row := range pr.Rows {
			name := row.Participant.Name
			// A repeated anchor keeps the first proceeding's values, as a
			// #switch matches its first branch.
			if _, seen := entry.values[name]; seen {
				continue
			}
			entry.names = append(entry.names, name)
			entry.values[name] = lookupValues(row)
		}
	}
	return l
}

func lookupValues(row Row) map[string]string {
	v := map[string]string{
		FieldStatus: row.Result.Label,
		FieldFirst:  "",
		FieldLast:   "",
		FieldCount:  "0",
		FieldDays:   "",
	}
	if row.Stats != nil {
		v[FieldFirst] = wikitext.FormatTimestamp(row.Stats.First)
		v[FieldLast] = wikitext.FormatTimestamp(row.Stats.Last)
		v[FieldCount] = strconv.Itoa(row.Stats.Count)
	}
	if row.Result.ElapsedDays >= 0 {
		v[FieldDays] = strconv.Itoa(row.Result.ElapsedDays)
	}
	return v
}

// Get returns the value of field for participant in the proceeding with
// the given anchor. Unknown keys yield "" and false. The anchor is matched
// case-insensitively.
func (l *Lookup) Get(anchor, participant, field string) (string, bool) {
	entry, ok := l.entries[strings.ToLower(anchor)]
	if !ok {
		return "", false
	}
	fields, ok := entry.values[participant]
	if !ok {
		return "", false
	}
	v, ok := fields[field]
	return v, ok
}

// RenderLookup renders the lookup structure as nested #switch parser
// functions, queried as {{Page|proceeding=...|user=...|field=...}} with
// field defaulting to status.
func RenderLookup(l *Lookup) string {
	lines := []string{"{{#switch: {{{proceeding}}}"}
	for _, anchor := range l.anchors {
		entry := l.entries[anchor]
		lines = append(lines, fmt.Sprintf(" | %s = {{#switch: {{{user}}}", anchor))
		for _, name := range entry.names {
			v := entry.values[name]
			lines = append(lines, fmt.Sprintf(
				"     | %s = {{#switch: {{{field|status}}} | status = %s | first = %s | last = %s | count = %s | days = %s }}",
				name, v[FieldStatus], v[FieldFirst], v[FieldLast], v[FieldCount], v[FieldDays],
			))
		}
		lines = append(lines, "   }}")
	}
	lines = append(lines, "}}")
	return strings.Join(lines, "\n")
}
