package jobs

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/classjobs.yaml
var defaultData []byte

const (
	limitBreakTank         = 197
	limitBreakHealer       = 206
	limitBreakMelee        = 200
	limitBreakPhysicalRdps = 4238
	limitBreakMagicalRdps  = 203
)

// ErrNoCategory is returned when no category identifies a class or job.
var ErrNoCategory = errors.New("no class job category")

// ClassJob is one row of the class/job sheet.
type ClassJob struct {
	ID           uint32     `yaml:"id" json:"id"`
	Abbreviation string     `yaml:"abbreviation" json:"abbreviation"`
	Name         string     `yaml:"name" json:"name"`
	JobIndex     uint8      `yaml:"jobIndex" json:"jobIndex"`
	Category     CategoryID `yaml:"-" json:"category"`
	LimitBreak1  uint32     `yaml:"limitBreak1" json:"limitBreak1"`
}

type categoryRow struct {
	ID      int32    `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []uint32 `yaml:"members"`
}

type jobRow struct {
	ClassJob `yaml:",inline"`
	Category int32 `yaml:"category"`
}

type document struct {
	Jobs       []jobRow      `yaml:"jobs"`
	Categories []categoryRow `yaml:"categories"`
}

// Table is the read-only class/job lookup built once at start-up.
type Table struct {
	jobs       map[uint32]ClassJob
	order      []uint32
	byAbbrev   map[string]uint32
	names      map[CategoryID]string
	activation map[CategoryID]map[uint32]bool
}

// Default builds the table from the embedded sheet data.
func Default() (*Table, error) {
	return Parse(defaultData)
}

// MustDefault is Default for package-level test fixtures and start-up.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds a table from YAML sheet data.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode class job data: %w", err)
	}
	if len(doc.Jobs) == 0 {
		return nil, errors.New("class job data defines no jobs")
	}
	t := &Table{
		jobs:       make(map[uint32]ClassJob, len(doc.Jobs)),
		byAbbrev:   make(map[string]uint32, len(doc.Jobs)),
		names:      make(map[CategoryID]string),
		activation: make(map[CategoryID]map[uint32]bool),
	}
	for _, row := range doc.Jobs {
		if _, dup := t.jobs[row.ID]; dup {
			return nil, fmt.Errorf("duplicate class job %d", row.ID)
		}
		job := row.ClassJob
		job.Category = CategoryID(row.Category)
		t.jobs[job.ID] = job
		t.order = append(t.order, job.ID)
		t.byAbbrev[strings.ToUpper(job.Abbreviation)] = job.ID
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })

	rows := make(map[CategoryID]categoryRow, len(doc.Categories))
	for _, row := range doc.Categories {
		rows[CategoryID(row.ID)] = row
	}
	for _, cat := range AllCategories() {
		active := make(map[uint32]bool, len(t.jobs))
		for _, id := range t.order {
			active[id] = false
		}
		if row, ok := rows[cat]; ok {
			for _, member := range row.Members {
				if _, known := t.jobs[member]; !known {
					return nil, fmt.Errorf("category %d references unknown class job %d", row.ID, member)
				}
				active[member] = true
			}
			t.names[cat] = row.Name
		} else if cat != BaseClasses {
			return nil, fmt.Errorf("class job data is missing category %s", cat)
		}
		t.activation[cat] = active
	}

	for _, id := range t.order {
		job := t.jobs[id]
		if job.JobIndex == 0 {
			t.activation[BaseClasses][id] = true
		}
		switch job.LimitBreak1 {
		case limitBreakTank:
			t.activation[Tank][id] = true
		case limitBreakHealer:
			t.activation[Healer][id] = true
		case limitBreakMelee:
			t.activation[MeleeDps][id] = true
		case limitBreakPhysicalRdps:
			t.activation[PhysicalRdps][id] = true
		case limitBreakMagicalRdps:
			t.activation[MagicalRdps][id] = true
		}
	}
	return t, nil
}

// Job returns the class/job row for id.
func (t *Table) Job(id uint32) (ClassJob, bool) {
	job, ok := t.jobs[id]
	return job, ok
}

// JobByAbbreviation looks up a class/job by its English abbreviation.
func (t *Table) JobByAbbreviation(abbrev string) (ClassJob, bool) {
	id, ok := t.byAbbrev[strings.ToUpper(strings.TrimSpace(abbrev))]
	if !ok {
		return ClassJob{}, false
	}
	return t.jobs[id], true
}

// Jobs returns every row ordered by id.
func (t *Table) Jobs() []ClassJob {
	out := make([]ClassJob, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.jobs[id])
	}
	return out
}

// JobIndex returns the JobIndex of a class/job id, 0 if unknown.
func (t *Table) JobIndex(id uint32) uint8 {
	return t.jobs[id].JobIndex
}

// IsActivated reports whether job belongs to category. The zero category
// matches nothing.
func (t *Table) IsActivated(cat CategoryID, job uint32) bool {
	if cat == 0 {
		return false
	}
	return t.activation[cat][job]
}

// Members returns the class/job ids belonging to category.
func (t *Table) Members(cat CategoryID) []uint32 {
	var out []uint32
	for _, id := range t.order {
		if t.activation[cat][id] {
			out = append(out, id)
		}
	}
	return out
}

// DisplayName returns a short user-facing category name.
func (t *Table) DisplayName(cat CategoryID) string {
	switch cat {
	case BaseClasses:
		return "Base classes"
	case DoW, DoM, DoL, DoH:
		return cat.String()
	case CombatJobs:
		return "DoW/DoM"
	case NonCombatJobs:
		return "DoH/DoL"
	}
	name := t.names[cat]
	if name == "" {
		return cat.String()
	}
	switch {
	case cat.IsCombo():
		if parts := strings.Split(name, " "); len(parts) == 2 {
			return parts[1] + "/" + parts[0]
		}
	case cat == MIN_BTN:
		if parts := strings.Split(name, ", "); len(parts) == 2 {
			return parts[0] + "/" + parts[1]
		}
	case cat == Tank, cat == Healer, cat == MeleeDps, cat == PhysicalRdps, cat == MagicalRdps:
		if parts := strings.Split(name, "("); len(parts) == 2 {
			return strings.TrimSpace(parts[0])
		}
	}
	return name
}

// CategoryForClassJob infers the narrowest category describing a class or
// job: crafters map to DoH, miners and botanists to MIN_BTN, otherwise the
// first combo category containing the job wins, falling back to the last
// category whose only member is the job.
func (t *Table) CategoryForClassJob(id uint32) (CategoryID, error) {
	job, ok := t.jobs[id]
	if !ok {
		return 0, fmt.Errorf("%w: unknown class job %d", ErrNoCategory, id)
	}
	if job.Category == DoH {
		return DoH, nil
	}
	if job.Abbreviation == "MIN" || job.Abbreviation == "BTN" {
		return MIN_BTN, nil
	}

	var best CategoryID
	for _, cat := range AllCategories() {
		if !t.activation[cat][id] {
			continue
		}
		if cat.IsCombo() {
			best = cat
			break
		}
		if t.memberCount(cat) == 1 {
			best = cat
		}
	}
	if best > 0 {
		return best, nil
	}
	return 0, fmt.Errorf("%w for %s", ErrNoCategory, job.Abbreviation)
}

func (t *Table) memberCount(cat CategoryID) int {
	n := 0
	for _, active := range t.activation[cat] {
		if active {
			n++
		}
	}
	return n
}

// JobForIndex returns the job owning JobIndex idx, used to map job gauges
// back to a job. Index 0 belongs to classes and never matches.
func (t *Table) JobForIndex(idx uint8) (ClassJob, bool) {
	if idx == 0 {
		return ClassJob{}, false
	}
	for _, id := range t.order {
		if job := t.jobs[id]; job.JobIndex == idx {
			return job, true
		}
	}
	return ClassJob{}, false
}
