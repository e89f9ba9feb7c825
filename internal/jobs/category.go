package jobs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CategoryID is a ClassJobCategory row usable as a swap rule job filter.
type CategoryID int32

const (
	GLA_PLD CategoryID = 38
	PGL_MNK CategoryID = 41
	MRD_WAR CategoryID = 44
	LNC_DRG CategoryID = 47
	ARC_BRD CategoryID = 50
	CNJ_WHM CategoryID = 53
	THM_BLM CategoryID = 55
	ACN_SMN CategoryID = 69
	ROG_NIN CategoryID = 93
	SCH     CategoryID = 29
	MCH     CategoryID = 96
	DRK     CategoryID = 98
	AST     CategoryID = 99
	SAM     CategoryID = 111
	RDM     CategoryID = 112
	GNB     CategoryID = 149
	DNC     CategoryID = 150
	RPR     CategoryID = 180
	SGE     CategoryID = 181
	BLU     CategoryID = 129

	MIN_BTN CategoryID = 154
	FSH     CategoryID = 155

	DoW           CategoryID = 30
	DoM           CategoryID = 31
	DoL           CategoryID = 32
	DoH           CategoryID = 33
	CombatJobs    CategoryID = 34
	NonCombatJobs CategoryID = 35
	Tank          CategoryID = 156
	Healer        CategoryID = 157
	MeleeDps      CategoryID = 188
	PhysicalRdps  CategoryID = 189
	MagicalRdps   CategoryID = 159

	// BaseClasses is synthesized from every class with JobIndex 0.
	BaseClasses CategoryID = -1
)

var comboCategories = []CategoryID{GLA_PLD, PGL_MNK, MRD_WAR, LNC_DRG, ARC_BRD, CNJ_WHM, THM_BLM, ACN_SMN, ROG_NIN}

// Groupings orders the categories for display: jobs, gatherers, broad groups.
var Groupings = [][]CategoryID{
	{GLA_PLD, MRD_WAR, DRK, GNB, CNJ_WHM, SCH, AST, SGE, PGL_MNK, LNC_DRG, ROG_NIN, SAM, RPR, ARC_BRD, MCH, DNC, THM_BLM, ACN_SMN, RDM, BLU},
	{MIN_BTN, FSH},
	{DoW, DoM, DoL, DoH, CombatJobs, NonCombatJobs, Tank, Healer, MeleeDps, PhysicalRdps, MagicalRdps, BaseClasses},
}

var categoryKeys = map[CategoryID]string{
	GLA_PLD: "GLA_PLD", PGL_MNK: "PGL_MNK", MRD_WAR: "MRD_WAR", LNC_DRG: "LNC_DRG", ARC_BRD: "ARC_BRD",
	CNJ_WHM: "CNJ_WHM", THM_BLM: "THM_BLM", ACN_SMN: "ACN_SMN", ROG_NIN: "ROG_NIN",
	SCH: "SCH", MCH: "MCH", DRK: "DRK", AST: "AST", SAM: "SAM", RDM: "RDM", GNB: "GNB", DNC: "DNC", RPR: "RPR", SGE: "SGE", BLU: "BLU",
	MIN_BTN: "MIN_BTN", FSH: "FSH",
	DoW: "DoW", DoM: "DoM", DoL: "DoL", DoH: "DoH", CombatJobs: "CombatJobs", NonCombatJobs: "NonCombatJobs",
	Tank: "Tank", Healer: "Healer", MeleeDps: "MeleeDps", PhysicalRdps: "PhysicalRdps", MagicalRdps: "MagicalRdps",
	BaseClasses: "BaseClasses",
}

// AllCategories returns every category in ascending row order, with
// BaseClasses last.
func AllCategories() []CategoryID {
	out := make([]CategoryID, 0, len(categoryKeys))
	for _, group := range Groupings {
		out = append(out, group...)
	}
	// Row ids compare unsigned so the synthesized -1 sorts last.
	sort.Slice(out, func(i, j int) bool { return uint32(out[i]) < uint32(out[j]) })
	return out
}

// IsCombo reports whether the category pairs a base class with its job.
func (c CategoryID) IsCombo() bool {
	for _, combo := range comboCategories {
		if combo == c {
			return true
		}
	}
	return false
}

func (c CategoryID) String() string {
	if key, ok := categoryKeys[c]; ok {
		return key
	}
	return strconv.Itoa(int(c))
}

// ParseCategory accepts a category key (case-insensitive) or row id.
func ParseCategory(s string) (CategoryID, error) {
	trimmed := strings.TrimSpace(s)
	for id, key := range categoryKeys {
		if strings.EqualFold(key, trimmed) {
			return id, nil
		}
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		if _, ok := categoryKeys[CategoryID(n)]; ok {
			return CategoryID(n), nil
		}
	}
	return 0, fmt.Errorf("unknown job category %q", s)
}

func (c CategoryID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CategoryID) UnmarshalText(text []byte) error {
	id, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = id
	return nil
}
