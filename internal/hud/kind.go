package hud

import (
	"fmt"
	"strconv"
	"strings"
)

// ElementKind identifies a HUD element. Values are the CRC32 ids the game
// assigns to each addon layout entry.
type ElementKind uint32

const (
	FocusTargetBar                    ElementKind = 0xC292F05F
	StatusInfoEnfeeblements           ElementKind = 0x1E805A83
	StatusInfoEnhancements            ElementKind = 0x1F4230B4
	StatusInfoConditionalEnhancements ElementKind = 0x1D048EED
	StatusInfoOther                   ElementKind = 0x1CC6E4DA
	TargetInfoHp                      ElementKind = 0xBD128377
	TargetInfoProgressBar             ElementKind = 0xCB54A2EF
	TargetInfoStatus                  ElementKind = 0x076F596B
	PartyList                         ElementKind = 0x3D425039
	EnemyList                         ElementKind = 0xB8BD6685
	ScenarioGuide                     ElementKind = 0x88EE6357
	ExperienceBar                     ElementKind = 0x21E53CCE
	PetHotbar                         ElementKind = 0xD8D188FF
	Hotbar10                          ElementKind = 0xF5683FA6
	Hotbar9                           ElementKind = 0xF4AA5591
	Hotbar8                           ElementKind = 0xFFF612AC
	Hotbar7                           ElementKind = 0xFE34789B
	Hotbar6                           ElementKind = 0xFC72C6C2
	Hotbar5                           ElementKind = 0xFDB0ACF5
	Hotbar4                           ElementKind = 0xF8FFBA70
	Hotbar3                           ElementKind = 0xF93DD047
	Hotbar2                           ElementKind = 0xFB7B6E1E
	Hotbar1                           ElementKind = 0xC48D3605
	CrossHotbar                       ElementKind = 0xBA81E8D1
	ProgressBar                       ElementKind = 0xECB29811
	Minimap                           ElementKind = 0x7159021B
	BloodGauge                        ElementKind = 0xF04E8778
	DarksideGauge                     ElementKind = 0xF18CED4F
	OathGauge                         ElementKind = 0xEFBAFE40
	BeastGauge                        ElementKind = 0x7F5D020A
	PowderGauge                       ElementKind = 0xAEC2C0DF
	ArcanaGauge                       ElementKind = 0x959978B2
	AetherflowGaugeSch                ElementKind = 0xCADD58CB
	FaerieGauge                       ElementKind = 0xA1A8A487
	HealingGauge                      ElementKind = 0x7A3727B2
	DragonGauge                       ElementKind = 0xBA9838C0
	MastersGauge                      ElementKind = 0x7251AC33
	ChakraGauge                       ElementKind = 0x7393C604
	HutonGauge                        ElementKind = 0x70F99888
	Kazematoi                         ElementKind = 0x6CD4313E
	NinkiGauge                        ElementKind = 0x713BF2BF
	SenGauge                          ElementKind = 0xED746DE2
	KenkiGauge                        ElementKind = 0xECB607D5
	SongGauge                         ElementKind = 0x7E747433
	HeatGauge                         ElementKind = 0x9874C76C
	StepGauge                         ElementKind = 0x90EAD514
	FourfoldFeathers                  ElementKind = 0x9128BF23
	ElementalGauge                    ElementKind = 0xDCAC125A
	BalanceGauge                      ElementKind = 0xEF0A5B00
	TranceGauge                       ElementKind = 0x3A312F0D
	AetherflowGaugeSmn                ElementKind = 0x3BF3453A
	AddersgallGauge                   ElementKind = 0x1012767E
	EukrasiaGauge                     ElementKind = 0x11D01C49
	SoulGauge                         ElementKind = 0xA2D9B660
	DeathGauge                        ElementKind = 0xA31BDC57
	ItemHelp                          ElementKind = 0x42CBE75F
	ActionHelp                        ElementKind = 0x4661EACA
	Gil                               ElementKind = 0x43161AA2
	InventoryGrid                     ElementKind = 0x1C15E20F
	MainMenu                          ElementKind = 0x8AF95A70
	Notices                           ElementKind = 0xDF217364
	ParameterBar                      ElementKind = 0x981EC49E
	LimitGauge                        ElementKind = 0xC79F450A
	DutyList                          ElementKind = 0xA29100D2
	ServerInfo                        ElementKind = 0xCDA89776
	AllianceList1                     ElementKind = 0x2943729A
	AllianceList2                     ElementKind = 0x2B05CCC3
	NewGamePlusGuide                  ElementKind = 0xDA29B46A
	TargetBar                         ElementKind = 0x913EC97D
	StatusEffects                     ElementKind = 0x4A569616
	DutyGauge                         ElementKind = 0x81394395
	DutyAction                        ElementKind = 0x54B8C68A
	CompressedAether                  ElementKind = 0xC4B6FB74
	RivalWingsMercenaryInfo           ElementKind = 0x79E67C08
	RivalWingsTeamInfo                ElementKind = 0x465E2306
	RivalWingsStationInfo             ElementKind = 0xA1173246
	RivalWingsAllianceList            ElementKind = 0xE69D30D2
	RivalWingsGauges                  ElementKind = 0x1047F0E1
	TheFeastEnemyInfo                 ElementKind = 0x366A4D0B
	TheFeastAllyInfo                  ElementKind = 0x37A8273C
	TheFeastScore                     ElementKind = 0xD7F058DF
	BattleHighGauge                   ElementKind = 0x34BF98AF
	LeftWCrossHotbar                  ElementKind = 0x6665735D
	RightWCrossHotbar                 ElementKind = 0x70DDFD27
	OceanFishingVoyageMissions        ElementKind = 0xB6D09C70
	Timers                            ElementKind = 0x99B6AD5B
	CrystallineConflictAllyInfo       ElementKind = 0xE155E172
	CrystallineConflictBattleLog      ElementKind = 0xF347F7E3
	CrystallineConflictMap            ElementKind = 0xC3ACB5D2
	CrystallineConflictEnemyInfo      ElementKind = 0xE2D1351C
	CrystallineConflictProgressGauge  ElementKind = 0x30748231
	FrontlineScoreInfo                ElementKind = 0x2D327D8E
	BlundervilleObjective             ElementKind = 0x3B26DB7A
	BlundervilleScore                 ElementKind = 0xDBC09DEA
	BlundervilleStatus                ElementKind = 0x9F0BB04E
	BlundervilleShowLog               ElementKind = 0xD83AAFFA
	AstralGauge                       ElementKind = 0xDD6E786D
	Vipersight                        ElementKind = 0xB7694B56
	SerpentOfferingsGauge             ElementKind = 0xB6AB2161
	Canvases                          ElementKind = 0x7A6A6A42
	PaletteGauge                      ElementKind = 0x7BA80075
)

// InMemoryLayoutElements is the number of element records in one layout slot.
const InMemoryLayoutElements = 108

type kindInfo struct {
	name string
	// row is the HUD sheet row, -1 when the kind has no slot entry.
	row int
	// gaugeJob is the JobIndex owning the gauge, 0 for non-gauge kinds.
	gaugeJob   uint8
	gaugeAddon string
}

var catalog = map[ElementKind]kindInfo{
	Hotbar1:                           {name: "Hotbar1", row: 0},
	Hotbar2:                           {name: "Hotbar2", row: 1},
	Hotbar3:                           {name: "Hotbar3", row: 2},
	Hotbar4:                           {name: "Hotbar4", row: 3},
	Hotbar5:                           {name: "Hotbar5", row: 4},
	Hotbar6:                           {name: "Hotbar6", row: 5},
	Hotbar7:                           {name: "Hotbar7", row: 6},
	Hotbar8:                           {name: "Hotbar8", row: 7},
	Hotbar9:                           {name: "Hotbar9", row: 8},
	Hotbar10:                          {name: "Hotbar10", row: 9},
	PetHotbar:                         {name: "PetHotbar", row: 10},
	CrossHotbar:                       {name: "CrossHotbar", row: 11},
	ProgressBar:                       {name: "ProgressBar", row: 12},
	TargetBar:                         {name: "TargetBar", row: 13},
	FocusTargetBar:                    {name: "FocusTargetBar", row: 14},
	PartyList:                         {name: "PartyList", row: 15},
	EnemyList:                         {name: "EnemyList", row: 16},
	ParameterBar:                      {name: "ParameterBar", row: 17},
	Notices:                           {name: "Notices", row: 18},
	Minimap:                           {name: "Minimap", row: 19},
	MainMenu:                          {name: "MainMenu", row: 20},
	ServerInfo:                        {name: "ServerInfo", row: 21},
	Gil:                               {name: "Gil", row: 22},
	InventoryGrid:                     {name: "InventoryGrid", row: 23},
	DutyList:                          {name: "DutyList", row: 24},
	ItemHelp:                          {name: "ItemHelp", row: 25},
	ActionHelp:                        {name: "ActionHelp", row: 26},
	LimitGauge:                        {name: "LimitGauge", row: 27},
	ExperienceBar:                     {name: "ExperienceBar", row: 28},
	StatusEffects:                     {name: "StatusEffects", row: 29},
	AllianceList1:                     {name: "AllianceList1", row: 30},
	AllianceList2:                     {name: "AllianceList2", row: 31},
	Timers:                            {name: "Timers", row: 33},
	LeftWCrossHotbar:                  {name: "LeftWCrossHotbar", row: 38},
	RightWCrossHotbar:                 {name: "RightWCrossHotbar", row: 39},
	OathGauge:                         {name: "OathGauge", row: 40, gaugeJob: 1, gaugeAddon: "JobHudPLD0"},
	BeastGauge:                        {name: "BeastGauge", row: 42, gaugeJob: 3, gaugeAddon: "JobHudWAR0"},
	DragonGauge:                       {name: "DragonGauge", row: 43, gaugeJob: 4, gaugeAddon: "JobHudDRG0"},
	SongGauge:                         {name: "SongGauge", row: 44, gaugeJob: 5, gaugeAddon: "JobHudBRD0"},
	HealingGauge:                      {name: "HealingGauge", row: 45, gaugeJob: 6, gaugeAddon: "JobHudWHM0"},
	ElementalGauge:                    {name: "ElementalGauge", row: 46, gaugeJob: 7, gaugeAddon: "JobHudBLM0"},
	AetherflowGaugeSch:                {name: "AetherflowGaugeSch", row: 47, gaugeJob: 9, gaugeAddon: "JobHudSCH0"},
	AetherflowGaugeSmn:                {name: "AetherflowGaugeSmn", row: 48, gaugeJob: 8, gaugeAddon: "JobHudSMN0"},
	TranceGauge:                       {name: "TranceGauge", row: 49, gaugeJob: 8, gaugeAddon: "JobHudSMN1"},
	FaerieGauge:                       {name: "FaerieGauge", row: 50, gaugeJob: 9, gaugeAddon: "JobHudSCH1"},
	NinkiGauge:                        {name: "NinkiGauge", row: 51, gaugeJob: 10, gaugeAddon: "JobHudNIN0"},
	HeatGauge:                         {name: "HeatGauge", row: 52, gaugeJob: 11, gaugeAddon: "JobHudMCH0"},
	BloodGauge:                        {name: "BloodGauge", row: 54, gaugeJob: 12, gaugeAddon: "JobHudDRK0"},
	ArcanaGauge:                       {name: "ArcanaGauge", row: 55, gaugeJob: 13, gaugeAddon: "JobHudAST0"},
	KenkiGauge:                        {name: "KenkiGauge", row: 56, gaugeJob: 14, gaugeAddon: "JobHudSAM1"},
	SenGauge:                          {name: "SenGauge", row: 57, gaugeJob: 14, gaugeAddon: "JobHudSAM0"},
	BalanceGauge:                      {name: "BalanceGauge", row: 58, gaugeJob: 15, gaugeAddon: "JobHudRDM0"},
	DutyGauge:                         {name: "DutyGauge", row: 59},
	DutyAction:                        {name: "DutyAction", row: 60},
	ChakraGauge:                       {name: "ChakraGauge", row: 61, gaugeJob: 2, gaugeAddon: "JobHudMNK0"},
	Kazematoi:                         {name: "Kazematoi", row: 62, gaugeJob: 10, gaugeAddon: "JobHudNIN1v70"},
	HutonGauge:                        {name: "HutonGauge", row: -1, gaugeJob: 10, gaugeAddon: "JobHudNIN1"},
	ScenarioGuide:                     {name: "ScenarioGuide", row: 63},
	RivalWingsGauges:                  {name: "RivalWingsGauges", row: 64},
	RivalWingsAllianceList:            {name: "RivalWingsAllianceList", row: 65},
	RivalWingsTeamInfo:                {name: "RivalWingsTeamInfo", row: 66},
	StatusInfoEnhancements:            {name: "StatusInfoEnhancements", row: 67},
	StatusInfoEnfeeblements:           {name: "StatusInfoEnfeeblements", row: 68},
	StatusInfoOther:                   {name: "StatusInfoOther", row: 69},
	TargetInfoStatus:                  {name: "TargetInfoStatus", row: 70},
	TargetInfoProgressBar:             {name: "TargetInfoProgressBar", row: 71},
	TargetInfoHp:                      {name: "TargetInfoHp", row: 72},
	TheFeastScore:                     {name: "TheFeastScore", row: 73},
	TheFeastAllyInfo:                  {name: "TheFeastAllyInfo", row: 74},
	TheFeastEnemyInfo:                 {name: "TheFeastEnemyInfo", row: 75},
	RivalWingsStationInfo:             {name: "RivalWingsStationInfo", row: 76},
	RivalWingsMercenaryInfo:           {name: "RivalWingsMercenaryInfo", row: 77},
	DarksideGauge:                     {name: "DarksideGauge", row: 78, gaugeJob: 12, gaugeAddon: "JobHudDRK1"},
	PowderGauge:                       {name: "PowderGauge", row: 79, gaugeJob: 17, gaugeAddon: "JobHudGNB0"},
	StepGauge:                         {name: "StepGauge", row: 80, gaugeJob: 18, gaugeAddon: "JobHudDNC0"},
	FourfoldFeathers:                  {name: "FourfoldFeathers", row: 81, gaugeJob: 18, gaugeAddon: "JobHudDNC1"},
	BattleHighGauge:                   {name: "BattleHighGauge", row: 82},
	NewGamePlusGuide:                  {name: "NewGamePlusGuide", row: 83},
	CompressedAether:                  {name: "CompressedAether", row: 84},
	OceanFishingVoyageMissions:        {name: "OceanFishingVoyageMissions", row: 85},
	StatusInfoConditionalEnhancements: {name: "StatusInfoConditionalEnhancements", row: 86},
	SoulGauge:                         {name: "SoulGauge", row: 87, gaugeJob: 19, gaugeAddon: "JobHudRRP1"},
	DeathGauge:                        {name: "DeathGauge", row: 88, gaugeJob: 19, gaugeAddon: "JobHudRRP0"},
	EukrasiaGauge:                     {name: "EukrasiaGauge", row: 89, gaugeJob: 20, gaugeAddon: "JobHudGFF0"},
	AddersgallGauge:                   {name: "AddersgallGauge", row: 90, gaugeJob: 20, gaugeAddon: "JobHudGFF1"},
	MastersGauge:                      {name: "MastersGauge", row: 91, gaugeJob: 2, gaugeAddon: "JobHudMNK0"},
	CrystallineConflictProgressGauge:  {name: "CrystallineConflictProgressGauge", row: 92},
	CrystallineConflictAllyInfo:       {name: "CrystallineConflictAllyInfo", row: 93},
	CrystallineConflictEnemyInfo:      {name: "CrystallineConflictEnemyInfo", row: 95},
	CrystallineConflictBattleLog:      {name: "CrystallineConflictBattleLog", row: 96},
	CrystallineConflictMap:            {name: "CrystallineConflictMap", row: 97},
	FrontlineScoreInfo:                {name: "FrontlineScoreInfo", row: 98},
	BlundervilleObjective:             {name: "BlundervilleObjective", row: 99},
	BlundervilleScore:                 {name: "BlundervilleScore", row: 100},
	BlundervilleStatus:                {name: "BlundervilleStatus", row: 101},
	BlundervilleShowLog:               {name: "BlundervilleShowLog", row: 102},
	AstralGauge:                       {name: "AstralGauge", row: 103, gaugeJob: 7, gaugeAddon: "JobHudBLM1"},
	Vipersight:                        {name: "Vipersight", row: 104, gaugeJob: 21, gaugeAddon: "JobHudRDB0"},
	SerpentOfferingsGauge:             {name: "SerpentOfferingsGauge", row: 105, gaugeJob: 21, gaugeAddon: "JobHudRDB1"},
	Canvases:                          {name: "Canvases", row: 106, gaugeJob: 22, gaugeAddon: "JobHudRPM0"},
	PaletteGauge:                      {name: "PaletteGauge", row: 107, gaugeJob: 22, gaugeAddon: "JobHudRPM1"},
}

var kindsByName = func() map[string]ElementKind {
	out := make(map[string]ElementKind, len(catalog))
	for kind, info := range catalog {
		out[strings.ToLower(info.name)] = kind
	}
	return out
}()

// Known reports whether the kind is part of the catalog.
func (k ElementKind) Known() bool {
	_, ok := catalog[k]
	return ok
}

// Immutable kinds are never written back to a slot.
func (k ElementKind) Immutable() bool {
	return k == Timers
}

// RowID returns the HUD sheet row for the kind, or -1.
func (k ElementKind) RowID() int {
	info, ok := catalog[k]
	if !ok {
		return -1
	}
	return info.row
}

// IsReal reports whether the kind occupies a record in a layout slot.
func (k ElementKind) IsReal() bool {
	return k.RowID() >= 0
}

// GaugeJobIndex returns the JobIndex owning a job gauge kind, 0 otherwise.
func (k ElementKind) GaugeJobIndex() uint8 {
	return catalog[k].gaugeJob
}

// GaugeAddon returns the addon name used to toggle a job gauge.
func (k ElementKind) GaugeAddon() string {
	return catalog[k].gaugeAddon
}

// IsJobGauge reports whether the kind belongs to a single job.
func (k ElementKind) IsJobGauge() bool {
	return catalog[k].gaugeJob != 0
}

func (k ElementKind) IsHotbar() bool {
	switch k {
	case Hotbar1, Hotbar2, Hotbar3, Hotbar4, Hotbar5, Hotbar6, Hotbar7, Hotbar8, Hotbar9, Hotbar10, PetHotbar:
		return true
	default:
		return false
	}
}

func (k ElementKind) String() string {
	if info, ok := catalog[k]; ok {
		return info.name
	}
	return fmt.Sprintf("0x%08X", uint32(k))
}

// ParseElementKind accepts a catalog name (case-insensitive) or a hex id.
func ParseElementKind(s string) (ElementKind, error) {
	trimmed := strings.TrimSpace(s)
	if kind, ok := kindsByName[strings.ToLower(trimmed)]; ok {
		return kind, nil
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		v, err := strconv.ParseUint(trimmed[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid element id %q: %w", s, err)
		}
		return ElementKind(v), nil
	}
	return 0, fmt.Errorf("unknown element kind %q", s)
}

func (k ElementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ElementKind) UnmarshalText(text []byte) error {
	kind, err := ParseElementKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// AllKinds returns every mutable catalog kind ordered by sheet row.
func AllKinds() []ElementKind {
	out := make([]ElementKind, 0, len(catalog))
	for kind := range catalog {
		if kind.Immutable() {
			continue
		}
		out = append(out, kind)
	}
	sortKinds(out)
	return out
}
