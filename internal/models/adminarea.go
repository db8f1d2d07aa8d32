package models

// AdminLevel is one tier of the administrative hierarchy, ordered from the
// widest (province) to the narrowest (village).
type AdminLevel string

const (
	AdminLevelProvince AdminLevel = "province"
	AdminLevelDistrict AdminLevel = "district"
	AdminLevelSector   AdminLevel = "sector"
	AdminLevelCell     AdminLevel = "cell"
	AdminLevelVillage  AdminLevel = "village"
)

// AdminLevels lists the hierarchy in cascade order.
var AdminLevels = []AdminLevel{
	AdminLevelProvince,
	AdminLevelDistrict,
	AdminLevelSector,
	AdminLevelCell,
	AdminLevelVillage,
}

// ValidAdminLevel reports whether the string names a known level.
func ValidAdminLevel(level AdminLevel) bool {
	for _, l := range AdminLevels {
		if l == level {
			return true
		}
	}
	return false
}

// AdminArea is one node of the administrative hierarchy.
type AdminArea struct {
	ID       string     `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	Level    AdminLevel `db:"level" json:"level"`
	ParentID *string    `db:"parent_id" json:"parent_id,omitempty"`
}

// AdminSelection holds the chosen areas per level. Value semantics: Apply
// returns a fresh selection, so a cascade reset can never be observed half
// done.
type AdminSelection struct {
	Provinces []string `json:"provinces,omitempty"`
	Districts []string `json:"districts,omitempty"`
	Sectors   []string `json:"sectors,omitempty"`
	Cells     []string `json:"cells,omitempty"`
	Villages  []string `json:"villages,omitempty"`
}

// Apply sets the values for one level and clears every level below it, so a
// child selection can never outlive its parent.
func (s AdminSelection) Apply(level AdminLevel, values []string) AdminSelection {
	next := s
	switch level {
	case AdminLevelProvince:
		next.Provinces = values
		next.Districts = nil
		next.Sectors = nil
		next.Cells = nil
		next.Villages = nil
	case AdminLevelDistrict:
		next.Districts = values
		next.Sectors = nil
		next.Cells = nil
		next.Villages = nil
	case AdminLevelSector:
		next.Sectors = values
		next.Cells = nil
		next.Villages = nil
	case AdminLevelCell:
		next.Cells = values
		next.Villages = nil
	case AdminLevelVillage:
		next.Villages = values
	}
	return next
}

// At returns the selection at the given level.
func (s AdminSelection) At(level AdminLevel) []string {
	switch level {
	case AdminLevelProvince:
		return s.Provinces
	case AdminLevelDistrict:
		return s.Districts
	case AdminLevelSector:
		return s.Sectors
	case AdminLevelCell:
		return s.Cells
	case AdminLevelVillage:
		return s.Villages
	default:
		return nil
	}
}

// Narrowest returns the values of the deepest non-empty level, which is the
// scope the cascading options lookup filters on.
func (s AdminSelection) Narrowest() (AdminLevel, []string) {
	for i := len(AdminLevels) - 1; i >= 0; i-- {
		if values := s.At(AdminLevels[i]); len(values) > 0 {
			return AdminLevels[i], values
		}
	}
	return "", nil
}
