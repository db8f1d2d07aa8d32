package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CriteriaType identifies the input control a criteria field expects.
type CriteriaType string

const (
	CriteriaTypeDateRange   CriteriaType = "dateRange"
	CriteriaTypeMultiSelect CriteriaType = "multiSelect"
	CriteriaTypeRange       CriteriaType = "range"
	CriteriaTypeText        CriteriaType = "text"
)

// Option is a selectable value for multiSelect fields.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CriteriaField describes a single entry of a dataset's criteria schema.
type CriteriaField struct {
	Key           string       `json:"key"`
	Label         string       `json:"label"`
	Type          CriteriaType `json:"type"`
	Required      bool         `json:"required"`
	OptionsSource string       `json:"options_source,omitempty"`
	Options       []Option     `json:"options,omitempty"`
	Description   string       `json:"description,omitempty"`
}

// Options sources referenced by the criteria catalog. Admin areas are served by
// the cascading /admin-areas endpoint; the static sources are resolved in-process.
const (
	OptionsSourceAdminAreas       = "adminAreas"
	OptionsSourceUserLevels       = "userLevels"
	OptionsSourceTransactionTypes = "transactionTypes"
	OptionsSourceLandUses         = "landUses"
)

// catalogEntry binds one dataset flag to the schema field it produces.
type catalogEntry struct {
	Enabled func(CriteriaFlags) bool
	Flag    string
	Field   CriteriaField
}

// criteriaCatalog is the single declarative flag-to-field table. Both the
// schema service and analytics consume it, so the form and the reporting can
// never disagree about what a flag means.
var criteriaCatalog = []catalogEntry{
	{
		Enabled: func(f CriteriaFlags) bool { return f.RequiresPeriod },
		Flag:    "requires_period",
		Field: CriteriaField{
			Key: "period", Label: "Reporting period", Type: CriteriaTypeDateRange, Required: true,
			Description: "Start and end date of the data window",
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.RequiresUpi },
		Flag:    "requires_upi",
		Field: CriteriaField{
			Key: "upi", Label: "Parcel UPI", Type: CriteriaTypeText, Required: true,
			Description: "Unique parcel identifier",
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.RequiresUpiList },
		Flag:    "requires_upi_list",
		Field: CriteriaField{
			Key: "upiList", Label: "Parcel UPI list", Type: CriteriaTypeMultiSelect, Required: true,
			Description: "One or more parcel identifiers",
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.RequiresIdList },
		Flag:    "requires_id_list",
		Field: CriteriaField{
			Key: "idList", Label: "National ID list", Type: CriteriaTypeMultiSelect, Required: true,
			Description: "One or more national identifiers",
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.HasAdminLevel },
		Flag:    "has_admin_level",
		Field: CriteriaField{
			Key: "adminLevel", Label: "Administrative area", Type: CriteriaTypeMultiSelect, Required: false,
			OptionsSource: OptionsSourceAdminAreas,
			Description:   "Province, district, sector, cell or village scope",
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.HasUserLevel },
		Flag:    "has_user_level",
		Field: CriteriaField{
			Key: "userLevel", Label: "User level", Type: CriteriaTypeMultiSelect, Required: false,
			OptionsSource: OptionsSourceUserLevels,
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.HasTransactionType },
		Flag:    "has_transaction_type",
		Field: CriteriaField{
			Key: "transactionType", Label: "Transaction type", Type: CriteriaTypeMultiSelect, Required: false,
			OptionsSource: OptionsSourceTransactionTypes,
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.HasLandUse },
		Flag:    "has_land_use",
		Field: CriteriaField{
			Key: "landUse", Label: "Land use", Type: CriteriaTypeMultiSelect, Required: false,
			OptionsSource: OptionsSourceLandUses,
		},
	},
	{
		Enabled: func(f CriteriaFlags) bool { return f.HasSizeRange },
		Flag:    "has_size_range",
		Field: CriteriaField{
			Key: "sizeRange", Label: "Parcel size (m2)", Type: CriteriaTypeRange, Required: false,
		},
	},
}

// BuildCriteriaSchema derives the ordered criteria schema from a dataset's
// flags. Pure: exactly one field per enabled flag, nothing else.
func BuildCriteriaSchema(flags CriteriaFlags) []CriteriaField {
	schema := make([]CriteriaField, 0, len(criteriaCatalog))
	for _, entry := range criteriaCatalog {
		if entry.Enabled(flags) {
			schema = append(schema, entry.Field)
		}
	}
	return schema
}

// CriteriaFlagUsage reports, for each catalog flag, whether the given flags
// enable it. Analytics consumes this so flag counting stays in lockstep with
// the schema the form renders.
func CriteriaFlagUsage(flags CriteriaFlags) map[string]bool {
	usage := make(map[string]bool, len(criteriaCatalog))
	for _, entry := range criteriaCatalog {
		usage[entry.Flag] = entry.Enabled(flags)
	}
	return usage
}

// DateRangeValue is a closed date interval.
type DateRangeValue struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// RangeValue is a numeric bound; either side may be open.
type RangeValue struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// CriteriaValue is the tagged union of supported criteria inputs. Exactly one
// member is populated, matching Type.
type CriteriaValue struct {
	Type      CriteriaType
	DateRange *DateRangeValue
	Selected  []string
	Range     *RangeValue
	Text      string
}

type criteriaValueJSON struct {
	Type   CriteriaType `json:"type"`
	From   *time.Time   `json:"from,omitempty"`
	To     *time.Time   `json:"to,omitempty"`
	Values []string     `json:"values,omitempty"`
	Min    *float64     `json:"min,omitempty"`
	Max    *float64     `json:"max,omitempty"`
	Value  string       `json:"value,omitempty"`
}

// MarshalJSON encodes the populated member alongside the type tag.
func (v CriteriaValue) MarshalJSON() ([]byte, error) {
	out := criteriaValueJSON{Type: v.Type}
	switch v.Type {
	case CriteriaTypeDateRange:
		if v.DateRange != nil {
			out.From = &v.DateRange.From
			out.To = &v.DateRange.To
		}
	case CriteriaTypeMultiSelect:
		out.Values = v.Selected
	case CriteriaTypeRange:
		if v.Range != nil {
			out.Min = v.Range.Min
			out.Max = v.Range.Max
		}
	case CriteriaTypeText:
		out.Value = v.Text
	default:
		return nil, fmt.Errorf("unknown criteria type %q", v.Type)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a tagged value, populating only the member named by the tag.
func (v *CriteriaValue) UnmarshalJSON(data []byte) error {
	var raw criteriaValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = CriteriaValue{Type: raw.Type}
	switch raw.Type {
	case CriteriaTypeDateRange:
		dr := DateRangeValue{}
		if raw.From != nil {
			dr.From = *raw.From
		}
		if raw.To != nil {
			dr.To = *raw.To
		}
		v.DateRange = &dr
	case CriteriaTypeMultiSelect:
		v.Selected = raw.Values
	case CriteriaTypeRange:
		v.Range = &RangeValue{Min: raw.Min, Max: raw.Max}
	case CriteriaTypeText:
		v.Text = raw.Value
	default:
		return fmt.Errorf("unknown criteria type %q", raw.Type)
	}
	return nil
}

// IsEmpty applies the type-specific emptiness rule: a dateRange needs both
// bounds, a multiSelect a non-empty list, a range at least one bound, a text a
// non-blank string.
func (v CriteriaValue) IsEmpty() bool {
	switch v.Type {
	case CriteriaTypeDateRange:
		return v.DateRange == nil || v.DateRange.From.IsZero() || v.DateRange.To.IsZero()
	case CriteriaTypeMultiSelect:
		return len(v.Selected) == 0
	case CriteriaTypeRange:
		return v.Range == nil || (v.Range.Min == nil && v.Range.Max == nil)
	case CriteriaTypeText:
		return strings.TrimSpace(v.Text) == ""
	default:
		return true
	}
}

// CriteriaValues maps schema keys to supplied values.
type CriteriaValues map[string]CriteriaValue

// ValidationResult reports criteria completeness. An incomplete form is a
// normal outcome, not an error.
type ValidationResult struct {
	OK          bool     `json:"ok"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

// ValidateCriteriaValues checks every required schema entry for a non-empty
// value of the declared type. A value of the wrong type counts as missing.
func ValidateCriteriaValues(schema []CriteriaField, values CriteriaValues) ValidationResult {
	missing := make([]string, 0)
	for _, field := range schema {
		if !field.Required {
			continue
		}
		value, ok := values[field.Key]
		if !ok || value.Type != field.Type || value.IsEmpty() {
			missing = append(missing, field.Key)
		}
	}
	if len(missing) > 0 {
		return ValidationResult{OK: false, MissingKeys: missing}
	}
	return ValidationResult{OK: true}
}
