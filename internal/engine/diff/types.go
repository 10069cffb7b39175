package diff

import "apisurface/internal/core/model"

// Category names the kind of change. The set is closed.
type Category string

const (
	CategoryAdded             Category = "Added"
	CategoryRemoved           Category = "Removed"
	CategoryRenamedArg        Category = "Renamed Arg"
	CategoryAddedArg          Category = "Added Arg"
	CategoryRemovedArg        Category = "Removed Arg"
	CategoryTypeChanged       Category = "Type Changed"
	CategoryReturnTypeChanged Category = "Return Type Changed"
	CategoryKindChanged       Category = "Kind Changed"
	CategoryAddedType         Category = "Added Type"
	CategoryCouldNotVerify    Category = "Could not verify"
)

// Change is one difference between two surfaces.
type Change struct {
	Level    model.Level `json:"level"`
	Category Category    `json:"category"`
	Detail   string      `json:"detail"`
}

// Worst aggregates changes to the highest level; no changes is Patch.
func Worst(changes []Change) model.Level {
	worst := model.Patch
	for _, c := range changes {
		if c.Level > worst {
			worst = c.Level
		}
	}
	return worst
}

// Summary counts changes per level.
type Summary struct {
	Patch int `json:"patch"`
	Minor int `json:"minor"`
	Major int `json:"major"`
}

func Summarize(changes []Change) Summary {
	var s Summary
	for _, c := range changes {
		switch c.Level {
		case model.Patch:
			s.Patch++
		case model.Minor:
			s.Minor++
		case model.Major:
			s.Major++
		}
	}
	return s
}
