package diff

import "apisurface/internal/core/model"

func argDetail(fn, arg string) string { return fn + ".(" + arg + ")" }

func (c *collector) function(path string, before, after *model.Func) {
	c.returns(path, before.Returns, after.Returns)

	bPos, bKw, bVarKw := splitArgs(before.Args)
	aPos, aKw, aVarKw := splitArgs(after.Args)

	for i := 0; i < len(bPos) || i < len(aPos); i++ {
		switch {
		case i >= len(bPos):
			a := aPos[i]
			level := model.Major
			if a.Kind.Has(model.Default) || a.Kind.Has(model.Variadic) {
				level = model.Minor
			}
			c.add(level, CategoryAddedArg, argDetail(path, a.Name))
		case i >= len(aPos):
			c.add(model.Major, CategoryRemovedArg, argDetail(path, bPos[i].Name))
		default:
			c.arg(path, bPos[i], aPos[i])
		}
	}

	for name, b := range bKw {
		a, ok := aKw[name]
		if !ok {
			c.add(model.Major, CategoryRemoved, argDetail(path, name))
			continue
		}
		c.arg(path, b, a)
	}
	for name := range aKw {
		if _, ok := bKw[name]; !ok {
			c.add(model.Minor, CategoryAdded, argDetail(path, name))
		}
	}

	switch {
	case bVarKw == nil && aVarKw != nil:
		c.add(model.Minor, CategoryAddedArg, argDetail(path, aVarKw.Name))
	case bVarKw != nil && aVarKw == nil:
		c.add(model.Major, CategoryRemovedArg, argDetail(path, bVarKw.Name))
	case bVarKw != nil && aVarKw != nil:
		c.arg(path, *bVarKw, *aVarKw)
	}
}

func (c *collector) returns(path, before, after string) {
	if before == after {
		return
	}
	detail := path + ".(return)"
	switch {
	case before == model.UnknownType:
		c.add(model.Patch, CategoryReturnTypeChanged, detail)
	case c.d.Subtypes.IsSubtype(before, after):
		c.add(model.Minor, CategoryReturnTypeChanged, detail)
	default:
		c.add(model.Major, CategoryReturnTypeChanged, detail)
	}
}

// arg compares a matched pair of arguments for name, type and kind.
func (c *collector) arg(path string, before, after model.Arg) {
	detail := argDetail(path, after.Name)

	if before.Name != after.Name {
		if before.Kind == after.Kind && (before.Kind.IsVarPositional() || before.Kind.IsVarKeyword() || before.Kind.IsPositionalOnly()) {
			c.add(model.Patch, CategoryRenamedArg, detail)
		} else {
			c.add(model.Major, CategoryRenamedArg, detail)
		}
	}

	if before.Type != after.Type {
		switch {
		case c.d.Subtypes.IsSubtype(before.Type, after.Type):
			c.add(model.Minor, CategoryTypeChanged, detail)
		case before.Type == model.UnknownType:
			c.add(model.Patch, CategoryTypeChanged, detail)
		default:
			c.add(model.Major, CategoryTypeChanged, detail)
		}
	}

	if before.Kind != after.Kind {
		if after.Kind == before.Kind|model.Default && !before.Kind.Has(model.Default) {
			c.add(model.Minor, CategoryKindChanged, detail)
		} else {
			c.add(model.Major, CategoryKindChanged, detail)
		}
	}
}

// splitArgs separates positional-admissible args (in order), keyword-only args
// (by name) and the variadic keyword slot.
func splitArgs(args []model.Arg) (positional []model.Arg, keyword map[string]model.Arg, varKeyword *model.Arg) {
	keyword = map[string]model.Arg{}
	for i := range args {
		a := args[i]
		switch {
		case a.Kind.Has(model.Positional):
			positional = append(positional, a)
		case a.Kind.IsVarKeyword():
			if varKeyword == nil {
				varKeyword = &a
			}
		case a.Kind.IsKeywordOnly():
			if _, dup := keyword[a.Name]; !dup {
				keyword[a.Name] = a
			}
		}
	}
	return positional, keyword, varKeyword
}
