package model

// Equal compares two nodes structurally. Sequences are compared in order.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Module:
		y := b.(*Module)
		return x.Name == y.Name && x.Path == y.Path && bodiesEqual(x.Body, y.Body)
	case *Class:
		y := b.(*Class)
		return x.Name == y.Name && x.Path == y.Path && bodiesEqual(x.Body, y.Body)
	case *Func:
		y := b.(*Func)
		return FuncEqual(x, y)
	case *Var:
		y := b.(*Var)
		return *x == *y
	case *Unknown:
		y := b.(*Unknown)
		return *x == *y
	}
	return false
}

func FuncEqual(x, y *Func) bool {
	if x.Name != y.Name || x.Returns != y.Returns || len(x.Args) != len(y.Args) {
		return false
	}
	for i := range x.Args {
		if x.Args[i] != y.Args[i] {
			return false
		}
	}
	return true
}

// ModulesEqual compares two snapshots.
func ModulesEqual(a, b []*Module) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func bodiesEqual(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
