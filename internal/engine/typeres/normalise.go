package typeres

import (
	"log/slog"
	"strings"

	"apisurface/internal/core/model"
	"apisurface/internal/core/typexpr"
)

// standardGenerics are the typing names that get a "typing." prefix when
// they are not otherwise resolvable in the name context.
var standardGenerics = map[string]bool{
	"AbstractSet": true, "Any": true, "AnyStr": true, "AsyncContextManager": true,
	"AsyncGenerator": true, "AsyncIterable": true, "AsyncIterator": true, "Awaitable": true,
	"BinaryIO": true, "ByteString": true, "Callable": true, "ChainMap": true,
	"ClassVar": true, "Collection": true, "Container": true, "ContextManager": true,
	"Coroutine": true, "Counter": true, "DefaultDict": true, "Deque": true, "Dict": true,
	"Final": true, "FrozenSet": true, "Generator": true, "Generic": true, "Hashable": true,
	"IO": true, "ItemsView": true, "Iterable": true, "Iterator": true, "KeysView": true,
	"List": true, "Literal": true, "Mapping": true, "MappingView": true, "Match": true,
	"MutableMapping": true, "MutableSequence": true, "MutableSet": true, "NamedTuple": true,
	"NoReturn": true, "Optional": true, "OrderedDict": true, "Pattern": true,
	"Protocol": true, "Reversible": true, "Sequence": true, "Set": true, "Sized": true,
	"SupportsAbs": true, "SupportsBytes": true, "SupportsComplex": true,
	"SupportsFloat": true, "SupportsIndex": true, "SupportsInt": true, "SupportsRound": true,
	"Text": true, "TextIO": true, "Tuple": true, "Type": true, "TypeVar": true,
	"TypedDict": true, "Union": true, "ValuesView": true,
}

// Normalise rewrites every head identifier of expr through the name context.
// Text that does not parse as a type expression becomes typing.Any.
func (r *Resolver) Normalise(expr string) string {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "":
		return model.UnknownType
	case model.UnknownType:
		return expr
	}
	if unq, ok := unquote(expr); ok {
		expr = strings.TrimSpace(unq)
	}
	e, err := typexpr.Parse(expr)
	if err != nil {
		slog.Debug("unparseable type expression", "expr", expr, "error", err)
		return model.AnyType
	}
	r.rewrite(e, 0)
	return e.String()
}

const maxForwardRefDepth = 4

func (r *Resolver) rewrite(e *typexpr.Expr, depth int) {
	if e.IsIdentifier() {
		e.Head = r.qualify(e.Head)
	}
	literalArgs := e.Head == "typing.Literal"
	for i, a := range e.Args {
		if !literalArgs && depth < maxForwardRefDepth && a.IsLiteral() && !a.Subscripted {
			if unq, ok := unquote(a.Head); ok {
				if fwd, err := typexpr.Parse(unq); err == nil {
					r.rewrite(fwd, depth+1)
					e.Args[i] = fwd
					continue
				}
			}
		}
		if literalArgs {
			continue
		}
		r.rewrite(a, depth)
	}
}

func (r *Resolver) qualify(head string) string {
	first, rest, dotted := strings.Cut(head, ".")
	if target, ok := r.context[first]; ok && target != "" {
		if dotted {
			return target + "." + rest
		}
		return target
	}
	if !dotted && standardGenerics[head] {
		return "typing." + head
	}
	return head
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 {
		q := s[0]
		if (q == '"' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1], true
		}
	}
	return s, false
}
