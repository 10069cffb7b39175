package codec

import (
	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
)

// record is the shared serial shape of every node variant. Field order is the
// key order of the encoded form, so "class" always comes first.
type record struct {
	Class   string    `json:"class" yaml:"class"`
	Name    *string   `json:"name,omitempty" yaml:"name,omitempty"`
	Path    *string   `json:"path,omitempty" yaml:"path,omitempty"`
	Body    *[]record `json:"body,omitempty" yaml:"body,omitempty"`
	Args    *[]record `json:"args,omitempty" yaml:"args,omitempty"`
	Returns *string   `json:"returns,omitempty" yaml:"returns,omitempty"`
	Type    *string   `json:"type,omitempty" yaml:"type,omitempty"`
	Kind    *int      `json:"kind,omitempty" yaml:"kind,omitempty"`
	Info    *string   `json:"info,omitempty" yaml:"info,omitempty"`
}

func str(s string) *string { return &s }

func toRecord(n model.Node) record {
	switch v := n.(type) {
	case *model.Module:
		return record{Class: string(model.KindModule), Name: str(v.Name), Path: str(v.Path), Body: toRecords(v.Body)}
	case *model.Class:
		return record{Class: string(model.KindClass), Name: str(v.Name), Path: str(v.Path), Body: toRecords(v.Body)}
	case *model.Func:
		args := make([]record, 0, len(v.Args))
		for _, a := range v.Args {
			args = append(args, argRecord(a))
		}
		return record{Class: string(model.KindFunc), Name: str(v.Name), Args: &args, Returns: str(v.Returns)}
	case *model.Var:
		return record{Class: string(model.KindVar), Name: str(v.Name), Type: str(v.Type)}
	case *model.Unknown:
		return record{Class: string(model.KindUnknown), Name: str(v.Name), Info: str(v.Info)}
	}
	return record{}
}

func argRecord(a model.Arg) record {
	kind := int(a.Kind)
	return record{Class: string(model.KindArg), Name: str(a.Name), Type: str(a.Type), Kind: &kind}
}

func toRecords(body []model.Node) *[]record {
	out := make([]record, 0, len(body))
	for _, n := range body {
		out = append(out, toRecord(n))
	}
	return &out
}

// fromRecord rebuilds a body node. where locates the record in error messages.
func fromRecord(r record, where string) (model.Node, error) {
	switch model.NodeKind(r.Class) {
	case model.KindModule, model.KindClass:
		if err := require(r, where, "name", r.Name != nil, "path", r.Path != nil, "body", r.Body != nil); err != nil {
			return nil, err
		}
		body, err := fromRecords(*r.Body, where+"."+*r.Name)
		if err != nil {
			return nil, err
		}
		if r.Class == string(model.KindModule) {
			return &model.Module{Name: *r.Name, Path: *r.Path, Body: body}, nil
		}
		return &model.Class{Name: *r.Name, Path: *r.Path, Body: body}, nil
	case model.KindFunc:
		if err := require(r, where, "name", r.Name != nil, "args", r.Args != nil, "returns", r.Returns != nil); err != nil {
			return nil, err
		}
		args := make([]model.Arg, 0, len(*r.Args))
		for i, ar := range *r.Args {
			a, err := fromArgRecord(ar, where+"."+*r.Name, i)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return &model.Func{Name: *r.Name, Args: args, Returns: *r.Returns}, nil
	case model.KindVar:
		if err := require(r, where, "name", r.Name != nil, "type", r.Type != nil); err != nil {
			return nil, err
		}
		return &model.Var{Name: *r.Name, Type: *r.Type}, nil
	case model.KindUnknown:
		if err := require(r, where, "name", r.Name != nil, "info", r.Info != nil); err != nil {
			return nil, err
		}
		return &model.Unknown{Name: *r.Name, Info: *r.Info}, nil
	}
	return nil, malformed(where, "unknown class tag %q", r.Class)
}

func fromArgRecord(r record, where string, index int) (model.Arg, error) {
	if r.Class != string(model.KindArg) {
		return model.Arg{}, malformed(where, "argument %d has class %q, want Arg", index, r.Class)
	}
	if err := require(r, where, "name", r.Name != nil, "type", r.Type != nil, "kind", r.Kind != nil); err != nil {
		return model.Arg{}, err
	}
	kind := model.ArgKind(*r.Kind)
	if *r.Kind < 0 || *r.Kind > 0xff || !kind.Valid() {
		return model.Arg{}, malformed(where, "argument %q has invalid kind %d", *r.Name, *r.Kind)
	}
	return model.Arg{Name: *r.Name, Type: *r.Type, Kind: kind}, nil
}

func fromRecords(recs []record, where string) ([]model.Node, error) {
	out := make([]model.Node, 0, len(recs))
	for _, r := range recs {
		n, err := fromRecord(r, where)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// require checks (field, present) pairs.
func require(r record, where string, pairs ...interface{}) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if present, _ := pairs[i+1].(bool); !present {
			return malformed(where, "%s record is missing %q", r.Class, pairs[i])
		}
	}
	return nil
}

func malformed(where, format string, args ...interface{}) error {
	err := errors.Newf(errors.CodeMalformedSnapshot, format, args...)
	if where != "" {
		err = errors.AddContext(err, errors.CtxPath, where)
	}
	return err
}
