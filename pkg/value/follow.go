package value

import (
	"context"
	"io"

	"github.com/ha1tch/nudb/pkg/errors"
)

// FollowCellPath walks path into v. Custom values handle name members
// themselves; index members materialize them first.
//
// Custom values created along the way are released once the next member
// has been followed. v stays with the caller, and so does the result, which
// the caller releases with Release.
func FollowCellPath(ctx context.Context, v Value, path CellPath) (Value, error) {
	cur := v
	owned := false
	for _, m := range path.Members {
		next, err := followMember(ctx, cur, m)
		if owned {
			Release(cur)
		}
		owned = true
		if err != nil {
			if m.Optional {
				return Nothing(m.Span), nil
			}
			return Value{}, err
		}
		cur = next
	}
	return cur, nil
}

// Release closes v if it is a custom value that holds a resource.
func Release(v Value) error {
	if v.kind != KindCustom {
		return nil
	}
	if c, ok := v.custom.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func followMember(ctx context.Context, v Value, m PathMember) (Value, error) {
	if v.kind == KindCustom {
		if !m.IsIndex {
			return v.custom.FollowPathString(ctx, v.span, m.Name, m.Span)
		}
		base, err := v.custom.ToBaseValue(ctx, v.span)
		if err != nil {
			return Value{}, err
		}
		v = base
	}

	if m.IsIndex {
		list, ok := v.AsList()
		if !ok {
			return Value{}, errors.Newf(errors.ErrCodeCellPath, "cannot index %s with %d", v.TypeName(), m.Index).
				WithSpan(m.Span).Err()
		}
		if m.Index < 0 || m.Index >= len(list) {
			return Value{}, errors.Newf(errors.ErrCodeCellPath, "row %d out of range (length %d)", m.Index, len(list)).
				WithSpan(m.Span).Err()
		}
		return list[m.Index], nil
	}

	switch v.kind {
	case KindRecord:
		item, ok := v.rec.Get(m.Name)
		if !ok {
			return Value{}, errors.Newf(errors.ErrCodeCellPath, "column '%s' not found", m.Name).
				WithSpan(m.Span).Err()
		}
		return item, nil
	case KindList:
		out := make([]Value, 0, len(v.list))
		for _, row := range v.list {
			item, err := followMember(ctx, row, m)
			if err != nil {
				return Value{}, err
			}
			out = append(out, item)
		}
		return List(out, m.Span), nil
	}
	return Value{}, errors.Newf(errors.ErrCodeCellPath, "cannot follow '%s' into %s", m.Name, v.TypeName()).
		WithSpan(m.Span).Err()
}
