package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var filesizeUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatFilesize renders n bytes with a binary unit and at most one decimal.
func FormatFilesize(n int64) string {
	d := decimal.NewFromInt(n)
	unit := decimal.NewFromInt(1024)
	i := 0
	for d.Abs().GreaterThanOrEqual(unit) && i < len(filesizeUnits)-1 {
		d = d.Div(unit)
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, filesizeUnits[0])
	}
	return d.Round(1).StringFixed(1) + " " + filesizeUnits[i]
}

// String renders v for display. It is not a serialization format.
func (v Value) String() string {
	switch v.kind {
	case KindNothing:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString, KindGlob:
		return v.s
	case KindFilesize:
		return FormatFilesize(v.i)
	case KindDuration:
		return time.Duration(v.i).String()
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	case KindCellPath:
		return v.path.String()
	case KindBinary:
		return fmt.Sprintf("[%d bytes]", len(v.bin))
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindRecord:
		parts := make([]string, 0, v.rec.Len())
		v.rec.Each(func(col string, item Value) bool {
			parts = append(parts, col+": "+item.String())
			return true
		})
		return "{" + strings.Join(parts, ", ") + "}"
	case KindRange:
		op := "..<"
		if v.rng.Inclusive {
			op = ".."
		}
		return fmt.Sprintf("%d%s%d", v.rng.From, op, v.rng.To)
	case KindClosure:
		return fmt.Sprintf("<closure %d>", v.closure.BlockID)
	case KindError:
		return v.err.Error()
	case KindCustom:
		return "<" + v.custom.TypeName() + ">"
	}
	return ""
}
