package value

// Record is an insertion-ordered map from column name to Value.
type Record struct {
	cols []string
	vals []Value
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// RecordWith builds a record from alternating column/value pairs.
func RecordWith(cols []string, vals []Value) *Record {
	r := &Record{}
	for i := range cols {
		if i < len(vals) {
			r.Push(cols[i], vals[i])
		}
	}
	return r
}

// Push sets col to v. An existing column keeps its position.
func (r *Record) Push(col string, v Value) {
	for i, c := range r.cols {
		if c == col {
			r.vals[i] = v
			return
		}
	}
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, v)
}

// Get returns the value of col.
func (r *Record) Get(col string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	for i, c := range r.cols {
		if c == col {
			return r.vals[i], true
		}
	}
	return Value{}, false
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.cols)
}

// Columns returns the column names in order. The slice must not be modified.
func (r *Record) Columns() []string {
	if r == nil {
		return nil
	}
	return r.cols
}

// Values returns the values in column order. The slice must not be modified.
func (r *Record) Values() []Value {
	if r == nil {
		return nil
	}
	return r.vals
}

// Each calls fn for every column in order until fn returns false.
func (r *Record) Each(fn func(col string, v Value) bool) {
	if r == nil {
		return
	}
	for i, c := range r.cols {
		if !fn(c, r.vals[i]) {
			return
		}
	}
}

// Equal compares columns in order and their values, ignoring spans.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i := 0; i < r.Len(); i++ {
		if r.cols[i] != o.cols[i] || !r.vals[i].Equal(o.vals[i]) {
			return false
		}
	}
	return true
}
