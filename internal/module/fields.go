package module

import (
	"fmt"

	"github.com/roach88/chainledger/internal/core"
)

// fieldPolicy is the shared shape of the reference modules: records on one
// stream must carry a set of payload fields, and queries match those
// fields exactly.
type fieldPolicy struct {
	stream   string
	required []string
}

func (p fieldPolicy) check(record core.Record) error {
	if record.Stream != p.stream {
		return nil
	}
	for _, field := range p.required {
		if _, ok := record.PayloadField(field); !ok {
			return fmt.Errorf("%w: %s record must have %q", ErrMissingField, p.stream, field)
		}
	}
	return nil
}

// filter narrows to the policy's stream only when the filter names one of
// its fields. Otherwise records pass through untouched.
func (p fieldPolicy) filter(records []core.Record, filter map[string]any) []core.Record {
	want := make(map[string]string)
	for _, field := range p.required {
		if v, ok := filter[field].(string); ok {
			want[field] = v
		}
	}
	if len(want) == 0 {
		return records
	}

	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if r.Stream != p.stream {
			continue
		}
		if matchesAll(r, want) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r core.Record, want map[string]string) bool {
	for field, v := range want {
		got, ok := r.PayloadString(field)
		if !ok || got != v {
			return false
		}
	}
	return true
}
