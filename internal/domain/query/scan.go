package query

import "github.com/kailas-cloud/backsync/internal/domain/record"

// ScanParams restricts a backend's id-ordered page scan.
//
// Keys, when non-nil, lists explicit ids and replaces the range. StartKey is
// always inclusive ("" starts at the beginning). EndKey applies only when
// HasEndKey is set; InclusiveEnd selects <= over <.
type ScanParams struct {
	Keys         []string
	StartKey     string
	EndKey       string
	HasEndKey    bool
	InclusiveEnd bool
	// Limit caps rows per page; 0 leaves it to the backend.
	Limit int
	// Extra carries backend-specific request parameters through unchanged.
	Extra map[string]string
}

// IsKeyList reports whether the scan fetches an explicit key list.
func (p ScanParams) IsKeyList() bool { return p.Keys != nil }

// IsEmptyRange reports whether the id range can match no key at all, such
// as a start key past the end key. Some backends reject such ranges.
func (p ScanParams) IsEmptyRange() bool {
	if p.Keys != nil || !p.HasEndKey {
		return false
	}
	if p.InclusiveEnd {
		return p.StartKey > p.EndKey
	}
	return p.StartKey >= p.EndKey
}

// ContainsKey reports whether id falls inside the scan restriction.
func (p ScanParams) ContainsKey(id string) bool {
	if p.Keys != nil {
		for _, k := range p.Keys {
			if k == id {
				return true
			}
		}
		return false
	}
	if id < p.StartKey {
		return false
	}
	if p.HasEndKey {
		if p.InclusiveEnd {
			return id <= p.EndKey
		}
		return id < p.EndKey
	}
	return true
}

// ToScanParams narrows the backend scan using the filter's id constraints.
// An $in list becomes an explicit key list, repeated ids dropped; otherwise $gte/$gt give the
// start key and $lte/$lt the end key. The start is always inclusive at the
// backend, so an exclusive $gt relies on the filter being re-applied.
// Non-string bounds leave the scan unrestricted.
func ToScanParams(f Filter) ScanParams {
	var p ScanParams
	var rng *Range
	for _, e := range f.exprs {
		if e.Field() != record.FieldID {
			continue
		}
		switch c := e.(type) {
		case In:
			keys := make([]string, 0, len(c.Values))
			seen := make(map[string]struct{}, len(c.Values))
			for _, v := range c.Values {
				s, ok := v.(string)
				if !ok {
					continue
				}
				if _, dup := seen[s]; dup {
					continue
				}
				seen[s] = struct{}{}
				keys = append(keys, s)
			}
			p.Keys = keys
			return p
		case Equals:
			if s, ok := c.Value.(string); ok {
				p.Keys = []string{s}
				return p
			}
		case Range:
			rng = &c
		}
	}
	if rng == nil {
		return p
	}

	if s, ok := firstString(rng.Gte, rng.Gt); ok {
		p.StartKey = s
	}
	if s, ok := rng.Lte.(string); ok {
		p.EndKey, p.HasEndKey, p.InclusiveEnd = s, true, true
	} else if s, ok := rng.Lt.(string); ok {
		p.EndKey, p.HasEndKey, p.InclusiveEnd = s, true, false
	}
	return p
}

func firstString(vals ...any) (string, bool) {
	for _, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		return s, ok
	}
	return "", false
}
