// Package signature locates byte patterns with wildcards inside a module.
//
// A pattern must identify exactly one location. Two or more matches are
// reported as ErrAmbiguous instead of picking one.
package signature

import (
	"bytes"
	"fmt"

	"github.com/apex/log"

	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/module"
)

const window = 0x10000

// Scan searches the whole extent of img.
func Scan(img *module.Image, p Pattern) (uint64, error) {
	return ScanRegion(img.Process(), img.Base(), img.End(), p)
}

// ScanRegion searches the inclusive range [base, end]. Memory is read in
// windows that overlap by len(p)-1 bytes and never past end.
func ScanRegion(proc host.Process, base, end uint64, p Pattern) (uint64, error) {
	if p.Len() == 0 {
		return 0, ErrEmptyPattern
	} else if end < base {
		return 0, fmt.Errorf("%w: end %#x before base %#x", host.ErrArgumentInvalid, end, base)
	}
	entry := log.WithFields(log.Fields{
		"pattern": p.String(),
		"base":    fmt.Sprintf("%#x", base),
		"end":     fmt.Sprintf("%#x", end),
	})
	entry.Debug("scan")
	n := uint64(p.Len())
	if n-1 > end-base {
		return 0, ErrNotFound
	}
	step := max(window, 2*n)
	var hits []uint64
	for start := base; ; {
		last := min(end, start+step-1)
		data, err := proc.MemRead(start, last-start+1)
		if err != nil {
			return 0, fmt.Errorf("read %#x: %w", start, err)
		}
		for from := 0; len(hits) < 2; from++ {
			i := p.index(data, from)
			if i < 0 {
				break
			}
			hits = append(hits, start+uint64(i))
			from = i
		}
		if len(hits) > 1 {
			entry.WithField("matches", fmt.Sprintf("%#x %#x", hits[0], hits[1])).Debug("scan ambiguous")
			return 0, fmt.Errorf("%w: %v matches at %#x and %#x", ErrAmbiguous, p, hits[0], hits[1])
		}
		if last == end {
			break
		}
		start = last + 1 - (n - 1)
	}
	if len(hits) == 0 {
		entry.Debug("scan miss")
		return 0, ErrNotFound
	}
	entry.WithField("addr", fmt.Sprintf("%#x", hits[0])).Debug("scan hit")
	return hits[0], nil
}

// ScanBytes searches data as if it were mapped at base.
func ScanBytes(data []byte, base uint64, p Pattern) (uint64, error) {
	if p.Len() == 0 {
		return 0, ErrEmptyPattern
	}
	first := p.index(data, 0)
	if first < 0 {
		return 0, ErrNotFound
	}
	if second := p.index(data, first+1); second >= 0 {
		return 0, fmt.Errorf("%w: %v matches at %#x and %#x", ErrAmbiguous, p, base+uint64(first), base+uint64(second))
	}
	return base + uint64(first), nil
}

// Count returns the number of positions in data where p matches.
func Count(data []byte, p Pattern) int {
	if p.Len() == 0 {
		return 0
	}
	count := 0
	for i := p.index(data, 0); i >= 0; i = p.index(data, i+1) {
		count++
	}
	return count
}

// index returns the first match starting at or after from, or -1.
func (p Pattern) index(data []byte, from int) int {
	last := len(data) - len(p.elems)
	for i := from; i <= last; i++ {
		if p.anchor >= 0 {
			want, _ := p.elems[p.anchor].Value()
			j := bytes.IndexByte(data[i+p.anchor:last+p.anchor+1], want)
			if j < 0 {
				return -1
			}
			i += j
		}
		if p.Match(data[i:]) {
			return i
		}
	}
	return -1
}
