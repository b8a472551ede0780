package wire

import (
	"bytes"

	ierrors "goirc/internal/errors"
)

// Framer reassembles lines from arbitrary read chunks.  A chunk may end
// mid-line or carry several lines; only complete lines are returned and
// the remainder waits for the next Feed.
//
// A Framer is not safe for concurrent use; each connection owns one.
type Framer struct {
	buf        []byte
	max        int
	discarding bool // inside an over-long line, skip to the next '\n'
}

// NewFramer returns a Framer that drops lines longer than max bytes.
// max <= 0 selects MaxLineLength.
func NewFramer(max int) *Framer {
	if max <= 0 {
		max = MaxLineLength
	}
	return &Framer{max: max}
}

// Feed appends p and returns every line completed by it, without the
// "\n" or "\r\n" terminator.  Blank lines are skipped.  If an over-long
// line had to be discarded the returned error is ErrLineTooLong; the
// lines are still valid.
func (f *Framer) Feed(p []byte) ([]string, error) {
	var (
		lines []string
		err   error
	)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if !f.discarding {
				f.buf = append(f.buf, p...)
				if len(f.buf) > f.max {
					f.buf = f.buf[:0]
					f.discarding = true
					err = ierrors.ErrLineTooLong
				}
			}
			break
		}

		if f.discarding {
			f.discarding = false
		} else {
			f.buf = append(f.buf, p[:i]...)
			if len(f.buf) > f.max {
				err = ierrors.ErrLineTooLong
			} else if line := string(bytes.TrimRight(f.buf, "\r")); line != "" {
				lines = append(lines, line)
			}
		}
		f.buf = f.buf[:0]
		p = p[i+1:]
	}
	return lines, err
}

// Pending reports how many bytes of an unterminated line are buffered.
func (f *Framer) Pending() int { return len(f.buf) }
