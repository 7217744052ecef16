package pattern

import "github.com/rewired-gh/polypattern/internal/models"

// CandidateIterator streams candidate windows into a search, in the style of
// sql.Rows: call Next until it returns false, read each window with
// Candidate, then check Err.
type CandidateIterator interface {
	Next() bool
	Candidate() models.CandidateWindow
	Err() error
}

// SliceIterator iterates over an in-memory slice of candidates.
type SliceIterator struct {
	items []models.CandidateWindow
	pos   int
}

// NewSliceIterator creates an iterator over items.
func NewSliceIterator(items []models.CandidateWindow) *SliceIterator {
	return &SliceIterator{items: items}
}

func (s *SliceIterator) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceIterator) Candidate() models.CandidateWindow {
	return s.items[s.pos-1]
}

func (s *SliceIterator) Err() error {
	return nil
}

// Limit stops it after n candidates. A non-positive n means no limit.
func Limit(it CandidateIterator, n int) CandidateIterator {
	if n <= 0 {
		return it
	}
	return &limitIterator{CandidateIterator: it, remaining: n}
}

type limitIterator struct {
	CandidateIterator
	remaining int
}

func (l *limitIterator) Next() bool {
	if l.remaining <= 0 {
		return false
	}
	l.remaining--
	return l.CandidateIterator.Next()
}
