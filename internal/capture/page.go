package capture

import (
	"strings"
	"sync"

	"github.com/kimhsiao/gosauna/backend/internal/models"
)

// PageAdapter exposes the booking page to the watcher as typed values.
type PageAdapter interface {
	// ExtractDraft reads the guest inputs and summary panel into a draft booking.
	ExtractDraft() models.Booking

	// Headings returns the text of the page's heading elements.
	Headings() []string
}

// Placeholder hints used to locate guest inputs, matched case-insensitively as
// substrings. Phone hints are tried in order.
var (
	NameHints  = []string{"john doe"}
	EmailHints = []string{"john@example.com"}
	PhoneHints = []string{"(555)", "555"}
	NotesHints = []string{"special requests"}
)

// Input is a text input or textarea and its placeholder.
type Input struct {
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
}

// Summary is the booking summary panel.
type Summary struct {
	Sauna string `json:"sauna"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// PageSnapshot is the visible state of the booking page as reported by the
// in-page script.
type PageSnapshot struct {
	Inputs   []Input  `json:"inputs"`
	Summary  Summary  `json:"summary"`
	Title    string   `json:"title"` // first h1
	Headings []string `json:"headings"`
}

// SnapshotPage is a PageAdapter over the most recent PageSnapshot.
type SnapshotPage struct {
	mu   sync.RWMutex
	snap PageSnapshot
}

// NewSnapshotPage creates an empty SnapshotPage.
func NewSnapshotPage() *SnapshotPage {
	return &SnapshotPage{}
}

// Update replaces the current snapshot.
func (p *SnapshotPage) Update(snap PageSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap
}

// Snapshot returns the current snapshot.
func (p *SnapshotPage) Snapshot() PageSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *SnapshotPage) ExtractDraft() models.Booking {
	snap := p.Snapshot()

	sauna := strings.TrimSpace(snap.Summary.Sauna)
	if sauna == "" {
		sauna = strings.TrimSpace(snap.Title)
	}

	return models.Booking{
		GuestName:  inputByHints(snap.Inputs, NameHints),
		GuestEmail: inputByHints(snap.Inputs, EmailHints),
		GuestPhone: inputByHints(snap.Inputs, PhoneHints),
		Notes:      inputByHints(snap.Inputs, NotesHints),
		Date:       strings.TrimSpace(snap.Summary.Date),
		TimeSlot:   strings.TrimSpace(snap.Summary.Time),
		SaunaName:  sauna,
		Status:     models.StatusConfirmed,
	}
}

func (p *SnapshotPage) Headings() []string {
	snap := p.Snapshot()
	headings := make([]string, 0, len(snap.Headings)+1)
	if snap.Title != "" {
		headings = append(headings, snap.Title)
	}
	return append(headings, snap.Headings...)
}

// inputByHints returns the trimmed value of the first input whose placeholder
// contains a hint, trying hints in order. A hint whose input is empty falls
// through to the next hint.
func inputByHints(inputs []Input, hints []string) string {
	for _, hint := range hints {
		for _, in := range inputs {
			if strings.Contains(strings.ToLower(in.Placeholder), hint) {
				if v := strings.TrimSpace(in.Value); v != "" {
					return v
				}
				break
			}
		}
	}
	return ""
}
