// Package selection turns pointer gestures over a preview frame into
// document-space selections.
package selection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spherical/redact-edge/internal/coords"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
	"github.com/spherical/redact-edge/internal/preview"
)

// Purpose decides which slot a finished drag is written to.
type Purpose int

const (
	PurposeTextbox Purpose = iota
	PurposeArea
)

func (p Purpose) String() string {
	switch p {
	case PurposeTextbox:
		return "textbox"
	case PurposeArea:
		return "area"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// ParsePurpose accepts "textbox" or "area".
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "textbox", "text":
		return PurposeTextbox, nil
	case "area", "delete-area":
		return PurposeArea, nil
	}
	return 0, domain.ValidationError(fmt.Sprintf("unknown selection purpose %q", s), nil)
}

// Selector sequences press, motion and release events into selections.
type Selector struct {
	mu      sync.Mutex
	logger  *observability.Logger
	purpose Purpose
	frame   *preview.Frame

	pressed    bool
	startX     float64
	startY     float64
	selections domain.Selections
}

// NewSelector creates a selector in textbox mode.
func NewSelector(logger *observability.Logger) *Selector {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Selector{logger: logger.WithComponent("selection")}
}

// SetPurpose switches the slot that later releases write to.
func (s *Selector) SetPurpose(p Purpose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purpose = p
}

// Purpose returns the active purpose.
func (s *Selector) Purpose() Purpose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purpose
}

// SetFrame attaches the frame that gestures are drawn on. Setting a frame
// for another page clears both slots.
func (s *Selector) SetFrame(f *preview.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil && f != nil && s.frame.Page != f.Page {
		s.clear()
	}
	s.frame = f
}

// Press starts a drag.
func (s *Selector) Press(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressed = true
	s.startX, s.startY = x, y
}

// Motion returns the rubber band rectangle for the current pointer position.
// It does not change any selection.
func (s *Selector) Motion(x, y float64) (domain.PixelRect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pressed {
		return domain.PixelRect{}, false
	}
	return domain.PixelRect{X0: s.startX, Y0: s.startY, X1: x, Y1: y}, true
}

// Release finishes the drag and stores the mapped selection in the active
// slot. A textbox drag smaller than the minimum clears the textbox slot and
// returns ErrSelectionTooSmall.
func (s *Selector) Release(x, y float64) (domain.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pressed {
		return domain.Selection{}, domain.SelectionError("release without a preceding press", domain.ErrNoPress)
	}
	s.pressed = false
	if s.frame == nil || s.frame.Image == nil {
		return domain.Selection{}, domain.SelectionError("no page is rendered", domain.ErrNoFrame)
	}

	px := domain.PixelRect{X0: s.startX, Y0: s.startY, X1: x, Y1: y}
	var (
		rect domain.DocumentRect
		err  error
	)
	if s.purpose == PurposeTextbox {
		rect, err = coords.Map(px, s.frame.Mapping())
	} else {
		rect, err = coords.MapUnchecked(px, s.frame.Mapping())
	}
	if err != nil {
		if s.purpose == PurposeTextbox {
			s.selections.Textbox = nil
		}
		s.logger.Warn().Err(err).Str("purpose", s.purpose.String()).Msg("Selection rejected, please drag a larger area")
		return domain.Selection{}, err
	}
	if s.frame.Rotation != 0 {
		rect = coords.Unrotate(rect, s.frame.Rotation, s.frame.PageWidth, s.frame.PageHeight)
	}

	sel := domain.Selection{Rect: rect, Page: s.frame.Page}
	switch s.purpose {
	case PurposeArea:
		s.selections.Area = &sel
	default:
		s.selections.Textbox = &sel
	}
	s.logger.Info().
		Str("purpose", s.purpose.String()).
		Rect("rect", rect.X0, rect.Y0, rect.X1, rect.Y1).
		Int("page", sel.Page+1).
		Msg("Selection stored")
	return sel, nil
}

// Invalidate clears both slots and any drag in progress.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Selector) clear() {
	if s.selections.Textbox != nil || s.selections.Area != nil {
		s.logger.Debug().Msg("Selections cleared")
	}
	s.selections = domain.Selections{}
	s.pressed = false
}

// Selections returns a copy of both slots.
func (s *Selector) Selections() domain.Selections {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.Selections{}
	if s.selections.Textbox != nil {
		v := *s.selections.Textbox
		out.Textbox = &v
	}
	if s.selections.Area != nil {
		v := *s.selections.Area
		out.Area = &v
	}
	return out
}
