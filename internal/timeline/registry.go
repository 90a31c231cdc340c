package timeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SupportedFormats lists accepted file extensions per clip kind.
var SupportedFormats = map[ClipKind][]string{
	ClipVideo: {"mp4", "mov", "avi", "mkv", "webm"},
	ClipAudio: {"mp3", "wav", "m4a", "ogg"},
	ClipImage: {"jpg", "jpeg", "png", "gif", "webp"},
}

// ClipSpec describes an asset to register.
type ClipSpec struct {
	Kind      ClipKind
	Name      string
	Format    string
	Duration  float64
	SourceRef string
	Text      string
}

// ReferenceChecker is implemented by anything holding placements.
type ReferenceChecker interface {
	ReferencesClip(clipID string) bool
}

// Registry owns clip records independently of where they are placed.
type Registry struct {
	clips map[string]*Clip
	order []string
	refs  []ReferenceChecker
}

func NewRegistry() *Registry {
	return &Registry{clips: make(map[string]*Clip)}
}

// Attach makes Unregister consult rc before removing a clip.
func (r *Registry) Attach(rc ReferenceChecker) {
	r.refs = append(r.refs, rc)
}

func (r *Registry) Register(in ClipSpec) (*Clip, error) {
	clip, err := buildClip(in)
	if err != nil {
		return nil, err
	}
	clip.ID = NewID()
	r.add(clip)
	return &clip, nil
}

func (r *Registry) add(c Clip) {
	cp := c
	if _, exists := r.clips[c.ID]; !exists {
		r.order = append(r.order, c.ID)
	}
	r.clips[c.ID] = &cp
}

func (r *Registry) Get(id string) (*Clip, error) {
	c, ok := r.clips[id]
	if !ok {
		return nil, fmt.Errorf("%w: clip %s", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (r *Registry) Unregister(id string) error {
	if _, ok := r.clips[id]; !ok {
		return fmt.Errorf("%w: clip %s", ErrNotFound, id)
	}
	for _, rc := range r.refs {
		if rc.ReferencesClip(id) {
			return fmt.Errorf("%w: %s", ErrClipInUse, id)
		}
	}
	delete(r.clips, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns clips in registration order.
func (r *Registry) List() []Clip {
	out := make([]Clip, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.clips[id])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}

func buildClip(in ClipSpec) (Clip, error) {
	c := Clip{
		Kind:      in.Kind,
		Name:      strings.TrimSpace(in.Name),
		Format:    strings.ToLower(strings.TrimPrefix(strings.TrimSpace(in.Format), ".")),
		Duration:  in.Duration,
		SourceRef: in.SourceRef,
		Text:      in.Text,
	}

	if c.Duration < 0 {
		return Clip{}, fmt.Errorf("%w: negative duration %g", ErrInvalidAsset, c.Duration)
	}

	switch c.Kind {
	case ClipVideo, ClipAudio:
		if c.Duration <= 0 {
			return Clip{}, fmt.Errorf("%w: %s clip needs a positive duration", ErrInvalidAsset, c.Kind)
		}
	case ClipImage, ClipText:
		if c.Duration == 0 {
			c.Duration = DefaultStillDuration
		}
	default:
		return Clip{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, c.Kind)
	}

	if c.Kind == ClipText {
		if strings.TrimSpace(c.Text) == "" {
			return Clip{}, fmt.Errorf("%w: text clip needs text", ErrInvalidAsset)
		}
		c.Format = ""
		return c, nil
	}

	if c.SourceRef == "" {
		return Clip{}, fmt.Errorf("%w: source reference is required", ErrInvalidAsset)
	}
	if c.Format == "" {
		c.Format = strings.ToLower(strings.TrimPrefix(filepath.Ext(c.SourceRef), "."))
	}
	if !formatSupported(c.Kind, c.Format) {
		return Clip{}, fmt.Errorf("%w: unsupported %s format %q", ErrInvalidAsset, c.Kind, c.Format)
	}
	if c.Name == "" {
		c.Name = filepath.Base(c.SourceRef)
	}
	return c, nil
}

func formatSupported(kind ClipKind, format string) bool {
	for _, f := range SupportedFormats[kind] {
		if f == format {
			return true
		}
	}
	return false
}
