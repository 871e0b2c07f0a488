package domain

import (
	"sync"

	"github.com/google/uuid"
)

// PluginInstanceInfo is the persisted descriptor of a plugin instance.
// It is the payload of an item of the plugin type.
type PluginInstanceInfo struct {
	// PluginName selects the plugin implementation from the providers.
	PluginName string `json:"plugin_name"`

	// Parameters is the plugin-specific serialized configuration.
	Parameters string `json:"parameters"`
}

// LoadedPlugin summarises a loaded plugin registration.
type LoadedPlugin struct {
	InstanceID uuid.UUID
	Info       PluginInstanceInfo
	TypeIDs    []uuid.UUID
	Tasks      []string
	System     bool
}

// PluginManagerState is the lifecycle state of a plugin manager.
type PluginManagerState int

// Plugin manager states. Transitions only move forward.
const (
	PluginManagerUninitialized PluginManagerState = iota
	PluginManagerInitializing
	PluginManagerReady
	PluginManagerDisposed
)

// String returns the string representation.
func (s PluginManagerState) String() string {
	switch s {
	case PluginManagerUninitialized:
		return "uninitialized"
	case PluginManagerInitializing:
		return "initializing"
	case PluginManagerReady:
		return "ready"
	case PluginManagerDisposed:
		return "disposed"
	default:
		return unknownDescription
	}
}

// SideBarElementKind distinguishes entries from separators.
type SideBarElementKind string

// Side bar element kinds.
const (
	SideBarNormal    SideBarElementKind = "normal"
	SideBarSeparator SideBarElementKind = "separator"
)

// SideBarEntry is a point-in-time copy of a side bar element.
type SideBarEntry struct {
	Kind   SideBarElementKind `json:"kind"`
	Text   string             `json:"text,omitempty"`
	Icon   string             `json:"icon,omitempty"`
	Target string             `json:"target,omitempty"`
	Indent int                `json:"indent,omitempty"`
}

// SideBarElement is a navigation descriptor contributed by a plugin.
// Presentation layers only read it. Its text may change while the
// plugin is loaded; Revision increments on every change.
type SideBarElement struct {
	kind   SideBarElementKind
	icon   string
	target string
	indent int

	mu       sync.RWMutex
	text     string
	revision uint64
}

// NewSideBarElement creates a normal side bar entry.
func NewSideBarElement(text, icon, target string) *SideBarElement {
	return &SideBarElement{kind: SideBarNormal, text: text, icon: icon, target: target}
}

// NewSideBarSeparator creates a separator.
func NewSideBarSeparator() *SideBarElement {
	return &SideBarElement{kind: SideBarSeparator}
}

// NewSideBarChild creates a normal entry indented one level below parent.
func NewSideBarChild(parent *SideBarElement, text, icon, target string) *SideBarElement {
	el := NewSideBarElement(text, icon, target)
	if parent != nil {
		el.indent = parent.indent + 1
	}
	return el
}

// Kind returns the element kind.
func (e *SideBarElement) Kind() SideBarElementKind {
	return e.kind
}

// Text returns the current text.
func (e *SideBarElement) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.text
}

// SetText replaces the text.
func (e *SideBarElement) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
	e.revision++
}

// Revision returns the number of text changes so far.
func (e *SideBarElement) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision
}

// Snapshot returns a copy of the element's current state.
func (e *SideBarElement) Snapshot() SideBarEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return SideBarEntry{
		Kind:   e.kind,
		Text:   e.text,
		Icon:   e.icon,
		Target: e.target,
		Indent: e.indent,
	}
}
