package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginManagerState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", PluginManagerUninitialized.String())
	assert.Equal(t, "initializing", PluginManagerInitializing.String())
	assert.Equal(t, "ready", PluginManagerReady.String())
	assert.Equal(t, "disposed", PluginManagerDisposed.String())
	assert.Equal(t, unknownDescription, PluginManagerState(42).String())
}

func TestSideBarElement(t *testing.T) {
	parent := NewSideBarElement("favorite", "heart", "0")
	child := NewSideBarChild(parent, "starred", "star", "1")
	sep := NewSideBarSeparator()

	assert.Equal(t, SideBarNormal, parent.Kind())
	assert.Equal(t, SideBarSeparator, sep.Kind())
	assert.Equal(t, 0, parent.Snapshot().Indent)
	assert.Equal(t, 1, child.Snapshot().Indent)

	assert.Equal(t, uint64(0), child.Revision())
	child.SetText("starred (3)")
	assert.Equal(t, "starred (3)", child.Text())
	assert.Equal(t, uint64(1), child.Revision())

	snap := child.Snapshot()
	assert.Equal(t, SideBarEntry{Kind: SideBarNormal, Text: "starred (3)", Icon: "star", Target: "1", Indent: 1}, snap)
}

func TestNewSideBarChild_NilParent(t *testing.T) {
	el := NewSideBarChild(nil, "x", "", "")
	assert.Equal(t, 0, el.Snapshot().Indent)
}
