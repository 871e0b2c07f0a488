package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// SystemCounterInterval is how often the system plugin bumps its counter.
const SystemCounterInterval = 5 * time.Second

// SystemPlugin contributes the built-in side bar layout.
type SystemPlugin struct {
	counter atomic.Int64
	dynamic *domain.SideBarElement
}

// NewSystemPlugin creates the built-in plugin.
func NewSystemPlugin() *SystemPlugin {
	return &SystemPlugin{}
}

// Init accepts no parameters.
func (p *SystemPlugin) Init(string) error {
	return nil
}

// Load registers the side bar and the counter task.
func (p *SystemPlugin) Load(_ context.Context, reg driven.HandlerRegistry) error {
	feeds := domain.NewSideBarElement("Feeds", "rss", "")
	elements := []*domain.SideBarElement{
		domain.NewSideBarElement("Favorites", "heart", "0"),
		domain.NewSideBarSeparator(),
		feeds,
		domain.NewSideBarChild(feeds, "test 1", "rss", "1"),
		domain.NewSideBarChild(feeds, "test 2", "rss", "2"),
		domain.NewSideBarChild(feeds, "test 3", "rss", "3"),
		domain.NewSideBarSeparator(),
	}
	p.dynamic = domain.NewSideBarElement(p.dynamicText(), "", "")
	elements = append(elements, p.dynamic)

	for _, el := range elements {
		if err := reg.RegisterSideBarElement(el); err != nil {
			return err
		}
	}
	return reg.RegisterScheduledTask("counter", p.tick, SystemCounterInterval)
}

// Counter returns how many times the counter task ran.
func (p *SystemPlugin) Counter() int64 {
	return p.counter.Load()
}

func (p *SystemPlugin) tick(context.Context) error {
	p.counter.Add(1)
	p.dynamic.SetText(p.dynamicText())
	return nil
}

func (p *SystemPlugin) dynamicText() string {
	return fmt.Sprintf("test dynamic (%d)", p.counter.Load())
}
