package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// FeedPluginName is the name of the feed plugin.
const FeedPluginName = "feed"

// FeedsTypeID is the type of feed state items.
var FeedsTypeID = uuid.MustParse("3f1d6c8e-2a47-4b95-9e0c-7d5a1b2c3e4f")

const (
	// DefaultFeedInterval is the poll interval when none is configured.
	DefaultFeedInterval = 30 * time.Minute

	// MinFeedInterval is the shortest accepted poll interval.
	MinFeedInterval = time.Second

	feedLockTimeout = 2 * time.Second
)

// FeedParams are the instance parameters of the feed plugin.
type FeedParams struct {
	URL      string `json:"url"`
	Interval string `json:"interval,omitempty"`
}

// FeedState is the payload of a feed state item.
type FeedState struct {
	URL        string    `json:"url"`
	LastPolled time.Time `json:"last_polled"`
	Polls      int       `json:"polls"`
}

// FeedPlugin polls one feed URL. Fetching and parsing the feed is not
// implemented; a poll records when it happened.
type FeedPlugin struct {
	url      *url.URL
	interval time.Duration

	// limiter caps polls at one per interval even when the runner
	// ticks faster, as in development mode.
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	registry driven.HandlerRegistry
	element  *domain.SideBarElement
	polls    int
}

// NewFeedPlugin creates an uninitialised feed plugin.
func NewFeedPlugin() *FeedPlugin {
	return &FeedPlugin{now: time.Now}
}

// Init parses FeedParams from JSON.
func (p *FeedPlugin) Init(parameters string) error {
	var params FeedParams
	if err := json.Unmarshal([]byte(parameters), &params); err != nil {
		return fmt.Errorf("%w: feed parameters: %v", domain.ErrInvalidInput, err)
	}

	u, err := url.Parse(params.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: feed url %q", domain.ErrInvalidInput, params.URL)
	}

	interval := DefaultFeedInterval
	if params.Interval != "" {
		interval, err = time.ParseDuration(params.Interval)
		if err != nil {
			return fmt.Errorf("%w: feed interval: %v", domain.ErrInvalidInput, err)
		}
		if interval < MinFeedInterval {
			return fmt.Errorf("%w: feed interval below %s", domain.ErrInvalidInput, MinFeedInterval)
		}
	}

	p.url = u
	p.interval = interval
	p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	return nil
}

// Load registers the Feeds type, a side bar entry and the poll task.
func (p *FeedPlugin) Load(ctx context.Context, reg driven.HandlerRegistry) error {
	if _, err := reg.RegisterStaticType(ctx, FeedsTypeID, domain.TypeInfo{DisplayName: "Feeds"}); err != nil {
		return err
	}

	el := domain.NewSideBarElement(p.url.Host, "rss", reg.InstanceID().String())
	if err := reg.RegisterSideBarElement(el); err != nil {
		return err
	}

	p.mu.Lock()
	p.registry = reg
	p.element = el
	p.mu.Unlock()

	return reg.RegisterScheduledTask("poll", p.poll, p.interval)
}

// Unload drops the registry.
func (p *FeedPlugin) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry = nil
}

// URL returns the configured feed URL.
func (p *FeedPlugin) URL() string {
	return p.url.String()
}

// Interval returns the configured poll interval.
func (p *FeedPlugin) Interval() time.Duration {
	return p.interval
}

// StateItemID returns the id of the state item of a feed instance.
func StateItemID(instanceID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(FeedsTypeID, instanceID[:])
}

func (p *FeedPlugin) poll(ctx context.Context) error {
	if !p.limiter.Allow() {
		logger.Debug("feed %s: poll throttled", p.url)
		return nil
	}

	p.mu.Lock()
	reg := p.registry
	p.polls++
	state := FeedState{URL: p.url.String(), LastPolled: p.now().UTC(), Polls: p.polls}
	p.mu.Unlock()
	if reg == nil {
		return domain.ErrRegistrationClosed
	}

	payload, err := domain.EncodePayload(state)
	if err != nil {
		return err
	}
	item := domain.NewItem(FeedsTypeID, StateItemID(reg.InstanceID()), payload)
	err = driven.WithLock(ctx, reg.UserConfig().SystemStorage(), feedLockTimeout, func(lock driven.StorageLock) error {
		return lock.AddItemVersion(item)
	})
	if err != nil {
		return fmt.Errorf("recording poll of %s: %w", p.url, err)
	}

	p.element.SetText(fmt.Sprintf("%s (%s)", p.url.Host, state.LastPolled.Format(time.Kitchen)))
	logger.Debug("feed %s: polled", p.url)
	return nil
}
