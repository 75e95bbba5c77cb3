package schedule

import (
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"autopost/internal/logging"
	"autopost/internal/media"
	"autopost/internal/platform"
)

// Options controls the allocation window and slot search.
type Options struct {
	DaysToGenerate     int
	WindowStartHour    int
	WindowEndHour      int
	MinSlotGap         time.Duration
	SlotSearchAttempts int
	StartupBuffer      time.Duration
}

const (
	defaultStartupBuffer = 10 * time.Minute

	// Randomized advance used by the safe-slot search on conflict.
	slotStepMin    = 45 * time.Minute
	slotStepJitter = 60 * time.Minute

	// Stagger applied to each additional platform of the same video.
	platformStaggerMin    = 2 * time.Minute
	platformStaggerJitter = 3 * time.Minute
)

// ProfileSpec is a profile prepared for allocation: enabled, with its
// platform subscriptions and effective per-platform daily limits resolved.
type ProfileSpec struct {
	Handle    string
	Theme     string
	Platforms []platform.Platform
	Limits    map[platform.Platform]int
}

// ScheduledPost is one planned (video, profile, platform, time) assignment.
type ScheduledPost struct {
	Profile   string
	Platform  platform.Platform
	Theme     string
	Brand     string
	Author    string
	Video     media.Item
	PublishAt time.Time
}

// Input carries everything one allocation run consumes.
type Input struct {
	Items    []media.Item
	Aliases  media.AliasTable
	Profiles []ProfileSpec

	// Used is the ledger snapshot; matching identities are never scheduled.
	Used map[string]struct{}

	// Occupied holds externally claimed slot times per profile handle, e.g.
	// pending publisher jobs and posts already persisted from earlier runs.
	Occupied map[string][]time.Time

	// Quotas and Published drive brand weighting: remaining monthly quota
	// (quota minus published) decides brand order while any quota remains,
	// after which selection falls back to round-robin.
	Quotas    map[string]int
	Published map[string]int
}

// Allocator produces multi-day schedules. It is sequential on purpose: pass
// order matters for round-robin fairness and for reproducibility under a
// seeded random source.
type Allocator struct {
	opts   Options
	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// New constructs an allocator. rng and now are injectable so tests can pin
// both; nil selects real randomness and the wall clock.
func New(opts Options, rng *rand.Rand, now func() time.Time, logger *slog.Logger) *Allocator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	if opts.StartupBuffer <= 0 {
		opts.StartupBuffer = defaultStartupBuffer
	}
	if opts.DaysToGenerate <= 0 {
		opts.DaysToGenerate = 1
	}
	if opts.SlotSearchAttempts <= 0 {
		opts.SlotSearchAttempts = 15
	}
	return &Allocator{
		opts:   opts,
		rng:    rng,
		now:    now,
		logger: logging.WithComponent(logger, "allocator"),
	}
}

type brandPool struct {
	brand string
	items []media.Item
}

type themePool struct {
	brands []*brandPool // sorted by brand for deterministic iteration
}

// Allocate builds the schedule. The ledger is read, never written: marking a
// video used happens after confirmed cleanup, not here.
func (a *Allocator) Allocate(input Input) []ScheduledPost {
	pools := a.buildPools(input)
	profiles := eligibleProfiles(input.Profiles)
	if len(profiles) == 0 || len(pools) == 0 {
		return nil
	}

	committed := make(map[string][]time.Time, len(profiles))
	for handle, times := range input.Occupied {
		committed[handle] = append(committed[handle], times...)
	}

	// Run-scoped state: posts emitted per brand, last brand per theme, and
	// video identities already taken.
	allocated := make(map[string]int)
	lastBrand := make(map[string]string)
	claimed := make(map[string]struct{})
	emptyLogged := make(map[string]struct{})

	var posts []ScheduledPost
	now := a.now()

	for day := 0; day < a.opts.DaysToGenerate; day++ {
		windowStart, windowEnd, ok := a.dayWindow(now, day)
		if !ok {
			a.logger.Debug("skipping degenerate day window", logging.Int("day", day))
			continue
		}

		counters := make(map[string]map[platform.Platform]int, len(profiles))
		for _, p := range profiles {
			counters[p.Handle] = make(map[platform.Platform]int, len(p.Platforms))
		}
		abandoned := make(map[string]struct{})

		order := a.rng.Perm(len(profiles))
		passes := maxPasses(profiles)

		for pass := 0; pass < passes; pass++ {
			for _, idx := range order {
				profile := profiles[idx]
				if _, gone := abandoned[profile.Handle]; gone {
					continue
				}
				if !hasRemainingQuota(profile, counters[profile.Handle]) {
					continue
				}

				pool, ok := pools[profile.Theme]
				if !ok || pool.empty() {
					if _, logged := emptyLogged[profile.Handle]; !logged {
						emptyLogged[profile.Handle] = struct{}{}
						a.logger.Info("no videos for profile theme",
							logging.String(logging.FieldProfile, profile.Handle),
							logging.String(logging.FieldTheme, profile.Theme))
					}
					continue
				}

				brand := a.selectBrand(pool, lastBrand[profile.Theme], input.Quotas, input.Published, allocated)
				if brand == nil {
					continue
				}

				item, ok := takeItem(brand, input.Used, claimed)
				if !ok {
					continue
				}

				slot, found := a.findSlot(windowStart, windowEnd, committed[profile.Handle])
				if !found {
					// Out of room for this profile today; put the video back.
					returnItem(brand, item)
					delete(claimed, item.Identity())
					abandoned[profile.Handle] = struct{}{}
					continue
				}

				identity := media.Classify(item.Path, input.Aliases)
				emitted := 0
				publishAt := slot
				for _, pl := range profile.Platforms {
					limit := profile.Limits[pl]
					if counters[profile.Handle][pl] >= limit {
						continue
					}
					if emitted > 0 {
						publishAt = publishAt.Add(platformStaggerMin + randDuration(a.rng, platformStaggerJitter))
					}
					posts = append(posts, ScheduledPost{
						Profile:   profile.Handle,
						Platform:  pl,
						Theme:     identity.Theme,
						Brand:     identity.Brand,
						Author:    identity.Author,
						Video:     item,
						PublishAt: publishAt,
					})
					counters[profile.Handle][pl]++
					emitted++
				}

				if emitted == 0 {
					returnItem(brand, item)
					delete(claimed, item.Identity())
					continue
				}
				committed[profile.Handle] = append(committed[profile.Handle], slot)
				lastBrand[profile.Theme] = brand.brand
				allocated[brand.brand] += emitted
			}
		}
	}

	return posts
}

// buildPools classifies the listing and partitions it by theme and brand,
// dropping anything already in the ledger.
func (a *Allocator) buildPools(input Input) map[string]*themePool {
	groups := media.GroupByTheme(filterUsed(input.Items, input.Used), input.Aliases)
	pools := make(map[string]*themePool, len(groups))
	for theme, brands := range groups {
		names := make([]string, 0, len(brands))
		for brand := range brands {
			names = append(names, brand)
		}
		sort.Strings(names)

		pool := &themePool{}
		for _, name := range names {
			items := brands[name]
			sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
			pool.brands = append(pool.brands, &brandPool{brand: name, items: items})
		}
		pools[theme] = pool
	}
	return pools
}

func filterUsed(items []media.Item, used map[string]struct{}) []media.Item {
	if len(used) == 0 {
		return items
	}
	kept := make([]media.Item, 0, len(items))
	for _, item := range items {
		if _, ok := used[item.Identity()]; ok {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func eligibleProfiles(profiles []ProfileSpec) []ProfileSpec {
	kept := make([]ProfileSpec, 0, len(profiles))
	for _, p := range profiles {
		if p.Handle == "" || len(p.Platforms) == 0 {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func maxPasses(profiles []ProfileSpec) int {
	passes := 1
	for _, p := range profiles {
		for _, limit := range p.Limits {
			if limit > passes {
				passes = limit
			}
		}
	}
	return passes
}

func hasRemainingQuota(profile ProfileSpec, counters map[platform.Platform]int) bool {
	for _, pl := range profile.Platforms {
		if counters[pl] < profile.Limits[pl] {
			return true
		}
	}
	return false
}

// dayWindow computes a day's publish window. Day 0 clamps the start to
// now + buffer when the nominal start has already passed; a window shorter
// than the minimum slot gap skips the day.
func (a *Allocator) dayWindow(now time.Time, day int) (time.Time, time.Time, bool) {
	date := now.AddDate(0, 0, day)
	start := time.Date(date.Year(), date.Month(), date.Day(), a.opts.WindowStartHour, 0, 0, 0, date.Location())
	end := time.Date(date.Year(), date.Month(), date.Day(), a.opts.WindowEndHour, 0, 0, 0, date.Location())

	if day == 0 {
		if earliest := now.Add(a.opts.StartupBuffer); earliest.After(start) {
			start = earliest
		}
	}
	if end.Sub(start) < a.opts.MinSlotGap {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// selectBrand picks the next brand for a theme. Brands with remaining
// monthly quota are preferred, highest remaining first; once every quota is
// spent (or none is configured) selection cycles round-robin after the last
// brand used this run.
func (a *Allocator) selectBrand(pool *themePool, last string, quotas, published, allocated map[string]int) *brandPool {
	available := make([]*brandPool, 0, len(pool.brands))
	for _, b := range pool.brands {
		if len(b.items) > 0 {
			available = append(available, b)
		}
	}
	if len(available) == 0 {
		return nil
	}

	var best *brandPool
	bestRemaining := 0
	for _, b := range available {
		quota, ok := quotas[b.brand]
		if !ok {
			continue
		}
		remaining := quota - published[b.brand] - allocated[b.brand]
		if remaining > bestRemaining {
			best = b
			bestRemaining = remaining
		}
	}
	if best != nil {
		return best
	}

	// Round-robin: the brand cyclically after the last one used.
	start := 0
	for i, b := range available {
		if b.brand == last {
			start = i + 1
			break
		}
	}
	return available[start%len(available)]
}

// takeItem removes the first schedulable item from a brand pool.
func takeItem(pool *brandPool, used, claimed map[string]struct{}) (media.Item, bool) {
	for i, item := range pool.items {
		identity := item.Identity()
		if _, ok := used[identity]; ok {
			continue
		}
		if _, ok := claimed[identity]; ok {
			continue
		}
		pool.items = append(pool.items[:i:i], pool.items[i+1:]...)
		claimed[identity] = struct{}{}
		return item, true
	}
	return media.Item{}, false
}

func returnItem(pool *brandPool, item media.Item) {
	pool.items = append([]media.Item{item}, pool.items...)
}

// findSlot draws a uniformly random time inside the window and nudges it
// until it clears the minimum separation from every committed slot, giving
// up after the configured number of attempts. Overshooting the window end
// re-draws a fresh candidate inside the window.
func (a *Allocator) findSlot(start, end time.Time, taken []time.Time) (time.Time, bool) {
	window := end.Sub(start)
	candidate := start.Add(randDuration(a.rng, window))

	for attempt := 0; attempt < a.opts.SlotSearchAttempts; attempt++ {
		if a.separated(candidate, taken) {
			return candidate, true
		}
		candidate = candidate.Add(slotStepMin + randDuration(a.rng, slotStepJitter))
		if candidate.After(end) {
			candidate = start.Add(randDuration(a.rng, window))
		}
	}
	return time.Time{}, false
}

func (a *Allocator) separated(candidate time.Time, taken []time.Time) bool {
	for _, t := range taken {
		delta := candidate.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta < a.opts.MinSlotGap {
			return false
		}
	}
	return true
}

func randDuration(rng *rand.Rand, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

func (p *themePool) empty() bool {
	for _, b := range p.brands {
		if len(b.items) > 0 {
			return false
		}
	}
	return true
}
