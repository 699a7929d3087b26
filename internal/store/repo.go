package store

import (
	"context"
	"time"

	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/weekplan"
)

// ListOpts paginates list queries. Limit 0 means unlimited.
type ListOpts struct {
	Limit  int
	Offset int
}

// Page is the pagination envelope returned by list queries.
type Page[T any] struct {
	Items   []T
	Total   int
	HasMore bool
}

// NewPage builds the envelope for items fetched at opts out of total.
func NewPage[T any](items []T, total int, opts ListOpts) Page[T] {
	return Page[T]{
		Items:   items,
		Total:   total,
		HasMore: opts.Offset+len(items) < total,
	}
}

// Window returns the [lo, hi) slice bounds for opts over n items.
func Window(n int, opts ListOpts) (int, int) {
	lo := min(max(opts.Offset, 0), n)
	hi := n
	if opts.Limit > 0 {
		hi = min(lo+opts.Limit, n)
	}
	return lo, hi
}

// allPageSize is the page size All uses to drain a query.
const allPageSize = 200

// All drains a paginated query into a single slice.
func All[T any](ctx context.Context, fetch func(context.Context, ListOpts) (Page[T], error)) ([]T, error) {
	var out []T
	opts := ListOpts{Limit: allPageSize}
	for {
		page, err := fetch(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if !page.HasMore || len(page.Items) == 0 {
			return out, nil
		}
		opts.Offset += len(page.Items)
	}
}

// MasteryUpdate carries the fields written after a practice outcome.
type MasteryUpdate struct {
	Mastery           skillgraph.Mastery
	Status            skillgraph.Status
	PassCount         int
	FailCount         int
	ConsecutivePasses int
	MasteredAt        *time.Time
	LastPracticedAt   *time.Time

	// ExpectedVersion rejects the write with a Conflict when the stored
	// version differs. Zero skips the check.
	ExpectedVersion int64
}

// SkillStore persists skills.
type SkillStore interface {
	// Get returns the skill with id, or a NotFound error.
	Get(ctx context.Context, id string) (*skillgraph.Skill, error)

	// Save inserts a new skill and sets its Version to 1.
	Save(ctx context.Context, s *skillgraph.Skill) error

	// Update replaces a stored skill. It fails with Conflict when s.Version
	// is stale and bumps s.Version on success.
	Update(ctx context.Context, s *skillgraph.Skill) error

	UpdateMastery(ctx context.Context, id string, u MasteryUpdate) error

	// UpdateStatus moves a skill from one status to another only if its
	// current status is from. It reports whether the swap happened. Leaving
	// locked stamps UnlockedAt with at.
	UpdateStatus(ctx context.Context, id string, from, to skillgraph.Status, at time.Time) (bool, error)

	ByQuest(ctx context.Context, questID string, opts ListOpts) (Page[*skillgraph.Skill], error)
	ByGoal(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error)
	ByUser(ctx context.Context, userID string, opts ListOpts) (Page[*skillgraph.Skill], error)
	ByStatus(ctx context.Context, goalID string, status skillgraph.Status, opts ListOpts) (Page[*skillgraph.Skill], error)
	ByType(ctx context.Context, questID string, typ skillgraph.SkillType, opts ListOpts) (Page[*skillgraph.Skill], error)
	Available(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error)
	Locked(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error)
}

// WeekPlanStore persists week plans.
type WeekPlanStore interface {
	Get(ctx context.Context, id string) (*weekplan.Plan, error)
	Save(ctx context.Context, p *weekplan.Plan) error
	Update(ctx context.Context, p *weekplan.Plan) error

	// UpdateStatus is a compare-and-swap on the plan status. Moving to
	// completed stamps CompletedAt with at.
	UpdateStatus(ctx context.Context, id string, from, to weekplan.Status, at time.Time) (bool, error)

	// UpdateProgress atomically adds d to the plan's counters, refreshes
	// the pass rate, and returns the updated plan.
	UpdateProgress(ctx context.Context, id string, d weekplan.Delta) (*weekplan.Plan, error)

	// ActiveByGoal returns the goal's active plan, or NotFound.
	ActiveByGoal(ctx context.Context, goalID string) (*weekplan.Plan, error)
	ByWeekNumber(ctx context.Context, goalID string, week int) (*weekplan.Plan, error)
	ByGoal(ctx context.Context, goalID string, opts ListOpts) (Page[*weekplan.Plan], error)
}

// MilestoneStore persists quest milestones.
type MilestoneStore interface {
	Get(ctx context.Context, id string) (*skillgraph.Milestone, error)
	Save(ctx context.Context, m *skillgraph.Milestone) error
	ByQuest(ctx context.Context, questID string) (*skillgraph.Milestone, error)

	// UpdateStatus is a compare-and-swap. Moving to available stamps
	// UnlockedAt and moving to completed stamps CompletedAt.
	UpdateStatus(ctx context.Context, id string, from, to skillgraph.MilestoneStatus, at time.Time) (bool, error)
}

// QueryOpts configures event queries.
type QueryOpts struct {
	Limit int   // max results (0 = unlimited)
	After int64 // sequence > After
}

// MasteryEventData records a practice outcome and the state it produced.
type MasteryEventData struct {
	SkillID           string
	GoalID            string
	QuestID           string
	Outcome           string
	FromMastery       skillgraph.Mastery
	ToMastery         skillgraph.Mastery
	FromStatus        skillgraph.Status
	ToStatus          skillgraph.Status
	PassCount         int
	FailCount         int
	ConsecutivePasses int
}

// MasteryEventRecord is a stored mastery event.
type MasteryEventRecord struct {
	Sequence  int64
	Timestamp time.Time
	MasteryEventData
}

// UnlockEventData records a skill or milestone becoming available.
type UnlockEventData struct {
	SkillID        string // empty for milestone unlocks
	MilestoneID    string
	GoalID         string
	TriggerSkillID string
}

// WeekEventData records a week-plan lifecycle transition.
type WeekEventData struct {
	PlanID     string
	GoalID     string
	WeekNumber int
	FromStatus weekplan.Status
	ToStatus   weekplan.Status
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// EventRepo is the append-only event log.
type EventRepo interface {
	AppendMasteryEvent(ctx context.Context, data MasteryEventData) error
	AppendUnlockEvent(ctx context.Context, data UnlockEventData) error
	AppendWeekEvent(ctx context.Context, data WeekEventData) error

	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// MasteryEvents returns a skill's mastery events in sequence order.
	MasteryEvents(ctx context.Context, skillID string, opts QueryOpts) ([]MasteryEventRecord, error)
}

// Backend bundles the repositories of one storage implementation.
type Backend struct {
	Skills     SkillStore
	Weeks      WeekPlanStore
	Milestones MilestoneStore
	Events     EventRepo

	closer func() error
}

// NewBackend assembles a Backend. closer may be nil.
func NewBackend(skills SkillStore, weeks WeekPlanStore, milestones MilestoneStore, events EventRepo, closer func() error) *Backend {
	return &Backend{Skills: skills, Weeks: weeks, Milestones: milestones, Events: events, closer: closer}
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// NormalizeSkill stamps timestamps and converts every time to UTC so a
// stored skill compares equal to the value read back.
func NormalizeSkill(s *skillgraph.Skill, now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.UnlockedAt = utcPtr(s.UnlockedAt)
	s.MasteredAt = utcPtr(s.MasteredAt)
	s.LastPracticedAt = utcPtr(s.LastPracticedAt)
}

// NormalizePlan is NormalizeSkill for week plans; it also refreshes PassRate.
func NormalizePlan(p *weekplan.Plan, now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	p.CompletedAt = utcPtr(p.CompletedAt)
	for i := range p.Days {
		p.Days[i].Date = p.Days[i].Date.UTC()
	}
	p.PassRate = p.Progress.PassRate()
}

// NormalizeMilestone is NormalizeSkill for milestones.
func NormalizeMilestone(m *skillgraph.Milestone, now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UnlockedAt = utcPtr(m.UnlockedAt)
	m.CompletedAt = utcPtr(m.CompletedAt)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
