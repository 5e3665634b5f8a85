package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
)

type SelectionState int

const (
	// Selected: the known selection is still valid.
	Selected SelectionState = iota + 1
	// SingleAutoSelected: the only baby was chosen and persisted.
	SingleAutoSelected
	// AwaitingRegistration: there is no baby yet.
	AwaitingRegistration
	// AwaitingUserChoice: the parent must pick one of Choices.
	AwaitingUserChoice
)

func (s SelectionState) String() string {
	switch s {
	case Selected:
		return "selected"
	case SingleAutoSelected:
		return "single-auto-selected"
	case AwaitingRegistration:
		return "awaiting-registration"
	case AwaitingUserChoice:
		return "awaiting-user-choice"
	default:
		return "unresolved"
	}
}

type SelectionOutcome struct {
	State   SelectionState
	BabyID  string
	Choices []models.Baby
	// Stale is set when a known selection pointed at a baby that is gone.
	Stale bool
}

// SelectionResolver decides which baby is active. Automatic and explicit
// choices are persisted the same way, so a later Resolve cannot tell them
// apart.
type SelectionResolver struct {
	cache *cache.Cache
	log   logging.Logger
}

func NewSelectionResolver(c *cache.Cache, log logging.Logger) *SelectionResolver {
	return &SelectionResolver{cache: c, log: log}
}

// Resolve applies, in order: keep a known selection that still exists;
// ask for registration when there are no babies; auto-select and persist a
// single baby; otherwise ask the parent to choose. The outcome is valid even
// when persisting an automatic choice fails; that failure is returned
// alongside it.
func (r *SelectionResolver) Resolve(ctx context.Context, known string, babies []models.Baby) (SelectionOutcome, error) {
	if known != "" && findBaby(babies, known) >= 0 {
		return SelectionOutcome{State: Selected, BabyID: known}, nil
	}
	if len(babies) == 0 {
		return SelectionOutcome{State: AwaitingRegistration, Stale: known != ""}, nil
	}
	if len(babies) == 1 {
		out := SelectionOutcome{State: SingleAutoSelected, BabyID: babies[0].ID, Stale: known != ""}
		return out, r.persist(ctx, babies[0].ID)
	}
	return SelectionOutcome{State: AwaitingUserChoice, Choices: babies, Stale: known != ""}, nil
}

// ResolveCached resolves from the cached selection and babies. Unreadable
// namespaces count as empty.
func (r *SelectionResolver) ResolveCached(ctx context.Context) (SelectionOutcome, error) {
	known, _, err := cache.Load[string](ctx, r.cache, cache.SelectedBabyID)
	if err != nil {
		r.log.Warn(ctx, "selection unreadable", "error", err)
		known = ""
	}
	babies, _, err := cache.Load[[]models.Baby](ctx, r.cache, cache.Babies)
	if err != nil {
		r.log.Warn(ctx, "babies unreadable", "error", err)
		babies = nil
	}
	return r.Resolve(ctx, known, babies)
}

// Choose records an explicit choice. babyID must be one of babies.
func (r *SelectionResolver) Choose(ctx context.Context, babyID string, babies []models.Baby) error {
	if findBaby(babies, babyID) < 0 {
		return ErrUnknownBaby
	}
	return r.persist(ctx, babyID)
}

// Current returns the cached record of the selected baby. It returns
// ErrStaleSelection when the selection points at a baby no longer cached and
// ErrUnknownBaby when nothing is selected.
func (r *SelectionResolver) Current(ctx context.Context) (models.Baby, error) {
	known, ok, err := cache.Load[string](ctx, r.cache, cache.SelectedBabyID)
	if err != nil && !errors.Is(err, cache.ErrCacheRead) {
		return models.Baby{}, err
	}
	if !ok || known == "" {
		return models.Baby{}, ErrUnknownBaby
	}
	babies, _, _ := cache.Load[[]models.Baby](ctx, r.cache, cache.Babies)
	i := findBaby(babies, known)
	if i < 0 {
		return models.Baby{}, ErrStaleSelection
	}
	return babies[i], nil
}

func (r *SelectionResolver) persist(ctx context.Context, babyID string) error {
	if err := r.cache.Write(ctx, cache.SelectedBabyID, babyID); err != nil {
		r.log.Warn(ctx, "selection not persisted", "baby", babyID, "error", err)
		return err
	}
	return nil
}

func findBaby(babies []models.Baby, id string) int {
	for i, b := range babies {
		if b.ID == id {
			return i
		}
	}
	return -1
}
