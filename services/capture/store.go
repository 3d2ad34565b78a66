// Package capture decides which event categories and types are recorded.
// Store persists operator overrides on top of the taxonomy defaults and
// Cache serves eligibility checks from a short-lived snapshot.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"github.com/upb/case-events/services/taxonomy"
	"go.uber.org/zap"
)

// RuleUpdate enables or disables a category, or a single type when TypeID is set
type RuleUpdate struct {
	CategoryID string `json:"category_id" validate:"required"`
	TypeID     string `json:"type_id,omitempty"`
	Enabled    bool   `json:"enabled"`
}

// Diagnostics reports configuration drift found while loading overrides
type Diagnostics struct {
	OrphanKeys  []string   `json:"orphan_keys"`
	InvalidKeys []string   `json:"invalid_keys"`
	TableReady  bool       `json:"table_ready"`
	LoadedAt    *time.Time `json:"loaded_at,omitempty"`
}

// Store loads and updates capture rules
type Store struct {
	mu        sync.RWMutex
	rules     repositories.CaptureRuleRepository
	txMgr     repositories.TransactionManager
	listeners []func()
	logger    *zap.Logger
	now       func() time.Time

	ensured  bool
	lastDiag Diagnostics
}

// NewStore creates a store. txMgr may be nil, in which case updates are
// applied one row at a time.
func NewStore(rules repositories.CaptureRuleRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *Store {
	return &Store{
		rules:  rules,
		txMgr:  txMgr,
		logger: logger,
		now:    time.Now,
	}
}

// OnUpdate registers fn to run after rules change
func (s *Store) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reconfigure swaps the backing repositories and forgets that the table
// was ensured.
func (s *Store) Reconfigure(rules repositories.CaptureRuleRepository, txMgr repositories.TransactionManager) {
	s.mu.Lock()
	s.rules = rules
	s.txMgr = txMgr
	s.ensured = false
	s.mu.Unlock()
	s.notify()
}

func (s *Store) repos() (repositories.CaptureRuleRepository, repositories.TransactionManager) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules, s.txMgr
}

// ensureTable creates the rules table once per store lifetime. Failures
// are not memoized.
func (s *Store) ensureTable(ctx context.Context, rules repositories.CaptureRuleRepository) error {
	s.mu.RLock()
	done := s.ensured
	s.mu.RUnlock()
	if done {
		return nil
	}

	if err := rules.EnsureTable(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.ensured = true
	s.mu.Unlock()
	return nil
}

// LoadCaptureState returns the taxonomy merged with persisted overrides.
// Rows that reference unknown categories or types are skipped.
func (s *Store) LoadCaptureState(ctx context.Context) (*models.CaptureState, error) {
	rules, _ := s.repos()
	if rules == nil {
		return nil, fmt.Errorf("capture rule repository not configured")
	}
	if err := s.ensureTable(ctx, rules); err != nil {
		return nil, err
	}

	rows, err := rules.ListByScope(ctx, models.CaptureScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load capture rules: %w", err)
	}

	state, diag := buildState(rows)

	loadedAt := s.now()
	diag.TableReady = true
	diag.LoadedAt = &loadedAt
	s.mu.Lock()
	s.lastDiag = diag
	s.mu.Unlock()

	if len(diag.OrphanKeys) > 0 {
		s.logger.Debug("ignoring capture overrides for unknown taxonomy entries",
			zap.Strings("keys", diag.OrphanKeys))
	}
	return state, nil
}

func defaultState() *models.CaptureState {
	cats := taxonomy.ListCategories()
	state := &models.CaptureState{Categories: make([]models.CategoryRules, 0, len(cats))}
	for _, c := range cats {
		cr := models.CategoryRules{
			ID:          c.ID,
			Label:       c.Label,
			Description: c.Description,
			Enabled:     true,
			Locked:      len(c.Types) > 0,
			Types:       make([]models.TypeRule, 0, len(c.Types)),
		}
		for _, t := range c.Types {
			cr.Types = append(cr.Types, models.TypeRule{
				ID:      t.ID,
				Label:   t.Label,
				Enabled: true,
				Locked:  t.Locked,
				Draft:   t.Draft,
			})
			cr.Locked = cr.Locked && t.Locked
		}
		state.Categories = append(state.Categories, cr)
	}
	return state
}

// buildState overlays category rows and then type rows, so a type-level
// override always wins over its category.
func buildState(rows []*models.CaptureRuleRow) (*models.CaptureState, Diagnostics) {
	state := defaultState()
	diag := Diagnostics{OrphanKeys: []string{}, InvalidKeys: []string{}}

	var typeRows []*models.CaptureRuleRow
	values := make(map[*models.CaptureRuleRow]models.CaptureRuleValue, len(rows))

	touch := func(v models.CaptureRuleValue, row *models.CaptureRuleRow) *time.Time {
		at := v.UpdatedAt
		if at.IsZero() {
			at = row.UpdatedAt
		}
		if at.IsZero() {
			return nil
		}
		if state.UpdatedAt == nil || at.After(*state.UpdatedAt) {
			latest := at
			state.UpdatedAt = &latest
		}
		return &at
	}

	for _, row := range rows {
		var v models.CaptureRuleValue
		if err := json.Unmarshal(row.Value, &v); err != nil {
			diag.InvalidKeys = append(diag.InvalidKeys, row.Key())
			continue
		}
		if row.TypeID != "" {
			values[row] = v
			typeRows = append(typeRows, row)
			continue
		}

		cat, ok := state.Category(row.CategoryID)
		if !ok {
			diag.OrphanKeys = append(diag.OrphanKeys, row.Key())
			continue
		}
		cat.Enabled = v.Enabled
		cat.UpdatedBy = v.UpdatedBy
		cat.UpdatedAt = touch(v, row)
		for i := range cat.Types {
			if !cat.Types[i].Locked {
				cat.Types[i].Enabled = v.Enabled
			}
		}
	}

	for _, row := range typeRows {
		cat, ok := state.Category(row.CategoryID)
		if !ok {
			diag.OrphanKeys = append(diag.OrphanKeys, row.Key())
			continue
		}
		tr, ok := cat.Type(row.TypeID)
		if !ok {
			diag.OrphanKeys = append(diag.OrphanKeys, row.Key())
			continue
		}
		v := values[row]
		tr.Overridden = true
		tr.Enabled = v.Enabled || tr.Locked
		tr.UpdatedBy = v.UpdatedBy
		tr.UpdatedAt = touch(v, row)
	}

	sort.Strings(diag.OrphanKeys)
	return state, diag
}

// accept filters updates down to those that may be written
func (s *Store) accept(updates []RuleUpdate) []RuleUpdate {
	accepted := make([]RuleUpdate, 0, len(updates))
	for _, u := range updates {
		if _, ok := taxonomy.GetCategory(u.CategoryID); !ok {
			s.logger.Debug("skipping capture rule for unknown category", zap.String("category_id", u.CategoryID))
			continue
		}
		if u.TypeID != "" {
			if !taxonomy.HasType(u.CategoryID, u.TypeID) {
				s.logger.Debug("skipping capture rule for unknown type",
					zap.String("category_id", u.CategoryID),
					zap.String("type_id", u.TypeID),
				)
				continue
			}
			if t, _ := taxonomy.GetType(u.TypeID); t.Locked && !u.Enabled {
				s.logger.Info("refusing to disable locked event type", zap.String("type_id", u.TypeID))
				continue
			}
		}
		accepted = append(accepted, u)
	}
	return accepted
}

// UpdateCaptureRules persists the accepted updates in one transaction and
// returns the refreshed state. Unknown entries and attempts to disable a
// locked type are skipped; an empty list is a no-op.
func (s *Store) UpdateCaptureRules(ctx context.Context, updates []RuleUpdate, actorID string) (*models.CaptureState, error) {
	accepted := s.accept(updates)
	if len(accepted) == 0 {
		return s.LoadCaptureState(ctx)
	}

	rules, txMgr := s.repos()
	if rules == nil {
		return nil, fmt.Errorf("capture rule repository not configured")
	}
	if err := s.ensureTable(ctx, rules); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rows := make([]*models.CaptureRuleRow, 0, len(accepted))
	for _, u := range accepted {
		value, err := json.Marshal(models.CaptureRuleValue{
			Enabled:   u.Enabled,
			UpdatedBy: actorID,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode capture rule: %w", err)
		}
		rows = append(rows, &models.CaptureRuleRow{
			Scope:      models.CaptureScope,
			CategoryID: u.CategoryID,
			TypeID:     u.TypeID,
			Value:      value,
			UpdatedAt:  now,
		})
	}

	write := func(ctx context.Context) error {
		for _, row := range rows {
			if err := rules.Upsert(ctx, row); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if txMgr != nil {
		err = txMgr.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
			return write(ctx)
		})
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save capture rules: %w", err)
	}

	s.logger.Info("capture rules updated",
		zap.Int("rules", len(rows)),
		zap.Int("skipped", len(updates)-len(rows)),
		zap.String("actor_id", actorID),
	)
	s.notify()

	return s.LoadCaptureState(ctx)
}

// Diagnostics reloads overrides and reports rows that no longer match the
// taxonomy.
func (s *Store) Diagnostics(ctx context.Context) (Diagnostics, error) {
	if _, err := s.LoadCaptureState(ctx); err != nil {
		return Diagnostics{OrphanKeys: []string{}, InvalidKeys: []string{}}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDiag, nil
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
