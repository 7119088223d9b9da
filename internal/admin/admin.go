// Package admin is the staff mutation bridge: every update or delete is
// followed by a full re-fetch so the shared snapshot reflects the change.
package admin

import (
	"context"

	"github.com/jarqyn/jarqyn/internal/reports"
	"github.com/jarqyn/jarqyn/internal/session"
)

// Mutator applies changes to the report service.
type Mutator interface {
	Update(ctx context.Context, id int64, p reports.Patch) error
	Delete(ctx context.Context, id int64) error
}

// Bridge sends mutations and refreshes the session afterwards.
type Bridge struct {
	mut  Mutator
	sess *session.Session
}

// New returns a Bridge over m that refreshes s.
func New(m Mutator, s *session.Session) *Bridge {
	return &Bridge{mut: m, sess: s}
}

// Update patches one report, notifies the outcome and re-fetches.
// The store is left untouched when the mutation fails.
func (b *Bridge) Update(ctx context.Context, id int64, p reports.Patch) error {
	if err := b.mut.Update(ctx, id, p); err != nil {
		b.sess.Notify(session.KindError, "Ошибка обновления", err)
		return err
	}
	b.sess.Notify(session.KindSuccess, "Заявка обновлена", nil)
	return b.refresh(ctx)
}

// Delete removes one report, notifies the outcome and re-fetches.
func (b *Bridge) Delete(ctx context.Context, id int64) error {
	if err := b.mut.Delete(ctx, id); err != nil {
		b.sess.Notify(session.KindError, "Ошибка удаления", err)
		return err
	}
	b.sess.Notify(session.KindSuccess, "Заявка удалена", nil)
	return b.refresh(ctx)
}

func (b *Bridge) refresh(ctx context.Context) error {
	if err := b.sess.FetchAll(ctx); err != nil {
		return &RefreshError{Err: err}
	}
	return nil
}

// RefreshError is returned when a mutation was applied but the re-fetch
// that follows it failed.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "refreshing after update: " + e.Err.Error() }

func (e *RefreshError) Unwrap() error { return e.Err }
