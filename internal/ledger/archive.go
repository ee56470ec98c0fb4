package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/expenseshare/server/internal/apperr"
	"github.com/expenseshare/server/internal/money"
)

// checkAndArchive archives the group when every remaining balance entry is
// below the epsilon threshold. Runs after every ledger mutation; caller must
// hold the group lock.
func (e *Engine) checkAndArchive(ctx context.Context, groupID, actorID string) error {
	balances, err := e.store.ListBalancesByGroup(ctx, groupID)
	if err != nil {
		return apperr.Wrap(apperr.Integrity, err, "failed to load balances for archive check")
	}

	for _, bal := range balances {
		for _, entry := range bal.Entries {
			if !money.IsZero(entry.Amount) {
				return nil
			}
		}
	}

	if err := e.store.ArchiveGroup(ctx, groupID, actorID, time.Now().Unix()); err != nil {
		return apperr.Wrap(apperr.Integrity, err, "failed to archive settled group")
	}
	archivesTotal.Inc()

	slog.Info("Group fully settled, expenses archived", "group_id", groupID, "settled_by", actorID)
	return nil
}
