// Package bulk applies block, unblock and delete to the selected users.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtroode/useradmin-console/internal/apierr"
	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/metrics"
	"github.com/dtroode/useradmin-console/internal/model"
)

// DefaultLogoutDelay keeps the success banner visible before a self-inflicted logout.
const DefaultLogoutDelay = 1500 * time.Millisecond

// MsgConfirmSelfDelete is asked before deleting a selection that includes the operator.
const MsgConfirmSelfDelete = "Are you sure you want to delete your account? This action cannot be undone."

// Listing is the part of the listing controller the executor drives.
type Listing interface {
	SelectedIDs() []string
	ClearSelection()
	Reload(ctx context.Context) error
}

// Session identifies the operator and ends their session.
type Session interface {
	UserID() string
	Logout(ctx context.Context)
	ForceLogout(ctx context.Context)
}

// Notifier shows the outcome to the operator.
type Notifier interface {
	Success(message string) int
	Error(message string) int
}

// Executor runs one bulk action at a time.
type Executor struct {
	api         model.UserAPI
	listing     Listing
	session     Session
	confirmer   model.Confirmer
	notifier    Notifier
	clock       model.Clock
	logoutDelay time.Duration
	metrics     *metrics.Metrics
	logger      *logger.Logger

	inFlight atomic.Bool

	mu          sync.Mutex
	logoutTimer model.Timer
}

func NewExecutor(
	api model.UserAPI,
	listing Listing,
	session Session,
	confirmer model.Confirmer,
	notifier Notifier,
	clock model.Clock,
	logoutDelay time.Duration,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Executor {
	if logoutDelay <= 0 {
		logoutDelay = DefaultLogoutDelay
	}
	return &Executor{
		api:         api,
		listing:     listing,
		session:     session,
		confirmer:   confirmer,
		notifier:    notifier,
		clock:       clock,
		logoutDelay: logoutDelay,
		metrics:     metrics,
		logger:      logger,
	}
}

// InProgress reports whether an action is running.
func (e *Executor) InProgress() bool {
	return e.inFlight.Load()
}

// Execute applies action to the current selection.
//
// It fails with model.ErrNotAuthenticated, model.ErrEmptySelection or
// model.ErrActionInProgress without touching the backend. Deleting the operator's own account needs
// confirmation; declining returns model.ErrConfirmationDeclined and sends
// nothing. When the operator blocked or deleted themselves the session ends
// after the logout delay instead of refetching the listing.
func (e *Executor) Execute(ctx context.Context, action model.BulkAction) (model.BulkResult, error) {
	if !action.Valid() {
		return model.BulkResult{}, model.ErrInvalidAction
	}

	if e.session.UserID() == "" {
		return model.BulkResult{}, model.ErrNotAuthenticated
	}
	ids := e.listing.SelectedIDs()
	if len(ids) == 0 {
		return model.BulkResult{}, model.ErrEmptySelection
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("Bulk executor: rejected, another action in progress", "action", action)
		return model.BulkResult{}, model.ErrActionInProgress
	}
	defer e.inFlight.Store(false)

	if action == model.BulkDelete && slices.Contains(ids, e.session.UserID()) {
		ok, err := e.confirmer.Confirm(ctx, MsgConfirmSelfDelete)
		if err != nil {
			return model.BulkResult{}, fmt.Errorf("failed to confirm self delete: %w", err)
		}
		if !ok {
			e.logger.Info("Bulk executor: self delete declined")
			e.metrics.BulkAction(string(action), "declined")
			return model.BulkResult{}, model.ErrConfirmationDeclined
		}
	}

	e.logger.Info("Bulk executor: submitting", "action", action, "count", len(ids))

	res, err := e.api.BulkAction(ctx, action, ids)
	if err != nil {
		expired := apierr.Is(err, apierr.KindAuthExpired)
		err = actionError(action, err)
		e.metrics.BulkAction(string(action), "error")
		e.logger.Error("Bulk executor: action failed", "action", action, "error", err.Error())
		e.notifier.Error(apierr.UserMessage(err, ""))
		if expired {
			e.session.ForceLogout(ctx)
		}
		return model.BulkResult{}, err
	}
	e.metrics.BulkAction(string(action), "ok")

	if res.Message != "" {
		e.notifier.Success(res.Message)
	}

	if res.SelfDeleted || res.SelfBlocked {
		e.logger.Info("Bulk executor: operator affected own account, logging out",
			"self_deleted", res.SelfDeleted, "self_blocked", res.SelfBlocked)
		e.scheduleLogout(context.WithoutCancel(ctx))
		return res, nil
	}

	e.listing.ClearSelection()
	if err := e.listing.Reload(ctx); err != nil {
		e.logger.Warn("Bulk executor: failed to reload listing", "error", err.Error())
	}
	return res, nil
}

func (e *Executor) scheduleLogout(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.logoutTimer != nil {
		e.logoutTimer.Stop()
	}
	e.logoutTimer = e.clock.AfterFunc(e.logoutDelay, func() {
		e.session.Logout(ctx)
	})
}

// Stop cancels a scheduled logout.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.logoutTimer != nil {
		e.logoutTimer.Stop()
		e.logoutTimer = nil
	}
}

func actionError(action model.BulkAction, err error) error {
	var e *apierr.Error
	if errors.As(err, &e) {
		return apierr.ActionFailed(apierr.UserMessage(err, fmt.Sprintf("Failed to %s users", action)), err)
	}
	return apierr.ActionFailed(fmt.Sprintf("An error occurred while trying to %s users", action), err)
}
