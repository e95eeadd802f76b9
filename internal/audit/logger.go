// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
	"github.com/mototwist/mototwist/internal/models"
)

// writeTimeout bounds one audit insert so a wedged database cannot
// stall the write loop forever.
const writeTimeout = 5 * time.Second

// Store persists audit events. *database.DB satisfies it.
type Store interface {
	InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error
	PruneAuditEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Logger is the audit trail writer. Record and the helper methods are
// non-blocking and safe for concurrent use.
type Logger struct {
	cfg      *config.AuditConfig
	store    Store
	events   chan *models.AuditEvent
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewLogger starts the async write loop over the store. A nil cfg gets
// the built-in defaults.
func NewLogger(store Store, cfg *config.AuditConfig) *Logger {
	if cfg == nil {
		cfg = &config.AuditConfig{
			Enabled:         true,
			BufferSize:      256,
			RetentionDays:   90,
			CleanupInterval: 6 * time.Hour,
		}
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	l := &Logger{
		cfg:      cfg,
		store:    store,
		events:   make(chan *models.AuditEvent, bufferSize),
		stopChan: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l
}

// Record queues an event for the trail. The event time is stamped on
// acceptance, not on write, and the request ID is taken from the
// context when the event carries none. Drops instead of blocking when
// the buffer is full.
func (l *Logger) Record(ctx context.Context, event *models.AuditEvent) {
	if !l.cfg.Enabled || event == nil {
		return
	}

	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = logging.RequestIDFromContext(ctx)
	}

	select {
	case l.events <- event:
	default:
		metrics.RecordAuditDropped()
		logging.Warn().
			Str("category", event.Category).
			Str("action", event.Action).
			Msg("Audit buffer full, dropping event")
	}
}

// writeLoop drains the buffer into the store until Close.
func (l *Logger) writeLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.events:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.events:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *models.AuditEvent) {
	l.logEvent(event)

	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := l.store.InsertAuditEvent(ctx, event); err != nil {
		metrics.RecordAuditWriteError()
		logging.Error().
			Err(err).
			Str("category", event.Category).
			Str("action", event.Action).
			Msg("Failed to persist audit event")
		return
	}
	metrics.RecordAuditEvent(event.Category, event.Outcome)
}

// logEvent mirrors the event to the structured log. Failures and
// denials surface at warn level.
func (l *Logger) logEvent(event *models.AuditEvent) {
	evt := logging.Debug()
	if event.Outcome != models.AuditOutcomeSuccess {
		evt = logging.Warn()
	}
	evt.Str("category", event.Category).
		Str("action", event.Action).
		Str("outcome", event.Outcome).
		Str("actor_id", event.ActorID).
		Str("actor", event.ActorName).
		Str("resource", event.Resource).
		Str("ip", event.IPAddress).
		Msg("Audit event")
}

// Close stops the write loop after draining accepted events. Safe to
// call more than once.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
	return nil
}

// RecordLoginSuccess notes a successful authentication.
func (l *Logger) RecordLoginSuccess(ctx context.Context, actorID, actorName, ip string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		Action:    "login",
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		IPAddress: ip,
	})
}

// RecordLoginFailure notes a rejected authentication attempt. actorID
// is usually empty; the attempted username goes in actorName.
func (l *Logger) RecordLoginFailure(ctx context.Context, actorName, reason, ip string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		Action:    "login",
		Outcome:   models.AuditOutcomeFailure,
		ActorName: actorName,
		Detail:    reason,
		IPAddress: ip,
	})
}

// RecordLogout notes a logout.
func (l *Logger) RecordLogout(ctx context.Context, actorID, actorName, ip string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryAuth,
		Action:    "logout",
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		IPAddress: ip,
	})
}

// RecordAuthzDenial notes a refused authorization decision. It
// satisfies authz.AuditSink.
func (l *Logger) RecordAuthzDenial(ctx context.Context, actorID, actorName, resource, action string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryAuthz,
		Action:    action,
		Outcome:   models.AuditOutcomeDenied,
		ActorID:   actorID,
		ActorName: actorName,
		Resource:  resource,
	})
}

// RecordTwistCreated notes a new twist.
func (l *Logger) RecordTwistCreated(ctx context.Context, actorID, actorName, twistID, twistName string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryTwist,
		Action:    "create",
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		Resource:  "twist:" + twistID,
		Detail:    twistName,
	})
}

// RecordTwistDeleted notes a twist deletion.
func (l *Logger) RecordTwistDeleted(ctx context.Context, actorID, actorName, twistID, twistName string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryTwist,
		Action:    "delete",
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		Resource:  "twist:" + twistID,
		Detail:    twistName,
	})
}

// RecordRatingAdded notes a new rating on a twist.
func (l *Logger) RecordRatingAdded(ctx context.Context, actorID, actorName, twistID, ratingID string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryRating,
		Action:    "create",
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		Resource:  "twist:" + twistID + ":rating:" + ratingID,
	})
}

// RecordRatingDeleted notes a rating deletion.
func (l *Logger) RecordRatingDeleted(ctx context.Context, actorID, actorName, twistID, ratingID string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryRating,
		Action:    "delete",
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		Resource:  "twist:" + twistID + ":rating:" + ratingID,
	})
}

// RecordUserChange notes a user management mutation. action is
// "create", "update" or "delete"; detail carries what changed.
func (l *Logger) RecordUserChange(ctx context.Context, action, actorID, actorName, userID, detail string) {
	l.Record(ctx, &models.AuditEvent{
		Category:  models.AuditCategoryUser,
		Action:    action,
		Outcome:   models.AuditOutcomeSuccess,
		ActorID:   actorID,
		ActorName: actorName,
		Resource:  "user:" + userID,
		Detail:    detail,
	})
}

// ClientIP extracts the originating client address from a request,
// preferring proxy headers over the socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the client.
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
