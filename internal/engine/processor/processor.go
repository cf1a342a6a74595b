// internal/engine/processor/processor.go
package processor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"intake-engine/internal/common/config"
	commonerrors "intake-engine/internal/common/errors"
	"intake-engine/internal/common/logger"
	"intake-engine/internal/common/metrics"
	"intake-engine/internal/directory"
	"intake-engine/internal/engine/assign"
	"intake-engine/internal/engine/eta"
	"intake-engine/internal/engine/extract"
	"intake-engine/internal/engine/practice"
	"intake-engine/internal/engine/rules"
	"intake-engine/internal/engine/status"
	"intake-engine/internal/models"
	"intake-engine/internal/notify"
	"intake-engine/internal/store"
)

// Field names the intake rules are expected to map onto.
const (
	fieldOpportunityID  = "opportunityId"
	fieldAccountManager = "accountManager"
	fieldPractice       = "practice"
	fieldRevision       = "revision"
)

// MailClient is the mail collaborator. Transport internals are external;
// the engine only fetches and acknowledges.
type MailClient interface {
	CheckNewMail(ctx context.Context, since time.Time) ([]models.InboundEmail, error)
	MarkAsRead(ctx context.Context, id string) error
}

// Deps bundles the collaborators the service is constructed with once at
// process start. No package-level state.
type Deps struct {
	Mail       MailClient
	Store      store.Store
	Directory  directory.Directory
	Extractor  *extract.Extractor
	Matcher    *practice.Matcher
	Assigner   *assign.Engine
	Tracker    *eta.Tracker
	Dispatcher notify.Dispatcher
	Rules      []models.ProcessingRule
}

// Service runs the intake passes: fetch mail, match rules, extract
// fields, and drive the assignment state machine.
type Service struct {
	cfg    *config.Config
	deps   Deps
	logger logger.Logger

	running  atomic.Bool
	lastPass time.Time
	now      func() time.Time
}

func NewService(cfg *config.Config, deps Deps, log logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		deps:   deps,
		logger: log,
		now:    time.Now,
	}
}

// Run executes one pass immediately, then one per poll interval until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.RunPass(ctx)

	ticker := time.NewTicker(config.GetDuration(s.cfg.Intake.PollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("intake processor stopping", nil)
			return
		case <-ticker.C:
			s.RunPass(ctx)
		}
	}
}

// RunPass processes all new mail once. Overlapping passes are dropped,
// not queued.
func (s *Service) RunPass(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous pass still running, dropping this one", nil)
		metrics.EmailsSkipped.WithLabelValues("overlapping_pass").Inc()
		return
	}
	defer s.running.Store(false)

	metrics.PassesActive.WithLabelValues("intake").Set(1)
	defer metrics.PassesActive.WithLabelValues("intake").Set(0)

	since := s.lastPass
	if since.IsZero() {
		since = s.now().Add(-time.Duration(s.cfg.Intake.LookbackHours) * time.Hour)
	}
	passStart := s.now()

	callCtx, cancel := s.boundCall(ctx)
	emails, err := s.deps.Mail.CheckNewMail(callCtx, since)
	cancel()
	if err != nil {
		s.logger.Error("mail fetch failed", map[string]interface{}{"error": err.Error()})
		return
	}

	// The next window must still cover every email left for retry, or a
	// since-filtering gateway would never return it again.
	nextSince := passStart
	for _, email := range emails {
		if ctx.Err() != nil {
			return
		}
		if !s.processOne(ctx, email) && email.ReceivedAt.Before(nextSince) {
			nextSince = email.ReceivedAt
		}
	}
	s.lastPass = nextSince
}

// processOne is the per-email failure boundary: an error leaves the
// email unread so the next pass retries it, and never aborts the batch.
// It reports whether the email is settled; false means the next pass
// must see it again.
func (s *Service) processOne(ctx context.Context, email models.InboundEmail) bool {
	rule, ok := rules.Match(email, s.deps.Rules)
	if !ok {
		metrics.EmailsSkipped.WithLabelValues("no_rule").Inc()
		return true
	}

	started := s.now()
	action := string(rule.Action)
	log := s.logger.WithFields(map[string]interface{}{
		"emailId": email.ID,
		"ruleId":  rule.ID,
		"action":  action,
	})

	err := s.dispatch(ctx, email, rule)
	metrics.ActionDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.EmailsFailed.WithLabelValues(action, errorCode(err)).Inc()
		log.Error("email action failed, leaving unread for retry", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}

	callCtx, cancel := s.boundCall(ctx)
	defer cancel()
	if err := s.deps.Mail.MarkAsRead(callCtx, email.ID); err != nil {
		// The action itself is idempotent, so a reprocess next pass is
		// safe; just note it.
		log.Warn("mark-as-read failed after successful action", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	metrics.EmailsProcessed.WithLabelValues(action).Inc()
	log.Info("email processed", nil)
	return true
}

func (s *Service) dispatch(ctx context.Context, email models.InboundEmail, rule *models.ProcessingRule) error {
	fields := s.deps.Extractor.Extract(ctx, email.Subject+"\n"+email.Body, rule.KeywordMappings)

	switch rule.Action {
	case models.ActionResourceAssignment, models.ActionSAAssignment:
		return s.handleCreate(ctx, email, rule, fields)
	case models.ActionSAApprovalRequest:
		return s.handleApprovalEvent(ctx, rule, fields, false)
	case models.ActionSAAssignmentApproved:
		return s.handleApprovalEvent(ctx, rule, fields, true)
	}
	return nil
}

// handleCreate builds a new assignment from the extracted fields,
// classifies its practices, attempts auto-assignment, and persists it.
// Duplicate opportunities are reported as successful skips.
func (s *Service) handleCreate(ctx context.Context, email models.InboundEmail, rule *models.ProcessingRule, fields extract.FieldSet) error {
	oppID := fieldValue(fields, fieldOpportunityID)
	if oppID == "" {
		metrics.EmailsSkipped.WithLabelValues("missing_opportunity").Inc()
		s.logger.Warn("no opportunity id extracted, skipping", map[string]interface{}{
			"emailId": email.ID,
		})
		return nil
	}

	callCtx, cancel := s.boundCall(ctx)
	existing, err := s.deps.Store.GetByOpportunity(callCtx, rule.Action, oppID)
	cancel()
	if err == nil {
		metrics.EmailsSkipped.WithLabelValues("duplicate_opportunity").Inc()
		s.logger.Info("duplicate opportunity, skipping", map[string]interface{}{
			"opportunityId": oppID,
			"assignmentId":  existing.ID,
		})
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	now := s.now()
	a := &models.Assignment{
		Kind:            rule.Action,
		OpportunityID:   oppID,
		Status:          models.StatusPending,
		AccountManager:  resolveManager(fields),
		Region:          fieldValue(fields, extract.FieldRegion),
		Completion:      map[string]models.CompletionEntry{},
		StatusChangedAt: email.ReceivedAt,
		CreatedAt:       now,
	}

	prior := eta.Capture(a)
	var changes []status.Change

	practices := s.resolvePractices(fields)
	changes = append(changes, status.ClassifyPractices(a, practices, now)...)

	if a.Status == models.StatusUnassigned {
		callCtx, cancel := s.boundCall(ctx)
		result, err := s.deps.Assigner.Assign(callCtx, a)
		cancel()
		if err != nil {
			return err
		}
		if result.Skipped {
			s.logger.Info("cannot auto-assign yet", map[string]interface{}{
				"opportunityId": oppID,
				"reason":        result.Reason,
			})
		} else {
			covered := result.Status == models.StatusAssigned
			changes = append(changes, status.MarkAssigned(a, result.PracticeAssignees, result.Region, covered, now)...)
		}
	}

	callCtx, cancel = s.boundCall(ctx)
	err = s.deps.Store.Create(callCtx, a)
	cancel()
	if errors.Is(err, store.ErrDuplicateOpportunity) {
		metrics.EmailsSkipped.WithLabelValues("duplicate_opportunity").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	metrics.AssignmentsCreated.WithLabelValues(string(a.Status)).Inc()

	s.recordTransitions(ctx, a, prior, changes)
	s.notify(ctx, a, changes, notify.TemplateAssignmentCreated)
	return nil
}

// handleApprovalEvent applies either an approval request (all pairs of
// the practice to PendingApproval) or an approval (revision-gated
// per-pair completion) to the existing assignment.
func (s *Service) handleApprovalEvent(ctx context.Context, rule *models.ProcessingRule, fields extract.FieldSet, approved bool) error {
	oppID := fieldValue(fields, fieldOpportunityID)
	if oppID == "" {
		metrics.EmailsSkipped.WithLabelValues("missing_opportunity").Inc()
		return nil
	}

	callCtx, cancel := s.boundCall(ctx)
	a, err := s.deps.Store.GetByOpportunity(callCtx, models.ActionSAAssignment, oppID)
	cancel()
	if err != nil {
		return err
	}

	practiceName := s.matchDeclaredPractice(a, fieldValue(fields, fieldPractice))
	if practiceName == "" {
		metrics.EmailsSkipped.WithLabelValues("unknown_practice").Inc()
		s.logger.Warn("approval event for unknown practice, skipping", map[string]interface{}{
			"opportunityId": oppID,
		})
		return nil
	}
	revision := fieldValue(fields, fieldRevision)

	now := s.now()
	prior := eta.Capture(a)
	var changes []status.Change
	if approved {
		changes = status.ApplyApproval(a, practiceName, revision, now)
	} else {
		changes = status.ApplyApprovalRequest(a, practiceName, revision, now)
	}
	if len(changes) == 0 {
		// Already in the requested state; re-delivery of the same event.
		return nil
	}

	callCtx, cancel = s.boundCall(ctx)
	err = s.deps.Store.Patch(callCtx, a)
	cancel()
	if err != nil {
		return err
	}

	s.recordTransitions(ctx, a, prior, changes)
	template := notify.TemplateApprovalRequested
	if a.Status == models.StatusComplete {
		template = notify.TemplateAssignmentComplete
	}
	s.notify(ctx, a, changes, template)
	return nil
}

// resolvePractices matches the practice field (comma/semicolon
// separated) and the technology table's first column onto the canonical
// list. Unresolvable mentions are dropped; no mentions means the
// assignment stays Pending.
func (s *Service) resolvePractices(fields extract.FieldSet) []string {
	var resolved []string
	seen := map[string]bool{}
	add := func(candidate string, threshold float64) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		name, _, ok := s.deps.Matcher.Match(candidate, threshold)
		if ok && !seen[name] {
			seen[name] = true
			resolved = append(resolved, name)
		}
	}

	if v := fieldValue(fields, fieldPractice); v != "" {
		for _, candidate := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';'
		}) {
			add(candidate, s.cfg.Engine.MatchThreshold)
		}
	}

	if table := fieldValue(fields, extract.FieldTechTable); table != "" {
		for _, line := range strings.Split(table, "\n") {
			name := line
			if i := strings.Index(line, "|"); i >= 0 {
				name = line[:i]
			}
			add(name, s.cfg.Engine.TableMatchThreshold)
		}
	}
	return resolved
}

// matchDeclaredPractice maps the extracted practice mention onto one of
// the practices already declared on the assignment.
func (s *Service) matchDeclaredPractice(a *models.Assignment, candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	for _, declared := range a.Practices() {
		if strings.EqualFold(declared, candidate) {
			return declared
		}
	}
	if name, _, ok := s.deps.Matcher.Match(candidate, s.cfg.Engine.MatchThreshold); ok {
		for _, declared := range a.Practices() {
			if strings.EqualFold(declared, name) {
				return declared
			}
		}
	}
	return ""
}

// recordTransitions feeds overall status changes to the ETA tracker.
// Best-effort: indexing failures never roll back the transition.
func (s *Service) recordTransitions(ctx context.Context, a *models.Assignment, prior eta.Snapshot, changes []status.Change) {
	if s.deps.Tracker == nil {
		return
	}
	for _, c := range changes {
		if c.Assignee != "" {
			continue
		}
		callCtx, cancel := s.boundCall(ctx)
		err := s.deps.Tracker.Record(callCtx, a, prior,
			models.Status(c.From), models.Status(c.To), c.Practice, s.now())
		cancel()
		if err != nil {
			s.logger.Warn("eta sample dropped", map[string]interface{}{
				"assignmentId": a.ID,
				"error":        err.Error(),
			})
		}
	}
}

// notify is fire-and-forget relative to the owning transition.
func (s *Service) notify(ctx context.Context, a *models.Assignment, changes []status.Change, template notify.TemplateKind) {
	if s.deps.Dispatcher == nil {
		return
	}
	callCtx, cancel := s.boundCall(ctx)
	defer cancel()

	if err := s.deps.Dispatcher.NotifyStatusChanges(callCtx, a, changes, notify.ChannelWebex); err != nil {
		s.logger.Warn("status notification failed", map[string]interface{}{
			"assignmentId": a.ID,
			"error":        err.Error(),
		})
	}
	if err := s.deps.Dispatcher.SendTemplate(callCtx, a, template); err != nil {
		s.logger.Warn("template notification failed", map[string]interface{}{
			"assignmentId": a.ID,
			"template":     string(template),
			"error":        err.Error(),
		})
	}
}

func (s *Service) boundCall(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.GetDuration(s.cfg.Intake.CallTimeout))
}

func resolveManager(fields extract.FieldSet) models.Person {
	v := fieldValue(fields, fieldAccountManager)
	if v == "" {
		v = fieldValue(fields, extract.FieldSubmittedBy)
	}
	if v == "" {
		return models.Person{}
	}
	if strings.Contains(v, "@") {
		return models.Person{Email: strings.ToLower(v)}
	}
	return models.Person{Name: v}
}

// fieldValue returns the extracted value, folding the not-found sentinel
// to "".
func fieldValue(fields extract.FieldSet, name string) string {
	f, ok := fields[name]
	if !ok || f.Value == extract.NotFound {
		return ""
	}
	return strings.TrimSpace(f.Value)
}

func errorCode(err error) string {
	var stdErr *commonerrors.StandardError
	if errors.As(err, &stdErr) {
		return strings.ToLower(string(stdErr.Code))
	}
	switch {
	case errors.Is(err, store.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "downstream_failure"
	}
}
