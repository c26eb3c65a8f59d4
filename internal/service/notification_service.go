package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/events"
	"github.com/elegantflow/crm-service/internal/observability"
	"github.com/elegantflow/crm-service/internal/push"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// NotificationService turns domain events into persisted notifications and
// push deliveries, and serves each user's notification inbox.
type NotificationService struct {
	notifications repository.NotificationRepository
	dir           directory
	notifier      push.Notifier
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	sound         string
	concurrency   int
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	OrganizationRepo repository.OrganizationRepository
	Notifier         push.Notifier
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Sound            string
	Concurrency      int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		dir:           directory{users: deps.UserRepo, orgs: deps.OrganizationRepo},
		notifier:      deps.Notifier,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        logger,
		sound:         deps.Sound,
		concurrency:   concurrency,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventClientCreated, n.handleClientCreated)
	n.dispatcher.Subscribe(events.EventClientDeleted, n.handleClientDeleted)
	n.dispatcher.Subscribe(events.EventClientFeedbackAdded, n.handleFeedbackAdded)
	n.dispatcher.Subscribe(events.EventLeadCreated, n.handleLeadCreated)
	n.dispatcher.Subscribe(events.EventLeadStatusChanged, n.handleLeadStatusChanged)
	n.dispatcher.Subscribe(events.EventLeadInactiveRequested, n.handleLeadInactiveRequested)
	n.dispatcher.Subscribe(events.EventLeadApprovalReviewed, n.handleLeadApprovalReviewed)
}

// message is the user-facing content shared by every record and push of one event.
type message struct {
	Title      string
	Subject    string
	Body       string
	Type       domain.NotificationType
	Route      string
	Screen     string
	ResourceID string
}

// audit is one persisted (from, to) pair.
type audit struct {
	From string
	To   string
}

// plan is the outcome of recipient resolution for one event.
// Records are deduplicated by recipient; Push lists users whose tokens are notified.
type plan struct {
	Records []audit
	Push    []string
}

func (p *plan) record(from string, to *domain.User) {
	if to == nil {
		return
	}
	for _, existing := range p.Records {
		if existing.To == to.ID {
			return
		}
	}
	p.Records = append(p.Records, audit{From: from, To: to.ID})
}

func (p *plan) push(users ...*domain.User) {
	for _, user := range users {
		if user == nil || contains(p.Push, user.ID) {
			continue
		}
		p.Push = append(p.Push, user.ID)
	}
}

// recordAndPush adds a record for every user and pushes to them as well.
func (p *plan) recordAndPush(from string, users ...*domain.User) {
	for _, user := range users {
		p.record(from, user)
		p.push(user)
	}
}

func (n *NotificationService) handleClientCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClientPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.AssigneeID == nil {
		return nil
	}
	assignee, err := n.dir.optionalUser(ctx, *payload.AssigneeID)
	if err != nil || assignee == nil {
		return err
	}

	var p plan
	if assignee.ID != event.ActorID {
		p.recordAndPush(event.ActorID, assignee)
	} else {
		manager, err := n.dir.managerOf(ctx, assignee)
		if err != nil {
			return err
		}
		if manager != nil {
			p.record(manager.ID, assignee)
			p.push(manager)
		}
	}

	return n.deliver(ctx, event, message{
		Title:      "New Client",
		Subject:    "Client assigned",
		Body:       fmt.Sprintf("Client %s has been assigned to %s.", payload.ClientName, assignee.FullName()),
		Type:       domain.NotificationTypeClient,
		Route:      "clients",
		Screen:     "ClientDetails",
		ResourceID: payload.ClientID,
	}, p)
}

func (n *NotificationService) handleClientDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClientPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	var assignee *domain.User
	if payload.AssigneeID != nil {
		found, err := n.dir.optionalUser(ctx, *payload.AssigneeID)
		if err != nil {
			return err
		}
		assignee = found
	}
	manager, err := n.dir.managerOf(ctx, assignee)
	if err != nil {
		return err
	}
	owner, err := n.dir.ownerOf(ctx, event.OrganizationID)
	if err != nil {
		return err
	}

	var p plan
	p.recordAndPush(event.ActorID, assignee, manager, owner)

	return n.deliver(ctx, event, message{
		Title:      "Client Deleted",
		Subject:    "Client removed",
		Body:       fmt.Sprintf("Client %s has been deleted.", payload.ClientName),
		Type:       domain.NotificationTypeClient,
		Route:      "clients",
		Screen:     "Clients",
		ResourceID: payload.ClientID,
	}, p)
}

func (n *NotificationService) handleFeedbackAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.FeedbackAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	var assignee *domain.User
	if payload.AssigneeID != nil && *payload.AssigneeID != payload.AuthorID {
		found, err := n.dir.optionalUser(ctx, *payload.AssigneeID)
		if err != nil {
			return err
		}
		assignee = found
	}
	authorManager, err := n.dir.managerOfID(ctx, &payload.AuthorID)
	if err != nil {
		return err
	}
	if authorManager != nil && authorManager.ID == payload.AuthorID {
		authorManager = nil
	}

	var p plan
	p.recordAndPush(payload.AuthorID, assignee, authorManager)

	return n.deliver(ctx, event, message{
		Title:      "New Feedback",
		Subject:    "Client feedback added",
		Body:       fmt.Sprintf("New feedback was added on client %s.", payload.ClientName),
		Type:       domain.NotificationTypeClient,
		Route:      "clients",
		Screen:     "ClientFeedback",
		ResourceID: payload.ClientID,
	}, p)
}

// leadCreatedPush resolves push recipients of a new lead by the creator's role.
type leadCreatedPush func(ctx context.Context, n *NotificationService, event events.Event, assignee *domain.User) ([]*domain.User, error)

var leadCreatedPushByRole = map[domain.Role]leadCreatedPush{
	domain.RoleOwner: func(ctx context.Context, n *NotificationService, _ events.Event, assignee *domain.User) ([]*domain.User, error) {
		manager, err := n.dir.managerOf(ctx, assignee)
		return []*domain.User{assignee, manager}, err
	},
	domain.RoleManager: func(ctx context.Context, n *NotificationService, event events.Event, assignee *domain.User) ([]*domain.User, error) {
		owner, err := n.dir.ownerOf(ctx, event.OrganizationID)
		return []*domain.User{assignee, owner}, err
	},
	domain.RoleEmployee: func(ctx context.Context, n *NotificationService, event events.Event, _ *domain.User) ([]*domain.User, error) {
		owner, err := n.dir.ownerOf(ctx, event.OrganizationID)
		if err != nil {
			return nil, err
		}
		manager, err := n.dir.managerOfID(ctx, &event.ActorID)
		return []*domain.User{owner, manager}, err
	},
}

func (n *NotificationService) handleLeadCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LeadCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	var assignee *domain.User
	if payload.AssigneeID != nil {
		found, err := n.dir.optionalUser(ctx, *payload.AssigneeID)
		if err != nil {
			return err
		}
		assignee = found
	}
	owner, err := n.dir.ownerOf(ctx, event.OrganizationID)
	if err != nil {
		return err
	}

	var p plan
	p.record(event.ActorID, assignee)
	p.record(event.ActorID, owner)
	if resolve, ok := leadCreatedPushByRole[event.ActorRole]; ok {
		recipients, err := resolve(ctx, n, event, assignee)
		if err != nil {
			return err
		}
		p.push(recipients...)
	}

	return n.deliver(ctx, event, message{
		Title:      "New Lead",
		Subject:    "Lead created",
		Body:       fmt.Sprintf("A new lead %s has been created.", payload.LeadName),
		Type:       domain.NotificationTypeLead,
		Route:      "leads",
		Screen:     "LeadDetails",
		ResourceID: payload.LeadID,
	}, p)
}

func (n *NotificationService) handleLeadStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LeadStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	var assignee *domain.User
	if payload.AssigneeID != nil {
		found, err := n.dir.optionalUser(ctx, *payload.AssigneeID)
		if err != nil {
			return err
		}
		assignee = found
	}

	var p plan
	switch payload.NewStatus {
	case domain.LeadStatusActive:
		manager, err := n.dir.managerOf(ctx, assignee)
		if err != nil {
			return err
		}
		owner, err := n.dir.ownerOf(ctx, event.OrganizationID)
		if err != nil {
			return err
		}
		p.record(event.ActorID, manager)
		p.push(assignee, manager, owner)
	case domain.LeadStatusInactive:
		manager, err := n.dir.managerOf(ctx, assignee)
		if err != nil {
			return err
		}
		owner, err := n.dir.ownerOf(ctx, event.OrganizationID)
		if err != nil {
			return err
		}
		p.recordAndPush(event.ActorID, assignee, owner)
		p.push(manager)
	default:
		if assignee != nil && assignee.ID != event.ActorID {
			p.recordAndPush(event.ActorID, assignee)
		}
	}

	return n.deliver(ctx, event, message{
		Title:      "Lead Status Updated",
		Subject:    fmt.Sprintf("Lead marked %s", payload.NewStatus),
		Body:       fmt.Sprintf("Lead %s moved from %s to %s. Reason: %s", payload.LeadName, payload.OldStatus, payload.NewStatus, payload.Reason),
		Type:       domain.NotificationTypeLead,
		Route:      "leads",
		Screen:     "LeadDetails",
		ResourceID: payload.LeadID,
	}, p)
}

func (n *NotificationService) handleLeadInactiveRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LeadInactiveRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	approver, err := n.approverFor(ctx, event, payload.AssigneeID)
	if err != nil {
		return err
	}

	var p plan
	if approver != nil && approver.ID != event.ActorID {
		p.recordAndPush(event.ActorID, approver)
	}

	return n.deliver(ctx, event, message{
		Title:      "Approval Required",
		Subject:    "Lead inactive request",
		Body:       fmt.Sprintf("A request was made to mark lead %s inactive. Reason: %s", payload.LeadName, payload.Reason),
		Type:       domain.NotificationTypeLead,
		Route:      "leads",
		Screen:     "LeadApproval",
		ResourceID: payload.LeadID,
	}, p)
}

// approverFor is the assignee's manager, else the requester's manager, else the owner.
func (n *NotificationService) approverFor(ctx context.Context, event events.Event, assigneeID *string) (*domain.User, error) {
	subject := assigneeID
	if subject == nil {
		subject = &event.ActorID
	}
	manager, err := n.dir.managerOfID(ctx, subject)
	if err != nil || manager != nil {
		return manager, err
	}
	return n.dir.ownerOf(ctx, event.OrganizationID)
}

func (n *NotificationService) handleLeadApprovalReviewed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LeadApprovalReviewedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	var p plan
	if payload.AssigneeID != nil && *payload.AssigneeID != event.ActorID {
		assignee, err := n.dir.optionalUser(ctx, *payload.AssigneeID)
		if err != nil {
			return err
		}
		p.recordAndPush(event.ActorID, assignee)
	}

	verdict := "rejected"
	if payload.Approved {
		verdict = "approved"
	}
	return n.deliver(ctx, event, message{
		Title:      "Request Reviewed",
		Subject:    fmt.Sprintf("Inactive request %s", verdict),
		Body:       fmt.Sprintf("Your request to mark lead %s inactive was %s.", payload.LeadName, verdict),
		Type:       domain.NotificationTypeLead,
		Route:      "leads",
		Screen:     "LeadDetails",
		ResourceID: payload.LeadID,
	}, p)
}

// deliver persists one record per audit pair, then pushes to every token of
// the push recipients concurrently. Push failures are logged and counted only.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, msg message, p plan) error {
	persisted := 0
	var persistErr error
	for _, pair := range p.Records {
		record := &domain.Notification{
			Title:   msg.Title,
			Subject: msg.Subject,
			Body:    msg.Body,
			Type:    msg.Type,
			From:    pair.From,
			To:      pair.To,
			Route:   msg.Route,
			Screen:  msg.Screen,
			Status:  domain.NotificationUnread,
		}
		if err := n.notifications.Create(ctx, record); err != nil {
			n.logger.Error("persist notification",
				zap.String("event_type", string(event.Type)),
				zap.String("to", pair.To),
				zap.Error(err))
			persistErr = errors.Join(persistErr, err)
			continue
		}
		persisted++
	}
	n.metrics.RecordNotifications(string(event.Type), persisted)

	n.pushAll(ctx, event, msg, p.Push)
	return persistErr
}

func (n *NotificationService) pushAll(ctx context.Context, event events.Event, msg message, userIDs []string) {
	if n.notifier == nil || len(userIDs) == 0 {
		return
	}
	recipients, err := n.dir.users.List(ctx, repository.UserFilter{IDs: userIDs})
	if err != nil {
		n.logger.Warn("load push recipients", zap.String("event_type", string(event.Type)), zap.Error(err))
		return
	}

	type target struct {
		userID string
		token  string
	}
	seen := make(map[string]struct{})
	var targets []target
	for _, user := range recipients {
		for _, token := range user.PushTokens {
			if _, dup := seen[token]; dup || token == "" {
				continue
			}
			seen[token] = struct{}{}
			targets = append(targets, target{userID: user.ID, token: token})
		}
	}

	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for _, t := range targets {
		g.Go(func() error {
			err := n.notifier.Deliver(ctx, push.Message{
				Token:  t.token,
				Title:  msg.Title,
				Body:   msg.Body,
				Data:   map[string]any{"id": msg.ResourceID, "type": string(msg.Type)},
				Route:  msg.Route,
				Screen: msg.Screen,
				Sound:  n.sound,
			})
			n.metrics.RecordDelivery(string(event.Type), err == nil)
			if err != nil {
				n.logger.Warn("push delivery failed",
					zap.String("event_type", string(event.Type)),
					zap.String("user_id", t.userID),
					zap.String("token_prefix", tokenPrefix(t.token)),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func tokenPrefix(token string) string {
	if len(token) <= 24 {
		return token
	}
	return token[:24]
}

// ListForUser returns the user's notifications, newest first.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	list, err := n.notifications.ListByRecipient(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// UnreadCount returns how many notifications the user has not read.
func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := n.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead flips a notification to read. Only the recipient may do so.
func (n *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := n.ownedNotification(ctx, userID, id); err != nil {
		return err
	}
	return apperrors.MapError(n.notifications.MarkRead(ctx, id))
}

// Delete removes a notification. Only the recipient may do so.
func (n *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if _, err := n.ownedNotification(ctx, userID, id); err != nil {
		return err
	}
	return apperrors.MapError(n.notifications.Delete(ctx, id))
}

func (n *NotificationService) ownedNotification(ctx context.Context, userID, id string) (*domain.Notification, error) {
	record, err := n.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if record.To != userID {
		return nil, apperrors.NewForbidden("notification belongs to another user")
	}
	return record, nil
}
