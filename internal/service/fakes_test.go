package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/elegantflow/crm-service/internal/config"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/events"
	"github.com/elegantflow/crm-service/internal/observability"
	"github.com/elegantflow/crm-service/internal/push"
	"github.com/elegantflow/crm-service/internal/repository"
)

var idSeq int

func nextID(prefix string) string {
	idSeq++
	return fmt.Sprintf("%s-%04d", prefix, idSeq)
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeUsers struct {
	mu    sync.Mutex
	items map[string]*domain.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{items: map[string]*domain.User{}} }

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("duplicate email")
		}
	}
	if user.ID == "" {
		user.ID = nextID("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = baseTime.Add(time.Duration(len(f.items)) * time.Minute)
	}
	cp := *user
	f.items[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	f.items[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.items[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.User
	for _, u := range f.items {
		if filter.OrganizationID != nil && u.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.BranchID != nil && (u.BranchID == nil || *u.BranchID != *filter.BranchID) {
			continue
		}
		if filter.ParentID != nil && (u.ParentID == nil || *u.ParentID != *filter.ParentID) {
			continue
		}
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, u.Role) {
			continue
		}
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, u.ID) {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (f *fakeUsers) AddPushToken(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if !contains(u.PushTokens, token) {
		u.PushTokens = append(u.PushTokens, token)
	}
	return nil
}

func (f *fakeUsers) TouchLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.items[id]; ok {
		now := time.Now()
		u.LastLoggedIn = &now
	}
	return nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type fakeOrgs struct {
	mu    sync.Mutex
	items map[string]*domain.Organization
}

func newFakeOrgs() *fakeOrgs { return &fakeOrgs{items: map[string]*domain.Organization{}} }

func (f *fakeOrgs) Create(_ context.Context, org *domain.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if org.ID == "" {
		org.ID = nextID("org")
	}
	cp := *org
	f.items[org.ID] = &cp
	return nil
}

func (f *fakeOrgs) Update(_ context.Context, org *domain.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[org.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *org
	f.items[org.ID] = &cp
	return nil
}

func (f *fakeOrgs) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.items[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOrgs) GetByName(_ context.Context, name string) (*domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.items {
		if o.Name == name {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOrgs) GetByOwner(_ context.Context, ownerID string) (*domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.items {
		if o.OwnerID != nil && *o.OwnerID == ownerID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOrgs) SetOwner(_ context.Context, orgID, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[orgID]
	if !ok {
		return pgx.ErrNoRows
	}
	if o.OwnerID != nil {
		return repository.ErrOwnerAlreadySet
	}
	o.OwnerID = &ownerID
	return nil
}

func (f *fakeOrgs) List(context.Context) ([]domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Organization
	for _, o := range f.items {
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type fakeBranches struct {
	mu    sync.Mutex
	items []domain.Branch
}

func (f *fakeBranches) Create(_ context.Context, branch *domain.Branch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if branch.ID == "" {
		branch.ID = nextID("branch")
	}
	f.items = append(f.items, *branch)
	return nil
}

func (f *fakeBranches) GetByID(_ context.Context, id string) (*domain.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeBranches) ListByOrganization(_ context.Context, orgID string) ([]domain.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Branch
	for _, b := range f.items {
		if b.OrganizationID == orgID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (f *fakeBranches) Delete(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.items {
		if b.ID == id && b.OrganizationID == orgID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeClients struct {
	mu       sync.Mutex
	items    []*domain.Client
	feedback map[string][]domain.Feedback
	projects *fakeProjects
	// createErr makes Create fail when set.
	createErr error
}

func newFakeClients(projects *fakeProjects) *fakeClients {
	return &fakeClients{feedback: map[string][]domain.Feedback{}, projects: projects}
}

func (f *fakeClients) Create(_ context.Context, client *domain.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if client.ID == "" {
		client.ID = nextID("client")
	}
	client.CreatedAt = baseTime.Add(time.Duration(len(f.items)) * time.Minute)
	cp := *client
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeClients) Update(_ context.Context, client *domain.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.items {
		if c.ID == client.ID {
			cp := *client
			f.items[i] = &cp
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeClients) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	f.mu.Lock()
	var found *domain.Client
	for _, c := range f.items {
		if c.ID == id {
			cp := *c
			found = &cp
		}
	}
	f.mu.Unlock()
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	found.Feedback, _ = f.ListFeedback(ctx, id)
	if f.projects != nil {
		projects, _ := f.projects.ListByClient(ctx, id)
		for _, p := range projects {
			found.ProjectIDs = append(found.ProjectIDs, p.ID)
		}
	}
	return found, nil
}

func (f *fakeClients) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.items {
		if c.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			delete(f.feedback, id)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeClients) match(c *domain.Client, filter repository.ClientFilter) bool {
	if filter.OrganizationID != nil && c.OrganizationID != *filter.OrganizationID {
		return false
	}
	if filter.AssigneeID != nil && (c.AssignedTo == nil || *c.AssignedTo != *filter.AssigneeID) {
		return false
	}
	if filter.AssigneeIDs != nil && (c.AssignedTo == nil || !contains(filter.AssigneeIDs, *c.AssignedTo)) {
		return false
	}
	if filter.Status != nil && c.Status != *filter.Status {
		return false
	}
	return true
}

func (f *fakeClients) List(_ context.Context, filter repository.ClientFilter) ([]domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Client
	for _, c := range f.items {
		if f.match(c, filter) {
			result = append(result, *c)
		}
	}
	if filter.NewestFirst {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (f *fakeClients) Count(_ context.Context, filter repository.ClientFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.items {
		if f.match(c, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeClients) FindByIdentity(_ context.Context, orgID, name, email, phone string) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.OrganizationID == orgID && c.Name == name && c.Email == email && c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeClients) AppendFeedback(_ context.Context, feedback *domain.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	feedback.CreatedAt = time.Now()
	feedback.UpdatedAt = feedback.CreatedAt
	f.feedback[feedback.ClientID] = append(f.feedback[feedback.ClientID], *feedback)
	return nil
}

func (f *fakeClients) UpdateFeedback(_ context.Context, feedback *domain.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.feedback[feedback.ClientID]
	for i := range entries {
		if entries[i].ID == feedback.ID {
			entries[i] = *feedback
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeClients) DeleteFeedback(_ context.Context, clientID, feedbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.feedback[clientID]
	for i := range entries {
		if entries[i].ID == feedbackID {
			f.feedback[clientID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeClients) ListFeedback(_ context.Context, clientID string) ([]domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Feedback(nil), f.feedback[clientID]...), nil
}

type fakeProjects struct {
	mu    sync.Mutex
	items []domain.Project
}

func (f *fakeProjects) Create(_ context.Context, project *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if project.ID == "" {
		project.ID = nextID("project")
	}
	f.items = append(f.items, *project)
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProjects) ListByClient(_ context.Context, clientID string) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Project
	for _, p := range f.items {
		if p.ClientID == clientID {
			result = append(result, p)
		}
	}
	return result, nil
}

type fakeLeads struct {
	mu    sync.Mutex
	items []*domain.Lead
}

func (f *fakeLeads) Create(_ context.Context, lead *domain.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lead.ID == "" {
		lead.ID = nextID("lead")
	}
	lead.History.CreatedAt = time.Now()
	cp := *lead
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeLeads) Update(_ context.Context, lead *domain.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.items {
		if l.ID == lead.ID {
			cp := *lead
			f.items[i] = &cp
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeLeads) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.items {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeLeads) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.items {
		if l.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeLeads) match(l *domain.Lead, filter repository.LeadFilter) bool {
	if filter.OrganizationID != nil && l.OrganizationID != *filter.OrganizationID {
		return false
	}
	if filter.AssigneeID != nil && (l.AssignedTo == nil || *l.AssignedTo != *filter.AssigneeID) {
		return false
	}
	if filter.AssigneeIDs != nil && (l.AssignedTo == nil || !contains(filter.AssigneeIDs, *l.AssignedTo)) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if l.Status == s {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if filter.OpenOnly && (l.IsArchived || l.Status == domain.LeadStatusClosed) {
		return false
	}
	return true
}

func (f *fakeLeads) List(_ context.Context, filter repository.LeadFilter) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Lead
	for _, l := range f.items {
		if f.match(l, filter) {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (f *fakeLeads) Count(_ context.Context, filter repository.LeadFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.items {
		if f.match(l, filter) {
			n++
		}
	}
	return n, nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = nextID("notification")
	n.CreatedAt = time.Now()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotifications) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id {
			cp := n
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeNotifications) ListByRecipient(_ context.Context, userID string, _, _ int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Notification
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].To == userID {
			result = append(result, f.items[i])
		}
	}
	return result, nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.items {
		if item.To == userID && item.Status == domain.NotificationUnread {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = domain.NotificationRead
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeNotifications) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeNotifications) all() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.items...)
}

func (f *fakeNotifications) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
}

type fakeResets struct {
	mu    sync.Mutex
	items []*domain.PasswordReset
}

func (f *fakeResets) Create(_ context.Context, reset *domain.PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset.ID = nextID("reset")
	cp := *reset
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeResets) GetByToken(_ context.Context, token string) (*domain.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.Token == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeResets) MarkUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ID == id && r.UsedAt == nil {
			now := time.Now()
			r.UsedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []push.Message
	failing   map[string]bool
}

func (f *fakeNotifier) Deliver(_ context.Context, msg push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, msg)
	if f.failing[msg.Token] {
		return push.ErrDeliveryFailure
	}
	return nil
}

func (f *fakeNotifier) tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []string
	for _, m := range f.delivered {
		result = append(result, m.Token)
	}
	sort.Strings(result)
	return result
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = nil
}

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) SendInvitation(_ context.Context, toEmail, _, _, tempPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "invite", To: toEmail, Token: tempPassword})
	return nil
}

func (f *fakeMailer) SendWelcome(_ context.Context, toEmail, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "welcome", To: toEmail})
	return nil
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, toEmail, _, resetToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "reset", To: toEmail, Token: resetToken})
	return nil
}

// world wires every service over in-memory repositories.
type world struct {
	users         *fakeUsers
	orgs          *fakeOrgs
	branches      *fakeBranches
	clients       *fakeClients
	projects      *fakeProjects
	leads         *fakeLeads
	notifications *fakeNotifications
	resets        *fakeResets
	notifier      *fakeNotifier
	mailer        *fakeMailer
	metrics       *observability.Metrics

	engine        *AssignmentEngine
	leadSvc       *LeadService
	clientSvc     *ClientService
	notifySvc     *NotificationService
	authSvc       *AuthService
	orgSvc        *OrganizationService
	teamSvc       *TeamService
	org           *domain.Organization
	defaultBranch *domain.Branch
}

func newWorld() *world {
	w := &world{
		users:         newFakeUsers(),
		orgs:          newFakeOrgs(),
		branches:      &fakeBranches{},
		projects:      &fakeProjects{},
		leads:         &fakeLeads{},
		notifications: &fakeNotifications{},
		resets:        &fakeResets{},
		notifier:      &fakeNotifier{failing: map[string]bool{}},
		mailer:        &fakeMailer{},
		metrics:       observability.NewMetrics(),
	}
	w.clients = newFakeClients(w.projects)

	dispatcher := events.NewInMemoryDispatcher(nil)
	w.engine = NewAssignmentEngine(AssignmentDependencies{
		UserRepo:   w.users,
		ClientRepo: w.clients,
		LeadRepo:   w.leads,
		Metrics:    w.metrics,
	})
	w.notifySvc = NewNotificationService(NotificationDependencies{
		NotificationRepo: w.notifications,
		UserRepo:         w.users,
		OrganizationRepo: w.orgs,
		Notifier:         w.notifier,
		Dispatcher:       dispatcher,
		Metrics:          w.metrics,
		Concurrency:      4,
	})
	w.notifySvc.RegisterHandlers()
	w.leadSvc = NewLeadService(LeadDependencies{
		LeadRepo:         w.leads,
		ClientRepo:       w.clients,
		BranchRepo:       w.branches,
		UserRepo:         w.users,
		OrganizationRepo: w.orgs,
		Engine:           w.engine,
		Dispatcher:       dispatcher,
		Metrics:          w.metrics,
	})
	w.clientSvc = NewClientService(ClientDependencies{
		ClientRepo:       w.clients,
		ProjectRepo:      w.projects,
		BranchRepo:       w.branches,
		UserRepo:         w.users,
		OrganizationRepo: w.orgs,
		Engine:           w.engine,
		Dispatcher:       dispatcher,
	})
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, PasswordResetTTLMinutes: 30, BcryptCost: 4}}
	w.authSvc = NewAuthService(cfg, AuthDependencies{
		UserRepo:          w.users,
		OrganizationRepo:  w.orgs,
		BranchRepo:        w.branches,
		PasswordResetRepo: w.resets,
		Mailer:            w.mailer,
	})
	w.orgSvc = NewOrganizationService(w.orgs, w.branches)
	w.teamSvc = NewTeamService(w.users)

	w.org = &domain.Organization{Name: "Acme"}
	_ = w.orgs.Create(context.Background(), w.org)
	w.defaultBranch = w.addBranch("HQ")
	return w
}

func (w *world) addBranch(name string) *domain.Branch {
	b := &domain.Branch{OrganizationID: w.org.ID, Name: name}
	_ = w.branches.Create(context.Background(), b)
	return b
}

// addUser creates an active user in the default organization. The first
// owner added becomes the organization owner.
func (w *world) addUser(role domain.Role, parent *domain.User, tokens ...string) *domain.User {
	u := &domain.User{
		FirstName:      string(role),
		LastName:       nextID("n"),
		OrganizationID: w.org.ID,
		BranchID:       &w.defaultBranch.ID,
		Role:           role,
		Status:         domain.UserStatusActive,
		PushTokens:     tokens,
	}
	u.Email = strings.ToLower(u.LastName) + "@acme.test"
	if parent != nil {
		u.ParentID = &parent.ID
	}
	_ = w.users.Create(context.Background(), u)
	if role == domain.RoleOwner {
		_ = w.orgs.SetOwner(context.Background(), w.org.ID, u.ID)
	}
	return u
}

func (w *world) recordsTo() map[string]int {
	counts := map[string]int{}
	for _, n := range w.notifications.all() {
		counts[n.To]++
	}
	return counts
}

func (w *world) recordsOfType(kind domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range w.notifications.all() {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func (w *world) resetOutbox() {
	w.notifications.reset()
	w.notifier.reset()
}

func clientFilterForOrg(orgID string) repository.ClientFilter {
	return repository.ClientFilter{OrganizationID: &orgID}
}
