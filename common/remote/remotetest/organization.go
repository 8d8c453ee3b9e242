package remotetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

// Organization is an in-process organization implementing remote.Client for
// tests. It counts every call it serves and can be told to fail any operation.
type Organization struct {
	mu sync.Mutex

	root     models.HierarchyNode
	ous      map[string]*entity
	accounts map[string]*entity
	order    []string

	policies     map[string]*models.Policy
	policyOrder  []string
	attachments  map[string][]string
	delegated    map[string][]models.DelegatedAdministrator
	delegatedIDs []string

	seq       int
	calls     map[string]int
	mutations int
	failures  map[string]error
	now       func() time.Time
}

var _ remote.Client = (*Organization)(nil)

type entity struct {
	node     models.HierarchyNode
	parentID string
}

// NewOrganization creates an organization with a single root
func NewOrganization(rootID string) *Organization {
	return &Organization{
		root: models.HierarchyNode{
			ID:   rootID,
			Name: "Root",
			Kind: models.KindRoot,
			Path: models.RootPath,
			Arn:  "arn:aws:organizations::000000000000:root/o-memory/" + rootID,
		},
		ous:         make(map[string]*entity),
		accounts:    make(map[string]*entity),
		policies:    make(map[string]*models.Policy),
		attachments: make(map[string][]string),
		delegated:   make(map[string][]models.DelegatedAdministrator),
		calls:       make(map[string]int),
		failures:    make(map[string]error),
		now:         time.Now,
	}
}

// Seed helpers. They bypass call counting and are meant for test setup.

// SeedOrganizationalUnit adds an OU and returns its id
func (m *Organization) SeedOrganizationalUnit(parentID, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.createOU(parentID, name)
	if err != nil {
		panic(err)
	}
	return id
}

// SeedAccount adds an account with a fixed id
func (m *Organization) SeedAccount(parentID, accountID, name, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.containerExists(parentID) {
		panic(fmt.Sprintf("seed account %s: unknown parent %s", accountID, parentID))
	}
	m.accounts[accountID] = &entity{
		node: models.HierarchyNode{
			ID:     accountID,
			Name:   name,
			Email:  email,
			Status: "ACTIVE",
			Kind:   models.KindAccount,
			Arn:    "arn:aws:organizations::000000000000:account/o-memory/" + accountID,
		},
		parentID: parentID,
	}
	m.order = append(m.order, accountID)
}

// SeedPolicy adds a service control policy and returns its id
func (m *Organization) SeedPolicy(name, description, content string, awsManaged bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.createPolicy(name, description, content)
	if err != nil {
		panic(err)
	}
	m.policies[id].Summary.AwsManaged = awsManaged
	return id
}

// SeedAttachment attaches a policy
func (m *Organization) SeedAttachment(policyID, targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.attach(policyID, targetID); err != nil {
		panic(err)
	}
}

// SeedDelegatedAdministrator registers an account for a service principal
func (m *Organization) SeedDelegatedAdministrator(accountID, servicePrincipal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.register(accountID, servicePrincipal); err != nil {
		panic(err)
	}
}

// FailOn makes every subsequent call of op return err
func (m *Organization) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Calls returns how many times op was served
func (m *Organization) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Mutations returns the number of successful mutating calls
func (m *Organization) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations
}

// ParentOf returns the parent id of an OU or account
func (m *Organization) ParentOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.ous[id]; ok {
		return e.parentID
	}
	if e, ok := m.accounts[id]; ok {
		return e.parentID
	}
	return ""
}

// FindOrganizationalUnit returns the id of the OU named name under parentID
func (m *Organization) FindOrganizationalUnit(parentID, name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if e, ok := m.ous[id]; ok && e.parentID == parentID && e.node.Name == name {
			return id, true
		}
	}
	return "", false
}

func (m *Organization) enter(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return err
	}
	return nil
}

func (m *Organization) nextID(prefix string) string {
	m.seq++
	suffix := strings.TrimPrefix(m.root.ID, "r-")
	return fmt.Sprintf("%s-%s-%08d", prefix, suffix, m.seq)
}

func (m *Organization) containerExists(id string) bool {
	if id == m.root.ID {
		return true
	}
	_, ok := m.ous[id]
	return ok
}

func (m *Organization) targetExists(id string) bool {
	if m.containerExists(id) {
		return true
	}
	_, ok := m.accounts[id]
	return ok
}

func (m *Organization) targetType(id string) string {
	switch {
	case id == m.root.ID:
		return string(models.KindRoot)
	case m.ous[id] != nil:
		return string(models.KindOrganizationalUnit)
	default:
		return string(models.KindAccount)
	}
}

func (m *Organization) createOU(parentID, name string) (string, error) {
	if !m.containerExists(parentID) {
		return "", remote.NewProviderError(remote.OpCreateOrganizationalUnit, remote.CodeParentNotFound, parentID)
	}
	for _, e := range m.ous {
		if e.parentID == parentID && e.node.Name == name {
			return "", remote.NewProviderError(remote.OpCreateOrganizationalUnit, remote.CodeDuplicateOrganizationalUnit, name)
		}
	}
	id := m.nextID("ou")
	m.ous[id] = &entity{
		node: models.HierarchyNode{
			ID:   id,
			Name: name,
			Kind: models.KindOrganizationalUnit,
			Arn:  "arn:aws:organizations::000000000000:ou/o-memory/" + id,
		},
		parentID: parentID,
	}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Organization) createPolicy(name, description, content string) (string, error) {
	for _, p := range m.policies {
		if p.Summary.Name == name {
			return "", remote.NewProviderError(remote.OpCreatePolicy, remote.CodeDuplicatePolicy, name)
		}
	}
	id := fmt.Sprintf("p-%08d", len(m.policies)+1)
	m.policies[id] = &models.Policy{
		Summary: models.PolicySummary{
			Id:          id,
			Arn:         "arn:aws:organizations::000000000000:policy/o-memory/service_control_policy/" + id,
			Name:        name,
			Description: description,
			Type:        models.PolicyTypeServiceControl,
		},
		Content: content,
	}
	m.policyOrder = append(m.policyOrder, id)
	return id, nil
}

func (m *Organization) attach(policyID, targetID string) error {
	if _, ok := m.policies[policyID]; !ok {
		return remote.NewProviderError(remote.OpAttachPolicy, remote.CodePolicyNotFound, policyID)
	}
	if !m.targetExists(targetID) {
		return remote.NewProviderError(remote.OpAttachPolicy, remote.CodeTargetNotFound, targetID)
	}
	for _, t := range m.attachments[policyID] {
		if t == targetID {
			return remote.NewProviderError(remote.OpAttachPolicy, remote.CodeDuplicatePolicyAttachment, policyID+" on "+targetID)
		}
	}
	m.attachments[policyID] = append(m.attachments[policyID], targetID)
	return nil
}

func (m *Organization) register(accountID, servicePrincipal string) error {
	if _, ok := m.accounts[accountID]; !ok {
		return remote.NewProviderError(remote.OpRegisterDelegatedAdministrator, remote.CodeAccountNotFound, accountID)
	}
	for _, d := range m.delegated[accountID] {
		if d.ServicePrincipal == servicePrincipal {
			return remote.NewProviderError(remote.OpRegisterDelegatedAdministrator, remote.CodeAccountAlreadyRegistered, accountID)
		}
	}
	if len(m.delegated[accountID]) == 0 {
		m.delegatedIDs = append(m.delegatedIDs, accountID)
	}
	enabled := m.now().UTC()
	m.delegated[accountID] = append(m.delegated[accountID], models.DelegatedAdministrator{
		AccountID:             accountID,
		ServicePrincipal:      servicePrincipal,
		DelegationEnabledDate: &enabled,
	})
	return nil
}

func (m *Organization) ListRoots(ctx context.Context) ([]models.HierarchyNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListRoots); err != nil {
		return nil, err
	}
	return []models.HierarchyNode{m.root}, nil
}

func (m *Organization) ListChildren(ctx context.Context, parentID string, kind models.NodeKind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListChildren); err != nil {
		return nil, err
	}
	if !m.containerExists(parentID) {
		return nil, remote.NewProviderError(remote.OpListChildren, remote.CodeParentNotFound, parentID)
	}

	var ids []string
	for _, id := range m.order {
		var e *entity
		switch kind {
		case models.KindOrganizationalUnit:
			e = m.ous[id]
		case models.KindAccount:
			e = m.accounts[id]
		default:
			return nil, fmt.Errorf("list children: unsupported child kind %q", kind)
		}
		if e != nil && e.parentID == parentID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Organization) ListParents(ctx context.Context, childID string) ([]models.ParentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListParents); err != nil {
		return nil, err
	}

	var parentID string
	if e, ok := m.ous[childID]; ok {
		parentID = e.parentID
	} else if e, ok := m.accounts[childID]; ok {
		parentID = e.parentID
	} else {
		return nil, remote.NewProviderError(remote.OpListParents, remote.CodeChildNotFound, childID)
	}

	kind := models.KindOrganizationalUnit
	if parentID == m.root.ID {
		kind = models.KindRoot
	}
	return []models.ParentRef{{ID: parentID, Kind: kind}}, nil
}

func (m *Organization) DescribeOrganizationalUnit(ctx context.Context, ouID string) (*models.HierarchyNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpDescribeOrganizationalUnit); err != nil {
		return nil, err
	}
	e, ok := m.ous[ouID]
	if !ok {
		return nil, remote.NewProviderError(remote.OpDescribeOrganizationalUnit, remote.CodeOrganizationalUnitNotFound, ouID)
	}
	node := e.node
	return &node, nil
}

func (m *Organization) DescribeAccount(ctx context.Context, accountID string) (*models.HierarchyNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpDescribeAccount); err != nil {
		return nil, err
	}
	e, ok := m.accounts[accountID]
	if !ok {
		return nil, remote.NewProviderError(remote.OpDescribeAccount, remote.CodeAccountNotFound, accountID)
	}
	node := e.node
	return &node, nil
}

func (m *Organization) ListPolicies(ctx context.Context) ([]models.PolicySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListPolicies); err != nil {
		return nil, err
	}
	out := make([]models.PolicySummary, 0, len(m.policyOrder))
	for _, id := range m.policyOrder {
		out = append(out, m.policies[id].Summary)
	}
	return out, nil
}

func (m *Organization) DescribePolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpDescribePolicy); err != nil {
		return nil, err
	}
	p, ok := m.policies[policyID]
	if !ok {
		return nil, remote.NewProviderError(remote.OpDescribePolicy, remote.CodePolicyNotFound, policyID)
	}
	copied := *p
	return &copied, nil
}

func (m *Organization) ListPoliciesForTarget(ctx context.Context, targetID string) ([]models.PolicySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListPoliciesForTarget); err != nil {
		return nil, err
	}
	if !m.targetExists(targetID) {
		return nil, remote.NewProviderError(remote.OpListPoliciesForTarget, remote.CodeTargetNotFound, targetID)
	}
	var out []models.PolicySummary
	for _, id := range m.policyOrder {
		for _, t := range m.attachments[id] {
			if t == targetID {
				out = append(out, m.policies[id].Summary)
			}
		}
	}
	return out, nil
}

func (m *Organization) ListTargetsForPolicy(ctx context.Context, policyID string) ([]models.PolicyTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListTargetsForPolicy); err != nil {
		return nil, err
	}
	if _, ok := m.policies[policyID]; !ok {
		return nil, remote.NewProviderError(remote.OpListTargetsForPolicy, remote.CodePolicyNotFound, policyID)
	}
	var out []models.PolicyTarget
	for _, t := range m.attachments[policyID] {
		name := m.root.Name
		if e, ok := m.ous[t]; ok {
			name = e.node.Name
		} else if e, ok := m.accounts[t]; ok {
			name = e.node.Name
		}
		out = append(out, models.PolicyTarget{TargetID: t, Name: name, Type: m.targetType(t)})
	}
	return out, nil
}

func (m *Organization) ListDelegatedAdministrators(ctx context.Context) ([]models.DelegatedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListDelegatedAdministrators); err != nil {
		return nil, err
	}
	var out []models.DelegatedAccount
	for _, id := range m.delegatedIDs {
		if len(m.delegated[id]) == 0 {
			continue
		}
		out = append(out, models.DelegatedAccount{ID: id, Name: m.accounts[id].node.Name})
	}
	return out, nil
}

func (m *Organization) ListDelegatedServicesForAccount(ctx context.Context, accountID string) ([]models.DelegatedAdministrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpListDelegatedServicesForAccount); err != nil {
		return nil, err
	}
	services := m.delegated[accountID]
	if len(services) == 0 {
		return nil, remote.NewProviderError(remote.OpListDelegatedServicesForAccount, remote.CodeAccountNotRegistered, accountID)
	}
	out := append([]models.DelegatedAdministrator(nil), services...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ServicePrincipal < out[j].ServicePrincipal })
	return out, nil
}

func (m *Organization) CreateOrganizationalUnit(ctx context.Context, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpCreateOrganizationalUnit); err != nil {
		return "", err
	}
	id, err := m.createOU(parentID, name)
	if err != nil {
		return "", err
	}
	m.mutations++
	return id, nil
}

func (m *Organization) UpdateOrganizationalUnit(ctx context.Context, ouID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpUpdateOrganizationalUnit); err != nil {
		return err
	}
	e, ok := m.ous[ouID]
	if !ok {
		return remote.NewProviderError(remote.OpUpdateOrganizationalUnit, remote.CodeOrganizationalUnitNotFound, ouID)
	}
	for id, other := range m.ous {
		if id != ouID && other.parentID == e.parentID && other.node.Name == name {
			return remote.NewProviderError(remote.OpUpdateOrganizationalUnit, remote.CodeDuplicateOrganizationalUnit, name)
		}
	}
	e.node.Name = name
	m.mutations++
	return nil
}

func (m *Organization) MoveAccount(ctx context.Context, accountID, sourceParentID, destinationParentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpMoveAccount); err != nil {
		return err
	}
	e, ok := m.accounts[accountID]
	if !ok {
		return remote.NewProviderError(remote.OpMoveAccount, remote.CodeAccountNotFound, accountID)
	}
	if e.parentID != sourceParentID {
		return remote.NewProviderError(remote.OpMoveAccount, remote.CodeSourceParentNotFound, sourceParentID)
	}
	if !m.containerExists(destinationParentID) {
		return remote.NewProviderError(remote.OpMoveAccount, remote.CodeDestinationParentNotFound, destinationParentID)
	}
	if sourceParentID == destinationParentID {
		return remote.NewProviderError(remote.OpMoveAccount, remote.CodeDuplicateAccount, accountID)
	}
	e.parentID = destinationParentID
	m.mutations++
	return nil
}

func (m *Organization) CreatePolicy(ctx context.Context, name, description, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpCreatePolicy); err != nil {
		return "", err
	}
	id, err := m.createPolicy(name, description, content)
	if err != nil {
		return "", err
	}
	m.mutations++
	return id, nil
}

func (m *Organization) UpdatePolicy(ctx context.Context, policyID string, update remote.PolicyUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpUpdatePolicy); err != nil {
		return err
	}
	p, ok := m.policies[policyID]
	if !ok {
		return remote.NewProviderError(remote.OpUpdatePolicy, remote.CodePolicyNotFound, policyID)
	}
	if update.Name != nil {
		p.Summary.Name = *update.Name
	}
	if update.Description != nil {
		p.Summary.Description = *update.Description
	}
	if update.Content != nil {
		p.Content = *update.Content
	}
	m.mutations++
	return nil
}

func (m *Organization) AttachPolicy(ctx context.Context, policyID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpAttachPolicy); err != nil {
		return err
	}
	if err := m.attach(policyID, targetID); err != nil {
		return err
	}
	m.mutations++
	return nil
}

func (m *Organization) DetachPolicy(ctx context.Context, policyID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpDetachPolicy); err != nil {
		return err
	}
	targets := m.attachments[policyID]
	for i, t := range targets {
		if t == targetID {
			m.attachments[policyID] = append(targets[:i:i], targets[i+1:]...)
			m.mutations++
			return nil
		}
	}
	return remote.NewProviderError(remote.OpDetachPolicy, remote.CodePolicyNotAttached, policyID+" on "+targetID)
}

func (m *Organization) RegisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpRegisterDelegatedAdministrator); err != nil {
		return err
	}
	if err := m.register(accountID, servicePrincipal); err != nil {
		return err
	}
	m.mutations++
	return nil
}

func (m *Organization) DeregisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(remote.OpDeregisterDelegatedAdministrator); err != nil {
		return err
	}
	services := m.delegated[accountID]
	for i, d := range services {
		if d.ServicePrincipal == servicePrincipal {
			m.delegated[accountID] = append(services[:i:i], services[i+1:]...)
			m.mutations++
			return nil
		}
	}
	return remote.NewProviderError(remote.OpDeregisterDelegatedAdministrator, remote.CodeAccountNotRegistered, accountID)
}
