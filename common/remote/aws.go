package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/organizations"
	"github.com/aws/aws-sdk-go/service/organizations/organizationsiface"

	"github.com/lyzr/orgsync/common/models"
)

// AWSClient implements Client on AWS Organizations
type AWSClient struct {
	api organizationsiface.OrganizationsAPI
}

// NewAWSClient creates an adapter acting as roleARN
func NewAWSClient(sess *session.Session, roleARN string) *AWSClient {
	return &AWSClient{api: organizations.New(sess, AssumeRoleConfig(sess, roleARN))}
}

// NewAWSClientWithAPI wraps an existing organizations API (tests, custom endpoints)
func NewAWSClientWithAPI(api organizationsiface.OrganizationsAPI) *AWSClient {
	return &AWSClient{api: api}
}

// wrap converts SDK errors into ProviderErrors; anything else passes through
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return &ProviderError{Op: op, Code: aerr.Code(), Message: aerr.Message(), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *AWSClient) ListRoots(ctx context.Context) ([]models.HierarchyNode, error) {
	var roots []models.HierarchyNode
	err := c.api.ListRootsPagesWithContext(ctx, &organizations.ListRootsInput{},
		func(page *organizations.ListRootsOutput, _ bool) bool {
			for _, r := range page.Roots {
				roots = append(roots, models.HierarchyNode{
					ID:   aws.StringValue(r.Id),
					Name: aws.StringValue(r.Name),
					Arn:  aws.StringValue(r.Arn),
					Kind: models.KindRoot,
					Path: models.RootPath,
				})
			}
			return true
		})
	return roots, wrap(OpListRoots, err)
}

func (c *AWSClient) ListChildren(ctx context.Context, parentID string, kind models.NodeKind) ([]string, error) {
	childType, err := childTypeFor(kind)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = c.api.ListChildrenPagesWithContext(ctx, &organizations.ListChildrenInput{
		ParentId:  aws.String(parentID),
		ChildType: aws.String(childType),
	}, func(page *organizations.ListChildrenOutput, _ bool) bool {
		for _, child := range page.Children {
			ids = append(ids, aws.StringValue(child.Id))
		}
		return true
	})
	return ids, wrap(OpListChildren, err)
}

func (c *AWSClient) ListParents(ctx context.Context, childID string) ([]models.ParentRef, error) {
	var parents []models.ParentRef
	err := c.api.ListParentsPagesWithContext(ctx, &organizations.ListParentsInput{
		ChildId: aws.String(childID),
	}, func(page *organizations.ListParentsOutput, _ bool) bool {
		for _, p := range page.Parents {
			parents = append(parents, models.ParentRef{
				ID:   aws.StringValue(p.Id),
				Kind: models.NodeKind(aws.StringValue(p.Type)),
			})
		}
		return true
	})
	return parents, wrap(OpListParents, err)
}

func (c *AWSClient) DescribeOrganizationalUnit(ctx context.Context, ouID string) (*models.HierarchyNode, error) {
	out, err := c.api.DescribeOrganizationalUnitWithContext(ctx, &organizations.DescribeOrganizationalUnitInput{
		OrganizationalUnitId: aws.String(ouID),
	})
	if err != nil {
		return nil, wrap(OpDescribeOrganizationalUnit, err)
	}
	ou := out.OrganizationalUnit
	return &models.HierarchyNode{
		ID:   aws.StringValue(ou.Id),
		Name: aws.StringValue(ou.Name),
		Arn:  aws.StringValue(ou.Arn),
		Kind: models.KindOrganizationalUnit,
	}, nil
}

func (c *AWSClient) DescribeAccount(ctx context.Context, accountID string) (*models.HierarchyNode, error) {
	out, err := c.api.DescribeAccountWithContext(ctx, &organizations.DescribeAccountInput{
		AccountId: aws.String(accountID),
	})
	if err != nil {
		return nil, wrap(OpDescribeAccount, err)
	}
	return accountNode(out.Account), nil
}

func accountNode(a *organizations.Account) *models.HierarchyNode {
	return &models.HierarchyNode{
		ID:     aws.StringValue(a.Id),
		Name:   aws.StringValue(a.Name),
		Arn:    aws.StringValue(a.Arn),
		Email:  aws.StringValue(a.Email),
		Status: aws.StringValue(a.Status),
		Kind:   models.KindAccount,
	}
}

func (c *AWSClient) ListPolicies(ctx context.Context) ([]models.PolicySummary, error) {
	var policies []models.PolicySummary
	err := c.api.ListPoliciesPagesWithContext(ctx, &organizations.ListPoliciesInput{
		Filter: aws.String(organizations.PolicyTypeServiceControlPolicy),
	}, func(page *organizations.ListPoliciesOutput, _ bool) bool {
		for _, p := range page.Policies {
			policies = append(policies, policySummary(p))
		}
		return true
	})
	return policies, wrap(OpListPolicies, err)
}

func policySummary(p *organizations.PolicySummary) models.PolicySummary {
	return models.PolicySummary{
		Id:          aws.StringValue(p.Id),
		Arn:         aws.StringValue(p.Arn),
		Name:        aws.StringValue(p.Name),
		Description: aws.StringValue(p.Description),
		Type:        aws.StringValue(p.Type),
		AwsManaged:  aws.BoolValue(p.AwsManaged),
	}
}

func (c *AWSClient) DescribePolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	out, err := c.api.DescribePolicyWithContext(ctx, &organizations.DescribePolicyInput{
		PolicyId: aws.String(policyID),
	})
	if err != nil {
		return nil, wrap(OpDescribePolicy, err)
	}
	return &models.Policy{
		Summary: policySummary(out.Policy.PolicySummary),
		Content: aws.StringValue(out.Policy.Content),
	}, nil
}

func (c *AWSClient) ListPoliciesForTarget(ctx context.Context, targetID string) ([]models.PolicySummary, error) {
	var policies []models.PolicySummary
	err := c.api.ListPoliciesForTargetPagesWithContext(ctx, &organizations.ListPoliciesForTargetInput{
		TargetId: aws.String(targetID),
		Filter:   aws.String(organizations.PolicyTypeServiceControlPolicy),
	}, func(page *organizations.ListPoliciesForTargetOutput, _ bool) bool {
		for _, p := range page.Policies {
			policies = append(policies, policySummary(p))
		}
		return true
	})
	return policies, wrap(OpListPoliciesForTarget, err)
}

func (c *AWSClient) ListTargetsForPolicy(ctx context.Context, policyID string) ([]models.PolicyTarget, error) {
	var targets []models.PolicyTarget
	err := c.api.ListTargetsForPolicyPagesWithContext(ctx, &organizations.ListTargetsForPolicyInput{
		PolicyId: aws.String(policyID),
	}, func(page *organizations.ListTargetsForPolicyOutput, _ bool) bool {
		for _, t := range page.Targets {
			targets = append(targets, models.PolicyTarget{
				TargetID: aws.StringValue(t.TargetId),
				Name:     aws.StringValue(t.Name),
				Type:     aws.StringValue(t.Type),
			})
		}
		return true
	})
	return targets, wrap(OpListTargetsForPolicy, err)
}

func (c *AWSClient) ListDelegatedAdministrators(ctx context.Context) ([]models.DelegatedAccount, error) {
	var accounts []models.DelegatedAccount
	err := c.api.ListDelegatedAdministratorsPagesWithContext(ctx, &organizations.ListDelegatedAdministratorsInput{},
		func(page *organizations.ListDelegatedAdministratorsOutput, _ bool) bool {
			for _, a := range page.DelegatedAdministrators {
				accounts = append(accounts, models.DelegatedAccount{
					ID:   aws.StringValue(a.Id),
					Name: aws.StringValue(a.Name),
				})
			}
			return true
		})
	return accounts, wrap(OpListDelegatedAdministrators, err)
}

func (c *AWSClient) ListDelegatedServicesForAccount(ctx context.Context, accountID string) ([]models.DelegatedAdministrator, error) {
	var services []models.DelegatedAdministrator
	err := c.api.ListDelegatedServicesForAccountPagesWithContext(ctx, &organizations.ListDelegatedServicesForAccountInput{
		AccountId: aws.String(accountID),
	}, func(page *organizations.ListDelegatedServicesForAccountOutput, _ bool) bool {
		for _, s := range page.DelegatedServices {
			services = append(services, models.DelegatedAdministrator{
				AccountID:             accountID,
				ServicePrincipal:      aws.StringValue(s.ServicePrincipal),
				DelegationEnabledDate: s.DelegationEnabledDate,
			})
		}
		return true
	})
	return services, wrap(OpListDelegatedServicesForAccount, err)
}

func (c *AWSClient) CreateOrganizationalUnit(ctx context.Context, parentID, name string) (string, error) {
	out, err := c.api.CreateOrganizationalUnitWithContext(ctx, &organizations.CreateOrganizationalUnitInput{
		ParentId: aws.String(parentID),
		Name:     aws.String(name),
	})
	if err != nil {
		return "", wrap(OpCreateOrganizationalUnit, err)
	}
	return aws.StringValue(out.OrganizationalUnit.Id), nil
}

func (c *AWSClient) UpdateOrganizationalUnit(ctx context.Context, ouID, name string) error {
	_, err := c.api.UpdateOrganizationalUnitWithContext(ctx, &organizations.UpdateOrganizationalUnitInput{
		OrganizationalUnitId: aws.String(ouID),
		Name:                 aws.String(name),
	})
	return wrap(OpUpdateOrganizationalUnit, err)
}

func (c *AWSClient) MoveAccount(ctx context.Context, accountID, sourceParentID, destinationParentID string) error {
	_, err := c.api.MoveAccountWithContext(ctx, &organizations.MoveAccountInput{
		AccountId:           aws.String(accountID),
		SourceParentId:      aws.String(sourceParentID),
		DestinationParentId: aws.String(destinationParentID),
	})
	return wrap(OpMoveAccount, err)
}

func (c *AWSClient) CreatePolicy(ctx context.Context, name, description, content string) (string, error) {
	out, err := c.api.CreatePolicyWithContext(ctx, &organizations.CreatePolicyInput{
		Name:        aws.String(name),
		Description: aws.String(description),
		Content:     aws.String(content),
		Type:        aws.String(organizations.PolicyTypeServiceControlPolicy),
	})
	if err != nil {
		return "", wrap(OpCreatePolicy, err)
	}
	return aws.StringValue(out.Policy.PolicySummary.Id), nil
}

func (c *AWSClient) UpdatePolicy(ctx context.Context, policyID string, update PolicyUpdate) error {
	_, err := c.api.UpdatePolicyWithContext(ctx, &organizations.UpdatePolicyInput{
		PolicyId:    aws.String(policyID),
		Name:        update.Name,
		Description: update.Description,
		Content:     update.Content,
	})
	return wrap(OpUpdatePolicy, err)
}

func (c *AWSClient) AttachPolicy(ctx context.Context, policyID, targetID string) error {
	_, err := c.api.AttachPolicyWithContext(ctx, &organizations.AttachPolicyInput{
		PolicyId: aws.String(policyID),
		TargetId: aws.String(targetID),
	})
	return wrap(OpAttachPolicy, err)
}

func (c *AWSClient) DetachPolicy(ctx context.Context, policyID, targetID string) error {
	_, err := c.api.DetachPolicyWithContext(ctx, &organizations.DetachPolicyInput{
		PolicyId: aws.String(policyID),
		TargetId: aws.String(targetID),
	})
	return wrap(OpDetachPolicy, err)
}

func (c *AWSClient) RegisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	_, err := c.api.RegisterDelegatedAdministratorWithContext(ctx, &organizations.RegisterDelegatedAdministratorInput{
		AccountId:        aws.String(accountID),
		ServicePrincipal: aws.String(servicePrincipal),
	})
	return wrap(OpRegisterDelegatedAdministrator, err)
}

func (c *AWSClient) DeregisterDelegatedAdministrator(ctx context.Context, accountID, servicePrincipal string) error {
	_, err := c.api.DeregisterDelegatedAdministratorWithContext(ctx, &organizations.DeregisterDelegatedAdministratorInput{
		AccountId:        aws.String(accountID),
		ServicePrincipal: aws.String(servicePrincipal),
	})
	return wrap(OpDeregisterDelegatedAdministrator, err)
}

func childTypeFor(kind models.NodeKind) (string, error) {
	switch kind {
	case models.KindOrganizationalUnit:
		return organizations.ChildTypeOrganizationalUnit, nil
	case models.KindAccount:
		return organizations.ChildTypeAccount, nil
	default:
		return "", fmt.Errorf("list children: unsupported child kind %q", kind)
	}
}
