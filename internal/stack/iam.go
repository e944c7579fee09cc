package stack

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const iamRoleResourceType = "AWS::IAM::Role"

// DetachRolePolicies removes every managed and inline policy from a role so the stack deleting it does not
// stall on policies attached outside of the template. A role that is already gone is clean.
func DetachRolePolicies(ctx context.Context, l log.Logger, client awshelper.IAMAPI, roleName string) error {
	l = l.WithField("role", roleName)

	attached := iam.NewListAttachedRolePoliciesPaginator(client, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(roleName)})

	for attached.HasMorePages() {
		page, err := attached.NextPage(ctx)
		if err != nil {
			if awshelper.IsIAMNoSuchEntity(err) {
				return nil
			}

			return errors.Errorf("failed to list attached policies of role %s: %w", roleName, err)
		}

		for _, policy := range page.AttachedPolicies {
			arn := aws.ToString(policy.PolicyArn)

			l.Debugf("Detaching policy %s from role %s", arn, roleName)

			if _, err := client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
				RoleName:  aws.String(roleName),
				PolicyArn: aws.String(arn),
			}); err != nil && !awshelper.IsIAMNoSuchEntity(err) {
				return errors.Errorf("failed to detach policy %s from role %s: %w", arn, roleName, err)
			}
		}
	}

	inline := iam.NewListRolePoliciesPaginator(client, &iam.ListRolePoliciesInput{RoleName: aws.String(roleName)})

	for inline.HasMorePages() {
		page, err := inline.NextPage(ctx)
		if err != nil {
			if awshelper.IsIAMNoSuchEntity(err) {
				return nil
			}

			return errors.Errorf("failed to list inline policies of role %s: %w", roleName, err)
		}

		for _, name := range page.PolicyNames {
			l.Debugf("Deleting inline policy %s of role %s", name, roleName)

			if _, err := client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(roleName),
				PolicyName: aws.String(name),
			}); err != nil && !awshelper.IsIAMNoSuchEntity(err) {
				return errors.Errorf("failed to delete inline policy %s of role %s: %w", name, roleName, err)
			}
		}
	}

	l.Infof("Detached policies of role %s", roleName)

	return nil
}
