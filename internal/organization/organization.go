// Package organization lists the member accounts the landing zone was deployed to.
package organization

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// Account is one member account of the organization.
type Account struct {
	AccountName string
	AccountID   string
}

// ListAccounts returns the active accounts of the organization in listing order.
func ListAccounts(ctx context.Context, l log.Logger, client awshelper.ListAccountsAPI) ([]Account, error) {
	var accounts []Account

	paginator := organizations.NewListAccountsPaginator(client, &organizations.ListAccountsInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Errorf("Error listing organization accounts: %w", err)
		}

		for _, account := range page.Accounts {
			if account.Status != orgtypes.AccountStatusActive {
				l.Debugf("Skipping account %s (%s): status %s", aws.ToString(account.Id), aws.ToString(account.Name), account.Status)
				continue
			}

			accounts = append(accounts, Account{
				AccountName: aws.ToString(account.Name),
				AccountID:   aws.ToString(account.Id),
			})
		}
	}

	return accounts, nil
}

// IDs returns the account ids.
func IDs(accounts []Account) []string {
	ids := make([]string, 0, len(accounts))

	for _, account := range accounts {
		ids = append(ids, account.AccountID)
	}

	return ids
}
