package uninstall_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/internal/fakeaws"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
	"github.com/gruntwork-io/lz-teardown/internal/uninstall"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const (
	mgmtAccount     = "111111111111"
	externalAccount = "999999999999"
	homeRegion      = "us-east-1"
	otherRegion     = "eu-west-1"
	configRepo      = "aws-accelerator-config"
	roleName        = "AWSControlTowerExecution"
	prefix          = "AWSAccelerator"
)

var (
	memberAccounts = []string{"222222222222", "333333333333"}
	regions        = []string{homeRegion, otherRegion}

	managementStages = []string{"prepare", "accounts", "organizations", "finalize"}
	memberStages     = []string{"key", "logging", "security-audit", "network-vpc", "network-prep", "security", "operations"}
)

const globalConfig = `
homeRegion: us-east-1
managementAccountAccessRole: AWSControlTowerExecution
enabledRegions:
  - us-east-1
  - eu-west-1
`

// landingZone is a deployed accelerator in a fake cloud.
type landingZone struct {
	cloud *fakeaws.Cloud
	// pipelineAccount runs the pipeline and the teardown.
	pipelineAccount string
}

func allAccounts() []string {
	return append([]string{mgmtAccount}, memberAccounts...)
}

func stackName(stage, account, region string) string {
	return fmt.Sprintf("%s-%s-%s-%s", prefix, pipeline.StackNamePrefix(stage), account, region)
}

func bucketName(account, region string) string {
	return "central-logs-" + account + "-" + region
}

// newLandingZone deploys every stack of the accelerator. The teardown runs as pipelineAccount.
func newLandingZone(t *testing.T, pipelineAccount string) *landingZone {
	t.Helper()

	cloud := fakeaws.New(pipelineAccount)

	for _, account := range allAccounts() {
		cloud.Accounts = append(cloud.Accounts, fakeaws.Account{ID: account, Name: "account-" + account})
	}

	decl := fakeaws.BuildPipeline(prefix+"-Pipeline", fakeaws.LandingZoneStages(mgmtAccount, roleName, configRepo)...)
	cloud.AddPipeline(pipelineAccount, homeRegion, decl)
	cloud.AddRepository(pipelineAccount, homeRegion, configRepo, map[string][]byte{"global-config.yaml": []byte(globalConfig)})

	for _, stage := range managementStages {
		var resources []cfntypes.StackResourceSummary
		if stage == "prepare" {
			resources = append(resources, fakeaws.Resource("AWS::KMS::Key", "InstallerKey", "prepare-key"))
			cloud.AddKey(mgmtAccount, homeRegion, "prepare-key")
		}

		cloud.AddStack(mgmtAccount, homeRegion, &fakeaws.Stack{Name: stackName(stage, mgmtAccount, homeRegion), Resources: resources})
	}

	for _, account := range allAccounts() {
		for _, region := range regions {
			for _, stage := range memberStages {
				var resources []cfntypes.StackResourceSummary

				if stage == "logging" {
					bucket := bucketName(account, region)
					cloud.AddBucket(account, region, bucket, 30, 5)
					cloud.AddLogGroup(account, region, "/lz/logging-"+region)
					resources = append(resources,
						fakeaws.Resource("AWS::S3::Bucket", "CentralLogs", bucket),
						fakeaws.Resource("AWS::Logs::LogGroup", "Logs", "/lz/logging-"+region),
					)
				}

				cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName(stage, account, region), Resources: resources})
			}

			cloud.AddStack(account, region, &fakeaws.Stack{Name: prefix + "-CDKToolkit"})
			cloud.AddLogGroup(account, region, "/aws/lambda/"+prefix+"-Handler")
			cloud.AddLogGroup(account, region, "unrelated-group")
		}
	}

	cloud.AddStack(pipelineAccount, homeRegion, &fakeaws.Stack{Name: fmt.Sprintf("%s-PipelineStack-%s-%s", prefix, pipelineAccount, homeRegion)})
	cloud.AddStack(pipelineAccount, homeRegion, &fakeaws.Stack{Name: options.DefaultInstallerStackName})

	return &landingZone{cloud: cloud, pipelineAccount: pipelineAccount}
}

func newOptions(t *testing.T, modify func(opts *options.TeardownOptions)) *options.TeardownOptions {
	t.Helper()

	opts := options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, io.Discard)
	opts.HomeRegion = homeRegion
	opts.PollInterval = 0
	opts.RetrySleep = 0
	opts.MaxPolls = 5
	opts.MaxRetries = 1
	opts.Parallelism = 4

	modify(opts)
	require.NoError(t, opts.ValidateScope())

	return opts
}

func (lz *landingZone) coordinator(t *testing.T, opts *options.TeardownOptions) *uninstall.Coordinator {
	t.Helper()

	c, err := uninstall.NewCoordinator(aws.Config{Region: homeRegion}, lz.cloud.Factory(), opts)
	require.NoError(t, err)

	return c
}

func logger() log.Logger {
	return log.New(log.WithOutput(io.Discard))
}

func fullDestroy(opts *options.TeardownOptions) {
	opts.FullDestroy = true
}
