// Package plan builds the immutable deletion plan of a teardown run.
//
// A plan is computed once, before anything is deleted, and never changes afterwards. Steps are
// stored in execution order: the entry groups created last come first.
package plan

import (
	"cmp"
	"slices"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/organization"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
)

const (
	DefaultPrefix = "AWSAccelerator"

	pipelineStackPrefix = "PipelineStack"
	prepareStage        = "prepare"
)

// PipelineStackEntry is one stack in one account and region.
type PipelineStackEntry struct {
	StackName  string `json:"stackName"`
	AccountID  string `json:"accountId"`
	Region     string `json:"region"`
	Stage      string `json:"stage,omitempty"`
	Action     string `json:"action,omitempty"`
	StageOrder int    `json:"stageOrder"`
	Order      int    `json:"order"`
	// DeferReaping holds the persistent resources of the entry until every plan step has completed.
	DeferReaping bool `json:"deferReaping,omitempty"`
}

// Rank is the (stage order, order) pair that fixes when the entry may be deleted.
func (entry PipelineStackEntry) Rank() Rank {
	return Rank{StageOrder: entry.StageOrder, Order: entry.Order}
}

// Rank orders entries by creation.
type Rank struct {
	StageOrder int `json:"stageOrder"`
	Order      int `json:"order"`
}

// Compare returns a negative number when rank was created before other.
func (rank Rank) Compare(other Rank) int {
	if c := cmp.Compare(rank.StageOrder, other.StageOrder); c != 0 {
		return c
	}

	return cmp.Compare(rank.Order, other.Order)
}

// Step is a group of entries with the same rank, deleted concurrently.
type Step struct {
	Entries []PipelineStackEntry `json:"entries"`
	Rank
}

// Plan is the full, ordered description of a teardown run.
type Plan struct {
	PipelineStack  *PipelineStackEntry    `json:"pipelineStack,omitempty"`
	InstallerStack *PipelineStackEntry    `json:"installerStack,omitempty"`
	Prefix         string                 `json:"prefix"`
	PipelineName   string                 `json:"pipelineName"`
	Management     string                 `json:"managementAccountId"`
	Executing      string                 `json:"executingAccountId"`
	HomeRegion     string                 `json:"homeRegion"`
	ConfigRepo     string                 `json:"configRepository,omitempty"`
	Scope          string                 `json:"scope"`
	Regions        []string               `json:"regions"`
	Accounts       []organization.Account `json:"accounts"`
	Steps          []Step                 `json:"steps"`
	Bootstrap      []PipelineStackEntry   `json:"bootstrap,omitempty"`
	SweepPrefixes  []string               `json:"sweepPrefixes,omitempty"`
	External       bool                   `json:"external"`
	ReapData       bool                   `json:"reapData"`
}

// Input is everything Build needs.
type Input struct {
	Prefix             string
	PipelineName       string
	ManagementAccount  string
	ExecutingAccount   string
	HomeRegion         string
	InstallerStackName string
	ConfigSource       pipeline.ConfigSource
	Actions            []pipeline.StageAction
	Accounts           []organization.Account
	Regions            []string
	Filter             scope.Filter
	External           bool
	// SkipSweep turns off the log group sweep even when the scope allows it.
	SkipSweep bool
}

// Build cross-joins the resolved actions with the accounts and regions and groups the result into steps.
func Build(in *Input) (*Plan, error) {
	if in.HomeRegion == "" {
		return nil, errors.Errorf("home region is not known")
	}

	if in.ManagementAccount == "" {
		return nil, errors.Errorf("management account is not known")
	}

	prefix := in.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	regions := in.Regions
	if len(regions) == 0 {
		regions = []string{in.HomeRegion}
	}

	p := &Plan{
		Prefix:       prefix,
		PipelineName: in.PipelineName,
		Management:   in.ManagementAccount,
		Executing:    in.ExecutingAccount,
		HomeRegion:   in.HomeRegion,
		Regions:      regions,
		Accounts:     in.Accounts,
		Scope:        in.Filter.Mode.String(),
		External:     in.External,
		ReapData:     in.Filter.ReapsData(),
	}

	var (
		entries       []PipelineStackEntry
		withBootstrap bool
	)

	for _, action := range in.Actions {
		if action.Bootstrap {
			withBootstrap = true
			continue
		}

		if action.ManagementOnly {
			entries = append(entries, newEntry(prefix, action, in.ManagementAccount, in.HomeRegion))
			continue
		}

		if len(in.Accounts) == 0 {
			return nil, errors.Errorf("no organization accounts to delete stack %s from", action.StackNamePrefix)
		}

		for _, account := range in.Accounts {
			for _, region := range regions {
				entries = append(entries, newEntry(prefix, action, account.AccountID, region))
			}
		}
	}

	p.Steps = group(entries)

	if in.Filter.DeletesPipeline() {
		p.PipelineStack = &PipelineStackEntry{
			StackName: PipelineStackName(prefix, in.ExecutingAccount, in.HomeRegion),
			AccountID: in.ExecutingAccount,
			Region:    in.HomeRegion,
		}
	}

	if in.Filter.DeletesInstaller() && in.InstallerStackName != "" {
		p.InstallerStack = &PipelineStackEntry{
			StackName: in.InstallerStackName,
			AccountID: in.ExecutingAccount,
			Region:    in.HomeRegion,
		}
	}

	if in.Filter.DeletesConfigRepository() && in.ConfigSource.Provider != pipeline.ProviderS3 {
		p.ConfigRepo = in.ConfigSource.RepositoryName
	}

	if in.Filter.Sweeps() && !in.SkipSweep {
		p.SweepPrefixes = SweepPrefixes(prefix)
	}

	// Bootstrap stacks are only removed by the management account itself.
	if withBootstrap && !in.External {
		for _, account := range in.Accounts {
			for _, region := range regions {
				p.Bootstrap = append(p.Bootstrap, PipelineStackEntry{
					StackName: prefix + "-" + pipeline.BootstrapStackSuffix,
					AccountID: account.AccountID,
					Region:    region,
					Stage:     pipeline.BootstrapStage,
				})
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func newEntry(prefix string, action pipeline.StageAction, accountID, region string) PipelineStackEntry {
	return PipelineStackEntry{
		StackName:    action.StackName(prefix, accountID, region),
		AccountID:    accountID,
		Region:       region,
		Stage:        action.Stage,
		Action:       action.Name,
		StageOrder:   action.StageOrder,
		Order:        action.Order,
		DeferReaping: action.Stage == prepareStage,
	}
}

// group buckets entries by rank, highest rank first. Entries keep their relative order inside a step.
func group(entries []PipelineStackEntry) []Step {
	var steps []Step

	for _, entry := range entries {
		idx := slices.IndexFunc(steps, func(step Step) bool { return step.Rank == entry.Rank() })
		if idx < 0 {
			steps = append(steps, Step{Rank: entry.Rank()})
			idx = len(steps) - 1
		}

		steps[idx].Entries = append(steps[idx].Entries, entry)
	}

	slices.SortStableFunc(steps, func(a, b Step) int {
		return b.Rank.Compare(a.Rank)
	})

	return steps
}

// Validate checks that steps run strictly from the highest rank down and that no stack appears twice.
func (p *Plan) Validate() error {
	seen := make(map[string]bool)

	for i, step := range p.Steps {
		if i > 0 && p.Steps[i-1].Rank.Compare(step.Rank) <= 0 {
			return errors.Errorf("plan step %d (%d,%d) is not ordered after step %d", i, step.StageOrder, step.Order, i-1)
		}

		for _, entry := range step.Entries {
			if entry.Rank() != step.Rank {
				return errors.Errorf("stack %s has rank (%d,%d) inside step (%d,%d)", entry.StackName, entry.StageOrder, entry.Order, step.StageOrder, step.Order)
			}

			key := entry.AccountID + "/" + entry.Region + "/" + entry.StackName
			if seen[key] {
				return errors.Errorf("stack %s is planned twice in %s/%s", entry.StackName, entry.AccountID, entry.Region)
			}

			seen[key] = true
		}
	}

	return nil
}

// Entries returns every step entry in execution order.
func (p *Plan) Entries() []PipelineStackEntry {
	var entries []PipelineStackEntry

	for _, step := range p.Steps {
		entries = append(entries, step.Entries...)
	}

	return entries
}

// PipelineStackName returns the name of the stack that deployed the pipeline.
func PipelineStackName(prefix, accountID, region string) string {
	return prefix + "-" + pipelineStackPrefix + "-" + accountID + "-" + region
}

// PipelineName returns the default pipeline name for a prefix.
func PipelineName(prefix string) string {
	return prefix + "-Pipeline"
}

// SweepPrefixes returns the log group name prefixes swept after the stacks are gone.
func SweepPrefixes(prefix string) []string {
	return []string{
		"/aws/lambda/" + prefix + "-",
		"/aws/codebuild/" + prefix + "-",
		prefix + "-",
	}
}
