// Package globalconfig reads the enabled regions of the landing zone from global-config.yaml.
package globalconfig

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// FileName is the path of the global configuration inside the config repository.
const FileName = "global-config.yaml"

// GlobalConfig is the subset of the global configuration the teardown needs.
type GlobalConfig struct {
	HomeRegion                  string   `yaml:"homeRegion"`
	ManagementAccountAccessRole string   `yaml:"managementAccountAccessRole"`
	EnabledRegions              []string `yaml:"enabledRegions"`
}

// Regions returns the enabled regions with the home region first and duplicates removed.
func (cfg *GlobalConfig) Regions() []string {
	var regions []string

	if cfg.HomeRegion != "" {
		regions = append(regions, cfg.HomeRegion)
	}

	for _, region := range cfg.EnabledRegions {
		if region != "" && !slices.Contains(regions, region) {
			regions = append(regions, region)
		}
	}

	return regions
}

// Parse decodes global-config.yaml.
func Parse(data []byte) (*GlobalConfig, error) {
	var cfg GlobalConfig

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("Error parsing %s: %w", FileName, err)
	}

	if cfg.HomeRegion == "" {
		return nil, errors.Errorf("%s does not define homeRegion", FileName)
	}

	return &cfg, nil
}

// Fetcher reads the global config from the config source of the pipeline.
type Fetcher struct {
	CodeCommit awshelper.GetFileAPI
	S3         awshelper.GetObjectAPI
}

// Fetch downloads and parses the global configuration.
func (f *Fetcher) Fetch(ctx context.Context, l log.Logger, source pipeline.ConfigSource) (*GlobalConfig, error) {
	var (
		data []byte
		err  error
	)

	switch source.Provider {
	case pipeline.ProviderS3:
		l.Debugf("Reading %s from s3://%s/%s", FileName, source.Bucket, source.ObjectKey)

		data, err = f.fromS3(ctx, source)
	default:
		l.Debugf("Reading %s from repository %s (%s)", FileName, source.RepositoryName, source.Branch)

		data, err = f.fromCodeCommit(ctx, source)
	}

	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func (f *Fetcher) fromCodeCommit(ctx context.Context, source pipeline.ConfigSource) ([]byte, error) {
	if source.RepositoryName == "" {
		return nil, errors.Errorf("pipeline does not declare a configuration repository")
	}

	input := &codecommit.GetFileInput{
		RepositoryName: aws.String(source.RepositoryName),
		FilePath:       aws.String(FileName),
	}

	if source.Branch != "" {
		input.CommitSpecifier = aws.String(source.Branch)
	}

	out, err := f.CodeCommit.GetFile(ctx, input)
	if awshelper.IsFileNotFound(err) {
		return nil, errors.New(ConfigNotFoundError{Location: "repository " + source.RepositoryName})
	}

	if err != nil {
		return nil, errors.Errorf("Error reading %s from %s: %w", FileName, source.RepositoryName, err)
	}

	return out.FileContent, nil
}

// fromS3 reads the configuration object, which is either the YAML file or a zip archive holding it.
func (f *Fetcher) fromS3(ctx context.Context, source pipeline.ConfigSource) ([]byte, error) {
	key := source.ObjectKey
	if key == "" {
		key = FileName
	}

	out, err := f.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(source.Bucket),
		Key:    aws.String(key),
	})
	if awshelper.IsFileNotFound(err) {
		return nil, errors.New(ConfigNotFoundError{Location: "s3://" + source.Bucket + "/" + key})
	}

	if err != nil {
		return nil, errors.Errorf("Error reading s3://%s/%s: %w", source.Bucket, key, err)
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.New(err)
	}

	if !strings.HasSuffix(key, ".zip") {
		return data, nil
	}

	return fromZip(data)
}

func fromZip(data []byte) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.New(err)
	}

	for _, file := range archive.File {
		if path.Base(file.Name) != FileName {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, errors.New(err)
		}
		defer rc.Close() //nolint:errcheck

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.New(err)
		}

		return content, nil
	}

	return nil, errors.New(ConfigNotFoundError{Location: "configuration archive"})
}
