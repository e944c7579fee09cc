package pipeline_test

import "github.com/aws/aws-sdk-go-v2/aws"

func awsConfig() aws.Config {
	return aws.Config{Region: region}
}
