package remote

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
)

// SessionConfig configures the AWS session shared by the organizations adapter and the SSM marker store
type SessionConfig struct {
	Region     string
	MaxRetries int
}

// NewSession creates a base session from the default credential chain
func NewSession(cfg SessionConfig) (*session.Session, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config: aws.Config{
			Region:     aws.String(cfg.Region),
			MaxRetries: aws.Int(cfg.MaxRetries),
		},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return sess, nil
}

// AssumeRoleConfig returns a client config that acts as roleARN; empty roleARN keeps the base credentials
func AssumeRoleConfig(sess *session.Session, roleARN string) *aws.Config {
	if roleARN == "" {
		return aws.NewConfig()
	}
	return aws.NewConfig().WithCredentials(stscreds.NewCredentials(sess, roleARN, func(p *stscreds.AssumeRoleProvider) {
		p.RoleSessionName = "orgsync"
	}))
}
