// internal/secrets/provider.go
package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"github.com/licenseforge/licenseforge/internal/config"
)

// Provider supplies the master secret the crypto store derives its keys
// from. Resolved once at startup; a missing secret is fatal, the service
// must not run with degraded crypto.
type Provider interface {
	MasterSecret() ([]byte, error)
}

// NewProvider picks a backend from configuration: "env", "file" or
// "aws" (AWS Secrets Manager).
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Secrets.Provider {
	case "env":
		return &envProvider{variable: cfg.Secrets.EnvVariable}, nil
	case "file":
		return &fileProvider{path: cfg.Secrets.FilePath}, nil
	case "aws":
		return newAWSProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown secret provider %q", cfg.Secrets.Provider)
	}
}

type envProvider struct {
	variable string
}

func (p *envProvider) MasterSecret() ([]byte, error) {
	value := os.Getenv(p.variable)
	if value == "" {
		return nil, fmt.Errorf("secret environment variable %s is not set", p.variable)
	}
	return []byte(value), nil
}

type fileProvider struct {
	path string
}

func (p *fileProvider) MasterSecret() ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file %s: %w", p.path, err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return nil, fmt.Errorf("secret file %s is empty", p.path)
	}
	return []byte(secret), nil
}

type awsProvider struct {
	client   *secretsmanager.SecretsManager
	secretID string
}

func newAWSProvider(cfg *config.Config) (Provider, error) {
	awsConfig := &aws.Config{Region: aws.String(cfg.AWS.Region)}
	if cfg.AWS.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &awsProvider{
		client:   secretsmanager.New(sess),
		secretID: cfg.Secrets.AWSSecretID,
	}, nil
}

func (p *awsProvider) MasterSecret() ([]byte, error) {
	output, err := p.client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secret %s: %w", p.secretID, err)
	}

	if output.SecretString != nil && *output.SecretString != "" {
		return []byte(*output.SecretString), nil
	}
	if len(output.SecretBinary) > 0 {
		return output.SecretBinary, nil
	}
	return nil, fmt.Errorf("secret %s has no value", p.secretID)
}
