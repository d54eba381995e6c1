// internal/services/export_service.go
package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/repository"
)

// ExportService writes license batches to CSV and uploads them to S3.
// Without AWS credentials it still builds the CSV, for local use.
type ExportService struct {
	licenseService *LicenseService
	s3Client       *s3.S3
	config         *config.Config
}

type ExportRequest struct {
	Filter      repository.LicenseFilter
	IncludeKeys bool // decrypt and include plaintext keys
}

type ExportResult struct {
	FileID   string `json:"file_id"`
	Location string `json:"location,omitempty"`
	Rows     int    `json:"rows"`
	CSV      []byte `json:"-"`
}

func NewExportService(licenseService *LicenseService, cfg *config.Config) (*ExportService, error) {
	svc := &ExportService{licenseService: licenseService, config: cfg}

	if cfg.AWS.AccessKeyID == "" {
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// Export builds the CSV and, when S3 is configured, uploads it. A key
// that cannot be decrypted is exported as a placeholder instead of
// aborting the batch.
func (s *ExportService) Export(req ExportRequest) (*ExportResult, error) {
	licenses, _, err := s.licenseService.Query(req.Filter)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	header := []string{"id", "status", "source", "order_id", "product_id", "user_id", "expires_at", "activations_limit"}
	if req.IncludeKeys {
		header = append(header, "key")
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range licenses {
		license := &licenses[i]
		row := []string{
			strconv.FormatInt(license.ID, 10),
			string(license.Status),
			string(license.Source),
			formatNullableID(license.OrderID),
			formatNullableID(license.ProductID),
			formatNullableID(license.UserID),
			formatNullableTime(license.ExpiresAt),
			formatNullableInt(license.ActivationsLimit),
		}
		if req.IncludeKeys {
			key, err := s.licenseService.RevealKey(license)
			if err != nil {
				logrus.WithError(err).WithField("license_id", license.ID).
					Warn("Exporting undecryptable key as placeholder")
				key = "<unreadable>"
			}
			row = append(row, key)
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to finish CSV: %w", err)
	}

	result := &ExportResult{
		FileID: uuid.New().String(),
		Rows:   len(licenses),
		CSV:    buf.Bytes(),
	}

	if s.s3Client != nil {
		key := fmt.Sprintf("exports/licenses-%s-%s.csv",
			time.Now().UTC().Format("20060102-150405"), result.FileID)

		_, err := s.s3Client.PutObject(&s3.PutObjectInput{
			Bucket:      aws.String(s.config.AWS.S3Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(result.CSV),
			ContentType: aws.String("text/csv"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload export: %w", err)
		}
		result.Location = fmt.Sprintf("s3://%s/%s", s.config.AWS.S3Bucket, key)
	}

	return result, nil
}

func formatNullableID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func formatNullableInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatNullableTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
