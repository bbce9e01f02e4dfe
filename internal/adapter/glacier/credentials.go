package glacier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Credentials is the on-disk static credentials format.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Region          string `json:"region"`
}

// LoadCredentials reads a credentials file. Both keys are required; the
// region is optional.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, fmt.Errorf("credentials %s: accessKeyId and secretAccessKey are required", path)
	}
	return &creds, nil
}
