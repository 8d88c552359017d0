package google

import (
	"fmt"
	"time"
)

// Config configures the Google Drive-backed Store.
type Config struct {
	// ServiceAccountFile is a path to a service-account JSON key with
	// drive.readonly scope.
	ServiceAccountFile string `mapstructure:"service_account_file" validate:"required"`

	// RootFolderID is the drive folder Enumerate descends from.
	RootFolderID string `mapstructure:"root_folder_id" validate:"required"`

	// AcceptedExtensions gates which non-native files Enumerate yields,
	// matched case-insensitively including the leading dot (e.g. ".pdf").
	// Native-format items are always yielded regardless of this set.
	AcceptedExtensions []string `mapstructure:"accepted_extensions" validate:"required,min=1"`

	// RequestTimeout bounds each individual Drive API call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// PageSize is the Drive files.list page size.
	PageSize int64 `mapstructure:"page_size"`

	// ImpersonateSubject, when set, has the service account impersonate
	// this user via domain-wide delegation instead of accessing Drive as
	// itself. Required when RootFolderID lives in a user's My Drive
	// rather than a shared drive the service account already has access
	// to.
	ImpersonateSubject string `mapstructure:"impersonate_subject"`
}

// ApplyDefaults fills unset fields with the pipeline's defaults.
func (c *Config) ApplyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.PageSize == 0 {
		c.PageSize = 100
	}
}

// Validate reports configuration errors beyond what struct tags catch.
func (c *Config) Validate() error {
	if c.ServiceAccountFile == "" {
		return fmt.Errorf("google drive: service_account_file is required")
	}
	if c.RootFolderID == "" {
		return fmt.Errorf("google drive: root_folder_id is required")
	}
	if len(c.AcceptedExtensions) == 0 {
		return fmt.Errorf("google drive: accepted_extensions must not be empty")
	}
	return nil
}
