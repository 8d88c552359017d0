package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/config"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive/google"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage/openai"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/postgres"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample ingestpipeline configuration file with placeholder
values for every required field.

By default, the file is created at $XDG_CONFIG_HOME/ingestpipeline/config.yaml.
Use --config to choose a different path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	sample := sampleConfig()
	if err := config.SaveConfig(&sample, path); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}

	fmt.Printf("Sample configuration written to: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Fill in state_store, object_store, drive, and vector credentials")
	fmt.Printf("  2. Run the pipeline: ingestpipeline full --config %s\n", path)
	return nil
}

// sampleConfig returns a Config with placeholder values for every required
// field, so a freshly written file is self-documenting rather than blank.
func sampleConfig() config.Config {
	return config.Config{
		Logging:   config.LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Telemetry: config.TelemetryConfig{Enabled: false, Endpoint: "localhost:4317", Insecure: true, SampleRate: 1.0},
		StateStore: postgres.Config{
			Host: "localhost", Port: 5432, Database: "ingest", User: "ingest",
			Password: "changeme", SSLMode: "prefer",
		},
		ObjectStore: config.ObjectStoreConfig{
			Region: "us-east-1", Bucket: "ingest-pipeline",
			AccessKeyID: "changeme", SecretAccessKey: "changeme",
		},
		Drive: google.Config{
			ServiceAccountFile: "/etc/ingestpipeline/drive-service-account.json",
			RootFolderID:       "changeme",
			AcceptedExtensions: []string{".pdf", ".docx", ".pptx", ".xlsx"},
		},
		Vector: openai.Config{APIKey: "changeme"},
		Index:  config.IndexConfig{VectorStoreID: "changeme"},
	}
}
