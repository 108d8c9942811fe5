package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	AppName  string `yaml:"app_name" validate:"required"`
	Timezone string `yaml:"timezone"`

	JiraURL   string `yaml:"jira_url" validate:"required,url"`
	JiraUser  string `yaml:"jira_user" validate:"required"`
	JiraToken string `yaml:"jira_token" validate:"required"`

	JiraProjects       []string `yaml:"jira_projects" validate:"required,min=1"`
	JiraIssueType      string   `yaml:"jira_issue_type" validate:"required"`
	JiraParentStatuses []string `yaml:"jira_parent_statuses" validate:"required,min=1"`
	JiraChildStatuses  []string `yaml:"jira_child_statuses" validate:"required,min=1"`
	JiraChildLabel     string   `yaml:"jira_child_label"`
	JiraText           string   `yaml:"jira_text"`
	StartDateField     string   `yaml:"jira_start_date_field" validate:"required"`
	EndDateField       string   `yaml:"jira_end_date_field" validate:"required"`
	ProcessedLabel     string   `yaml:"processed_label" validate:"required"`
	CommentMention     string   `yaml:"comment_mention"`

	StorageRoot   string   `yaml:"storage_root" validate:"required"`
	FileExtension string   `yaml:"file_extension" validate:"startswith=."`
	RequiredTags  []string `yaml:"required_tags" validate:"required,min=1,unique"`

	ResultsPath      string `yaml:"results_path" validate:"required"`
	LogPath          string `yaml:"log_path" validate:"required"`
	LogRetentionDays int    `yaml:"log_retention_days" validate:"gte=1"`
	LogLevel         string `yaml:"log_level" validate:"oneof=debug info warn error"`

	DBPath          string `yaml:"db_path"`
	NameRulesPath   string `yaml:"name_rules_path"`
	ColumnRulesPath string `yaml:"column_rules_path"`
	Schedule        string `yaml:"schedule"`

	SlackBotToken string `yaml:"slack_bot_token"`
	SlackChannel  string `yaml:"slack_channel_id" validate:"required_with=SlackBotToken"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds" validate:"gte=5"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads path (or CONFIG_PATH, or ./config.yaml), applies
// environment overrides and defaults, and validates the result. A missing
// file is not an error so deployments can configure purely through env.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	configPath := strings.TrimSpace(path)
	if configPath == "" {
		configPath = "config.yaml"
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			configPath = envPath
		}
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		return cfg, errors.Wrapf(err, "reading %s", configPath)
	}

	envOverride(&cfg.AppName, "APP_NAME")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.JiraURL, "JIRA_URL")
	envOverride(&cfg.JiraUser, "JIRA_USER")
	envOverride(&cfg.JiraToken, "JIRA_TOKEN")
	envOverrideList(&cfg.JiraProjects, "JIRA_PROJECTS")
	envOverride(&cfg.JiraIssueType, "JIRA_ISSUE_TYPE")
	envOverrideList(&cfg.JiraParentStatuses, "JIRA_PARENT_STATUSES")
	envOverrideList(&cfg.JiraChildStatuses, "JIRA_CHILD_STATUSES")
	envOverrideAllowEmpty(&cfg.JiraChildLabel, "JIRA_CHILD_LABEL")
	envOverrideAllowEmpty(&cfg.JiraText, "JIRA_TEXT")
	envOverride(&cfg.StartDateField, "JIRA_START_DATE_FIELD")
	envOverride(&cfg.EndDateField, "JIRA_END_DATE_FIELD")
	envOverride(&cfg.ProcessedLabel, "PROCESSED_LABEL")
	envOverrideAllowEmpty(&cfg.CommentMention, "COMMENT_MENTION")
	envOverride(&cfg.StorageRoot, "STORAGE_ROOT")
	envOverride(&cfg.FileExtension, "FILE_EXTENSION")
	envOverrideList(&cfg.RequiredTags, "REQUIRED_TAGS")
	envOverride(&cfg.ResultsPath, "RESULTS_PATH")
	envOverride(&cfg.LogPath, "LOG_PATH")
	if err := envOverrideInt(&cfg.LogRetentionDays, "LOG_RETENTION_DAYS"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.NameRulesPath, "NAME_RULES_PATH")
	envOverride(&cfg.ColumnRulesPath, "COLUMN_RULES_PATH")
	envOverrideAllowEmpty(&cfg.Schedule, "SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannel, "SLACK_CHANNEL_ID")
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid timezone '%s'", cfg.Timezone)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "turn_post_processing"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if len(cfg.JiraProjects) == 0 {
		cfg.JiraProjects = []string{"CAM"}
	}
	if cfg.ProcessedLabel == "" {
		cfg.ProcessedLabel = "ZipFile_Created"
	}
	if cfg.StartDateField == "" {
		cfg.StartDateField = "customfield_10431"
	}
	if cfg.EndDateField == "" {
		cfg.EndDateField = "customfield_10418"
	}
	if cfg.FileExtension == "" {
		cfg.FileExtension = ".csv"
	}
	if len(cfg.RequiredTags) == 0 {
		cfg.RequiredTags = []string{"id", "upc"}
	}
	if cfg.LogRetentionDays == 0 {
		cfg.LogRetentionDays = 30
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./turnpp.db"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	cfg.StorageRoot = withTrailingSlash(cfg.StorageRoot)
	cfg.ResultsPath = withTrailingSlash(cfg.ResultsPath)
	cfg.LogPath = withTrailingSlash(cfg.LogPath)
}

var validate = func() func(Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return yamlName(f.Tag.Get("yaml"), f.Name)
	})
	return func(cfg Config) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validating config")
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required", "required_with":
				msgs = append(msgs, fmt.Sprintf("required config '%s' is not set (via config.yaml or env var)", fe.Field()))
			default:
				msgs = append(msgs, fmt.Sprintf("invalid %s '%v': failed %s", fe.Field(), fe.Value(), fe.Tag()))
			}
		}
		return errors.Newf("config: %s", strings.Join(msgs, "; "))
	}
}()

func yamlName(tag, fallback string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "" || name == "-" {
		return fallback
	}
	return name
}

func withTrailingSlash(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrapf(err, "invalid %s '%s'", envKey, val)
		}
		*field = parsed
	}
	return nil
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			*field = append(*field, item)
		}
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}
