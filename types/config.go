/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose  bool           `mapstructure:"verbose"`
	Config   string         `mapstructure:"config"`
	LogLevel string         `mapstructure:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	LogJSON  bool           `mapstructure:"logJson"`
	Data     DataConfig     `mapstructure:"data" validate:"required"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Printer  PrinterConfig  `mapstructure:"printer" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// DataConfig holds persistence settings.
type DataConfig struct {
	// File is the path to the SQLite database holding tasks and the
	// mailbox cursor. ":memory:" is accepted for tests.
	File string `mapstructure:"file" validate:"required"`
}

// MailboxConfig holds Gmail access settings.
type MailboxConfig struct {
	CredentialsFile string `mapstructure:"credentialsFile" validate:"required"`
	TokenFile       string `mapstructure:"tokenFile" validate:"required"`
	// Query narrows which messages are considered, e.g. "in:inbox -in:draft".
	Query string `mapstructure:"query"`
	// FetchLimit caps how many messages one cycle pulls from the mailbox.
	FetchLimit int `mapstructure:"fetchLimit" validate:"omitempty,min=1,max=500"`
}

// LLMConfig holds configuration for the extraction model
type LLMConfig struct {
	Provider        string  `mapstructure:"provider" validate:"omitempty,oneof=openai"`
	ModelName       string  `mapstructure:"modelName" validate:"omitempty,min=1"`
	APIKey          string  `mapstructure:"apiKey" validate:"omitempty,min=1"`
	MaxOutputTokens int     `mapstructure:"maxOutputTokens" validate:"omitempty,min=1"`
	Temperature     float64 `mapstructure:"temperature" validate:"omitempty,min=0,max=2"`
	// RequestTimeoutSeconds controls the HTTP client timeout for LLM calls
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds" validate:"omitempty,min=5,max=600"`
	// MaxRetries controls how many automatic retries on recoverable errors (timeouts, temp rejection)
	MaxRetries int `mapstructure:"maxRetries" validate:"omitempty,min=0,max=5"`
	// Debug enables extra request/response logging within the LLM provider (generally tied to --verbose)
	Debug bool `mapstructure:"debug"`
}

// TrackerConfig holds Google Tasks settings for completion reconciliation.
type TrackerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TaskListID is the Google Tasks list to mirror records into.
	// "@default" targets the account's default list.
	TaskListID string `mapstructure:"taskListId"`
}

// PrinterConfig holds thermal printer output settings.
type PrinterConfig struct {
	// Mode selects the adapter: "network" for a raw ESC/POS socket,
	// "file" for a plain-text spool file.
	Mode string `mapstructure:"mode" validate:"required,oneof=network file"`
	// Address is host:port of the printer when mode is "network".
	Address string `mapstructure:"address" validate:"required_if=Mode network"`
	// OutputFile receives rendered receipts when mode is "file".
	OutputFile string `mapstructure:"outputFile"`
	// Width is the printable character width; 32 suits 58mm paper.
	Width          int `mapstructure:"width" validate:"omitempty,min=20,max=64"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds" validate:"omitempty,min=1,max=60"`
}

// PipelineConfig holds orchestrator scheduling settings.
type PipelineConfig struct {
	IntervalSeconds int `mapstructure:"intervalSeconds" validate:"omitempty,min=5"`
	// BatchSize caps how many pending tasks one dispatch cycle prints.
	BatchSize int `mapstructure:"batchSize" validate:"omitempty,min=1,max=100"`
	// DueGraceHours is how far in the past an extracted due date may lie
	// (relative to the email's receipt) before the candidate is discarded.
	DueGraceHours int `mapstructure:"dueGraceHours" validate:"omitempty,min=0,max=168"`
}

// WebhookConfig holds settings for the missed-call webhook server.
type WebhookConfig struct {
	Addr string `mapstructure:"addr"`
}
