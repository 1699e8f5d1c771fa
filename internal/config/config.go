package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/daywalker90/summars-sub000/internal/summary"
)

var errInvalidConfig = errors.New("invalid config")

// Config is the full, validated daemon configuration. The core only ever
// sees values that passed Validate.
type Config struct {
	RPCPath string `mapstructure:"rpc_path"`
	DataDir string `mapstructure:"data_dir"`

	ForwardHours int `mapstructure:"forward_hours"`
	PayHours     int `mapstructure:"pay_hours"`
	InvoiceHours int `mapstructure:"invoice_hours"`

	PageSize int `mapstructure:"page_size"`

	MaxForwards int `mapstructure:"max_forwards"`
	MaxPays     int `mapstructure:"max_pays"`
	MaxInvoices int `mapstructure:"max_invoices"`

	FilterAmountMsat int64 `mapstructure:"filter_amount_msat"`
	FilterFeeMsat    int64 `mapstructure:"filter_fee_msat"`

	ShowSelfPays bool   `mapstructure:"show_self_pays"`
	PingPeers    bool   `mapstructure:"ping_peers"`
	SortBy       string `mapstructure:"sort_by"`
	SortDesc     bool   `mapstructure:"sort_desc"`

	AvailabilityIntervalSeconds int `mapstructure:"availability_interval_seconds"`
	AvailabilityWindowHours     int `mapstructure:"availability_window_hours"`

	ArchiveDSN string `mapstructure:"archive_dsn"`
	ListenAddr string `mapstructure:"listen_addr"`

	sortColumn summary.SortColumn
}

// Load reads the configuration from the given file (optional), environment
// (SUMMARS_ prefix) and defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SUMMARS")
	v.AutomaticEnv()

	v.SetDefault("rpc_path", "/root/.lightning/bitcoin/lightning-rpc")
	v.SetDefault("data_dir", ".")
	v.SetDefault("forward_hours", 24)
	v.SetDefault("pay_hours", 24)
	v.SetDefault("invoice_hours", 24)
	v.SetDefault("page_size", 500)
	v.SetDefault("max_forwards", 0)
	v.SetDefault("max_pays", 0)
	v.SetDefault("max_invoices", 0)
	v.SetDefault("filter_amount_msat", -1)
	v.SetDefault("filter_fee_msat", -1)
	v.SetDefault("show_self_pays", false)
	v.SetDefault("ping_peers", false)
	v.SetDefault("sort_by", "alias")
	v.SetDefault("sort_desc", false)
	v.SetDefault("availability_interval_seconds", 300)
	v.SetDefault("availability_window_hours", 72)
	v.SetDefault("archive_dsn", "")
	v.SetDefault("listen_addr", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.RPCPath == "" {
		return fmt.Errorf("%w: rpc_path is required", errInvalidConfig)
	}
	if c.ForwardHours < 0 || c.PayHours < 0 || c.InvoiceHours < 0 {
		return fmt.Errorf("%w: window hours must not be negative", errInvalidConfig)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page_size must be positive", errInvalidConfig)
	}
	if c.MaxForwards < 0 || c.MaxPays < 0 || c.MaxInvoices < 0 {
		return fmt.Errorf("%w: limits must not be negative", errInvalidConfig)
	}
	if c.AvailabilityIntervalSeconds <= 0 {
		return fmt.Errorf("%w: availability_interval_seconds must be positive", errInvalidConfig)
	}
	if c.AvailabilityWindowHours <= 0 {
		return fmt.Errorf("%w: availability_window_hours must be positive", errInvalidConfig)
	}
	if time.Duration(c.AvailabilityWindowHours)*time.Hour < c.AvailabilityInterval() {
		return fmt.Errorf("%w: availability window below interval", errInvalidConfig)
	}
	col, err := summary.ParseSortColumn(c.SortBy)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	c.sortColumn = col
	return nil
}

func (c *Config) AvailabilityInterval() time.Duration {
	return time.Duration(c.AvailabilityIntervalSeconds) * time.Second
}

func (c *Config) AvailabilityWindow() time.Duration {
	return time.Duration(c.AvailabilityWindowHours) * time.Hour
}

// SummaryOptions maps the validated config onto the report engine options.
func (c *Config) SummaryOptions() summary.Options {
	return summary.Options{
		ForwardHours:     c.ForwardHours,
		PayHours:         c.PayHours,
		InvoiceHours:     c.InvoiceHours,
		PageSize:         uint32(c.PageSize),
		MaxForwards:      c.MaxForwards,
		MaxPays:          c.MaxPays,
		MaxInvoices:      c.MaxInvoices,
		FilterAmountMsat: c.FilterAmountMsat,
		FilterFeeMsat:    c.FilterFeeMsat,
		ShowSelfPays:     c.ShowSelfPays,
		PingPeers:        c.PingPeers,
		SortBy:           c.sortColumn,
		SortDesc:         c.SortDesc,
	}
}
