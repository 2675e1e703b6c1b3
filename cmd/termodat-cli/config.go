package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/grid-x/termodat"
)

type option struct {
	address string
	slaveID int
	channel int
	program int
	step    int
	timeout time.Duration
	// setPointAlt reads the set-point from the alternative register.
	setPointAlt bool

	serial struct {
		baudrate int
		dataBits int
		parity   string
		stopBits int
	}

	logFile  string
	logFrame bool
	logJSON  bool
}

// fileConfig mirrors the flags in a config file. Keys absent from the file
// leave the flag value alone.
type fileConfig struct {
	Address     string `toml:"address" yaml:"address"`
	SlaveID     int    `toml:"slave_id" yaml:"slave_id"`
	Channel     int    `toml:"channel" yaml:"channel"`
	Program     int    `toml:"program" yaml:"program"`
	Step        int    `toml:"step" yaml:"step"`
	Timeout     string `toml:"timeout" yaml:"timeout"`
	SetPointAlt bool   `toml:"setpoint_alt" yaml:"setpoint_alt"`
	BaudRate    int    `toml:"baudrate" yaml:"baudrate"`
	DataBits    int    `toml:"databits" yaml:"databits"`
	Parity      string `toml:"parity" yaml:"parity"`
	StopBits    int    `toml:"stopbits" yaml:"stopbits"`
	LogFile     string `toml:"log_file" yaml:"log_file"`
	LogFrame    bool   `toml:"log_frame" yaml:"log_frame"`
}

// loadConfig reads a .toml, .yaml or .yml file. defined reports which keys
// the file sets.
func loadConfig(path string) (cfg fileConfig, defined func(key string) bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return fileConfig{}, nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, func(key string) bool { return meta.IsDefined(key) }, nil
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fileConfig{}, nil, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fileConfig{}, nil, fmt.Errorf("load config: %w", err)
		}
		var keys map[string]interface{}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return fileConfig{}, nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, func(key string) bool {
			_, ok := keys[key]
			return ok
		}, nil
	}
	return fileConfig{}, nil, fmt.Errorf("load config: unsupported file type %q", filepath.Ext(path))
}

// apply copies the defined file values into o, except for the flags given
// explicitly on the command line.
func (c fileConfig) apply(o *option, defined func(string) bool, explicit map[string]bool) error {
	use := func(key, flagName string) bool {
		return defined(key) && !explicit[flagName]
	}
	if use("address", "address") {
		o.address = strings.TrimSpace(c.Address)
	}
	if use("slave_id", "slaveID") {
		o.slaveID = c.SlaveID
	}
	if use("channel", "channel") {
		o.channel = c.Channel
	}
	if use("program", "program") {
		o.program = c.Program
	}
	if use("step", "step") {
		o.step = c.Step
	}
	if use("timeout", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(c.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		o.timeout = d
	}
	if use("setpoint_alt", "setpoint-alt") {
		o.setPointAlt = c.SetPointAlt
	}
	if use("baudrate", "serial-baudrate") {
		o.serial.baudrate = c.BaudRate
	}
	if use("databits", "serial-databits") {
		o.serial.dataBits = c.DataBits
	}
	if use("parity", "serial-parity") {
		o.serial.parity = strings.ToUpper(strings.TrimSpace(c.Parity))
	}
	if use("stopbits", "serial-stopbits") {
		o.serial.stopBits = c.StopBits
	}
	if use("log_file", "log-file") {
		o.logFile = strings.TrimSpace(c.LogFile)
	}
	if use("log_frame", "log-frame") {
		o.logFrame = c.LogFrame
	}
	return nil
}

// validate checks the options without changing them.
func (o option) validate() error {
	var errs []error
	if o.address == "" {
		errs = append(errs, errors.New("address must not be empty"))
	}
	if o.slaveID < 1 || o.slaveID > 247 {
		errs = append(errs, fmt.Errorf("slaveID %d must be between 1 and 247", o.slaveID))
	}
	if o.channel < 1 || o.channel > termodat.MaxChannels {
		errs = append(errs, fmt.Errorf("channel %d must be between 1 and %d", o.channel, termodat.MaxChannels))
	}
	if o.program < 1 {
		errs = append(errs, fmt.Errorf("program %d must be at least 1", o.program))
	}
	if o.step < 1 {
		errs = append(errs, fmt.Errorf("step %d must be at least 1", o.step))
	}
	if o.timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %v must be positive", o.timeout))
	}
	if o.serial.baudrate <= 0 {
		errs = append(errs, fmt.Errorf("baudrate %d must be positive", o.serial.baudrate))
	}
	if o.serial.dataBits < 5 || o.serial.dataBits > 8 {
		errs = append(errs, fmt.Errorf("databits %d must be between 5 and 8", o.serial.dataBits))
	}
	switch o.serial.parity {
	case "N", "E", "O":
	default:
		errs = append(errs, fmt.Errorf("parity %q must be one of N, E, O", o.serial.parity))
	}
	if o.serial.stopBits != 1 && o.serial.stopBits != 2 {
		errs = append(errs, fmt.Errorf("stopbits %d must be 1 or 2", o.serial.stopBits))
	}
	return errors.Join(errs...)
}
