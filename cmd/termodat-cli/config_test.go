package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultOptions(t *testing.T) *option {
	t.Helper()
	opt := defineFlags(newFlagSet())
	require.NoError(t, opt.validate())
	return opt
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "termodat.toml", `
address = "tcp://10.0.0.5:4001"
slave_id = 7
channel = 2
timeout = "750ms"
parity = "e"
`)
	cfg, defined, err := loadConfig(path)
	require.NoError(t, err)
	assert.True(t, defined("channel"))
	assert.False(t, defined("program"))

	opt := defaultOptions(t)
	require.NoError(t, cfg.apply(opt, defined, map[string]bool{"channel": true}))
	assert.Equal(t, "tcp://10.0.0.5:4001", opt.address)
	assert.Equal(t, 7, opt.slaveID)
	assert.Equal(t, 1, opt.channel, "explicit flag wins")
	assert.Equal(t, 1, opt.program)
	assert.Equal(t, 750*time.Millisecond, opt.timeout)
	assert.Equal(t, "E", opt.serial.parity)
	assert.NoError(t, opt.validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "termodat.yml", `
address: /dev/ttyS1
program: 4
step: 3
setpoint_alt: true
log_frame: true
baudrate: 9600
`)
	cfg, defined, err := loadConfig(path)
	require.NoError(t, err)
	assert.True(t, defined("setpoint_alt"))
	assert.False(t, defined("slave_id"))

	opt := defaultOptions(t)
	require.NoError(t, cfg.apply(opt, defined, nil))
	assert.Equal(t, "/dev/ttyS1", opt.address)
	assert.Equal(t, 2, opt.slaveID)
	assert.Equal(t, 4, opt.program)
	assert.Equal(t, 3, opt.step)
	assert.True(t, opt.setPointAlt)
	assert.True(t, opt.logFrame)
	assert.Equal(t, 9600, opt.serial.baudrate)
}

func TestLoadConfigErrors(t *testing.T) {
	_, _, err := loadConfig(writeFile(t, "termodat.ini", "address=x"))
	assert.ErrorContains(t, err, "unsupported file type")

	_, _, err = loadConfig(writeFile(t, "bad.toml", "address = "))
	assert.Error(t, err)

	_, _, err = loadConfig(writeFile(t, "bad.yaml", "address: [1"))
	assert.Error(t, err)

	_, _, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, defined, err := loadConfig(writeFile(t, "timeout.toml", `timeout = "soon"`))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.apply(defaultOptions(t), defined, nil), "parse timeout")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*option)
		want   string
	}{
		{"empty address", func(o *option) { o.address = "" }, "address"},
		{"broadcast slave", func(o *option) { o.slaveID = 0 }, "slaveID"},
		{"channel 5", func(o *option) { o.channel = 5 }, "channel"},
		{"program 0", func(o *option) { o.program = 0 }, "program"},
		{"step 0", func(o *option) { o.step = 0 }, "step"},
		{"no timeout", func(o *option) { o.timeout = 0 }, "timeout"},
		{"no baudrate", func(o *option) { o.serial.baudrate = 0 }, "baudrate"},
		{"databits", func(o *option) { o.serial.dataBits = 9 }, "databits"},
		{"parity", func(o *option) { o.serial.parity = "X" }, "parity"},
		{"stopbits", func(o *option) { o.serial.stopBits = 3 }, "stopbits"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opt := defaultOptions(t)
			tc.modify(opt)
			assert.ErrorContains(t, opt.validate(), tc.want)
		})
	}

	opt := defaultOptions(t)
	opt.address = ""
	opt.channel = 0
	err := opt.validate()
	assert.ErrorContains(t, err, "address")
	assert.ErrorContains(t, err, "channel")
}
