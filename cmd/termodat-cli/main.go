package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/grid-x/termodat"
)

const historyFile = ".termodat_history"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("termodat-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opt := defineFlags(fs)
	configPath := fs.String("config", "", "optional .toml or .yaml file with the same settings")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *configPath != "" {
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		cfg, defined, err := loadConfig(*configPath)
		if err == nil {
			err = cfg.apply(opt, defined, explicit)
		}
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	logger := newLogger(stderr, opt.logJSON, opt.logFrame)
	if err := opt.validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 2
	}

	sink, err := termodat.OpenFileSink(opt.logFile)
	if err != nil {
		logger.Error("could not open error log", "path", opt.logFile, "err", err)
		return 1
	}
	defer sink.Close()

	session, err := openSession(*opt, sink, logger)
	if err != nil {
		logger.Error("could not open device", "address", opt.address, "err", err)
		return 1
	}

	// one-shot mode
	if fs.NArg() > 0 {
		sh := &shell{ctl: session, in: &noInput{}, out: stdout, logger: logger}
		if _, err := sh.exec(fs.Arg(0), fs.Args()[1:]); err != nil {
			logger.Error(err.Error(), "command", fs.Arg(0))
			return 1
		}
		return 0
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completions)
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	sh := &shell{ctl: session, in: line, out: stdout, logger: logger}
	if err := sh.run(); err != nil {
		logger.Error(err.Error())
		return 1
	}
	return 0
}

func defineFlags(fs *flag.FlagSet) *option {
	var opt option
	// general
	fs.StringVar(&opt.address, "address", "ascii:///dev/ttyUSB0", "Example: ascii:///dev/ttyUSB0, /dev/ttyUSB0, tcp://192.168.1.10:4001")
	fs.IntVar(&opt.slaveID, "slaveID", 2, "Device address on the bus")
	fs.IntVar(&opt.channel, "channel", 1, "Regulation channel, 1 to 4")
	fs.IntVar(&opt.program, "program", 1, "Startup program number")
	fs.IntVar(&opt.step, "step", 1, "Startup step number")
	fs.DurationVar(&opt.timeout, "timeout", 5*time.Second, "Reply timeout per exchange")
	fs.BoolVar(&opt.setPointAlt, "setpoint-alt", false, "read the set-point from register 0x0173")
	// serial
	fs.IntVar(&opt.serial.baudrate, "serial-baudrate", 57600, "Symbol rate, e.g.: 9600, 19200, 38400, 57600, 115200")
	fs.IntVar(&opt.serial.dataBits, "serial-databits", 8, "5, 6, 7 or 8")
	fs.StringVar(&opt.serial.parity, "serial-parity", "N", "Parity: N - None, E - Even, O - Odd")
	fs.IntVar(&opt.serial.stopBits, "serial-stopbits", 1, "1 or 2")
	// logging
	fs.StringVar(&opt.logFile, "log-file", "log.txt", "append failed exchanges to this file")
	fs.BoolVar(&opt.logFrame, "log-frame", false, "prints received and sent frames")
	fs.BoolVar(&opt.logJSON, "log-json", false, "log as JSON instead of console text")
	return &opt
}

func openSession(o option, sink termodat.ErrorSink, logger *slog.Logger) (*termodat.Session, error) {
	t, err := newTransporter(o)
	if err != nil {
		return nil, err
	}
	opts := termodat.Options{
		SlaveID:   byte(o.slaveID),
		Channel:   o.channel,
		Program:   o.program,
		Step:      o.step,
		ErrorSink: sink,
	}
	if o.setPointAlt {
		opts.SetPoint = termodat.RegSetPointAlt
	}
	if o.logFrame {
		opts.Logger = &debugAdapter{logger}
		switch t := t.(type) {
		case *termodat.SerialTransporter:
			t.Logger = opts.Logger
		case *termodat.TCPTransporter:
			t.Logger = opts.Logger
		}
	}
	return termodat.Open(t, opts)
}

func newTransporter(o option) (termodat.Transporter, error) {
	if !strings.Contains(o.address, "://") {
		return newSerialTransporter(o, o.address), nil
	}
	u, err := url.Parse(o.address)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ascii":
		return newSerialTransporter(o, u.Path), nil
	case "tcp":
		t := termodat.NewTCPTransporter(u.Host)
		t.Timeout = o.timeout
		return t, nil
	}
	return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
}

func newSerialTransporter(o option, path string) *termodat.SerialTransporter {
	t := termodat.NewSerialTransporter(path)
	t.Timeout = o.timeout
	t.BaudRate = o.serial.baudrate
	t.DataBits = o.serial.dataBits
	t.Parity = o.serial.parity
	t.StopBits = o.serial.stopBits
	return t
}

// noInput answers prompts in one-shot mode, where there is no operator.
type noInput struct{}

func (*noInput) Prompt(string) (string, error) { return "", io.EOF }
