// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"errors"
	"math"
	"sync"
	"time"
)

var _ Controller = (*Session)(nil)

// Options configures a Session.
type Options struct {
	// SlaveID is the device address on the bus.
	SlaveID byte
	// Channel is the regulation channel, 1 when zero.
	Channel int
	// Program and Step select where the process starts, 1 when zero.
	Program int
	Step    int
	// SetPoint overrides the set-point register for device revisions
	// that moved it, e.g. RegSetPointAlt.
	SetPoint Register
	// Logger traces session events.
	Logger Logger
	// ErrorSink records failed exchanges, NopSink when nil.
	ErrorSink ErrorSink
}

// Session is an opened connection to one channel of one device. All
// operations block for up to the transport timeout and are serialized.
type Session struct {
	transporter Transporter
	slaveID     byte
	channel     int
	channels    int
	setPoint    Register
	logger      Logger
	sink        ErrorSink

	mu       sync.Mutex
	program  int
	step     int
	process  ProcessStatus
	lastStep *StepDefinition
}

// OpenSerial opens a session on a serial port with the default line settings.
func OpenSerial(address string, opts Options) (*Session, error) {
	t := NewSerialTransporter(address)
	t.Logger = opts.Logger
	return Open(t, opts)
}

// Open reads the channel count of the device, checks the requested channel
// against it, writes the startup program and step and reads the current
// process state. No session is returned when any of these fail.
func Open(t Transporter, opts Options) (*Session, error) {
	s := &Session{
		transporter: t,
		slaveID:     opts.SlaveID,
		channel:     orDefault(opts.Channel, 1),
		setPoint:    opts.SetPoint,
		logger:      opts.Logger,
		sink:        opts.ErrorSink,
	}
	if s.setPoint == (Register{}) {
		s.setPoint = RegSetPoint
	}
	if s.sink == nil {
		s.sink = NopSink{}
	}
	program, step := orDefault(opts.Program, 1), orDefault(opts.Step, 1)
	if err := checkPosition(program, step); err != nil {
		return nil, err
	}

	count, err := s.readRegister("read channel count", RegChannelCount)
	if err != nil {
		return nil, err
	}
	s.channels = int(count)
	if err := checkRange("channel", s.channel, 1, min(s.channels, MaxChannels)); err != nil {
		return nil, err
	}
	if err := s.writeStartup(program, step); err != nil {
		return nil, err
	}
	if _, err := s.refreshProcess(); err != nil {
		return nil, err
	}
	s.logf("termodat: opened slave %d channel %d of %d, process %v", s.slaveID, s.channel, s.channels, s.process)
	return s, nil
}

// SlaveID returns the device address.
func (s *Session) SlaveID() byte { return s.slaveID }

// Channel returns the channel selected at open.
func (s *Session) Channel() int { return s.channel }

// Channels returns the channel count reported by the device at open.
func (s *Session) Channels() int { return s.channels }

// Program returns the startup program number last written, 1-based.
func (s *Session) Program() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program
}

// Step returns the startup step number last written, 1-based.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Process returns the cached process status.
func (s *Session) Process() ProcessStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process
}

// LastStep returns the step definition most recently written in full.
func (s *Session) LastStep() (StepDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastStep == nil {
		return StepDefinition{}, false
	}
	return *s.lastStep, true
}

// Start runs the process from the startup program and step. It does
// nothing while the process is known to run.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setProcess(Run)
}

// StartAt writes the startup program and step, then runs the process.
// It does nothing while the process is known to run.
func (s *Session) StartAt(program, step int) error {
	if err := checkPosition(program, step); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process.Is(Run) {
		return nil
	}
	if err := s.writeStartup(program, step); err != nil {
		return err
	}
	return s.setProcess(Run)
}

// Pause holds the process. It does nothing while the process is known to
// be paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setProcess(Pause)
}

// Stop ends the process. It does nothing while the process is known to be
// stopped.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setProcess(Stop)
}

// Temperature reads the measured temperature.
func (s *Session) Temperature() (Degrees, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.readRegister("read temperature", RegTemperature)
	return Degrees(v), err
}

// SetPoint reads the active set-point.
func (s *Session) SetPoint() (Degrees, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.readRegister("read set-point", s.setPoint)
	return Degrees(v), err
}

// TimeLeftStanding reads the remaining hold time of an exposure step.
func (s *Session) TimeLeftStanding() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.readRegister("read time left", RegTimeLeftStanding)
	return time.Duration(v) * time.Minute, err
}

// Connected probes the device by reading its channel count.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.readRegister("probe", RegChannelCount)
	return err == nil
}

// RefreshProcess reads the process state from the device. The cached
// state is kept when the read fails.
func (s *Session) RefreshProcess() (ProcessStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshProcess()
}

// ReadProgramPosition reads the startup program and step back from the device.
func (s *Session) ReadProgramPosition() (program, step int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.readRegister("read startup program", RegStartupProgramNumber)
	if err != nil {
		return 0, 0, err
	}
	st, err := s.readRegister("read startup step", RegStartupStepNumber)
	if err != nil {
		return 0, 0, err
	}
	s.program, s.step = int(p)+1, int(st)+1
	return s.program, s.step, nil
}

// ConfigureStep writes the six registers of a program step. All fields are
// validated before the first write. A failed write aborts the sequence
// with a *PartialConfigurationError; fields already written stay on the
// device and ResumeStep can complete them.
func (s *Session) ConfigureStep(d StepDefinition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeStep(d, 0)
}

// ResumeStep writes the fields an aborted ConfigureStep left out.
func (s *Session) ResumeStep(p *PartialConfigurationError) error {
	if err := p.Step.Validate(); err != nil {
		return err
	}
	if err := checkRange("completed fields", p.Completed, 0, stepFieldCount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeStep(p.Step, p.Completed)
}

func (s *Session) writeStep(d StepDefinition, from int) error {
	fields := d.fields()
	for i := from; i < len(fields); i++ {
		f := fields[i]
		if err := s.writeRegister("configure step", f.reg, f.value); err != nil {
			return &PartialConfigurationError{Step: d, Completed: i, Field: f.reg.Name, Err: err}
		}
	}
	s.lastStep = &d
	s.logf("termodat: configured %v", d)
	return nil
}

// setProcess commands target unless the cached state already is target.
// Caller must hold the mutex.
func (s *Session) setProcess(target ProcessState) error {
	if s.process.Is(target) {
		return nil
	}
	if err := s.writeRegister("set process "+target.String(), RegProcessControl, target.controlCode()); err != nil {
		return err
	}
	s.process = knownStatus(target)
	return nil
}

// Caller must hold the mutex.
func (s *Session) refreshProcess() (ProcessStatus, error) {
	code, err := s.readRegister("read process state", RegProcessControl)
	if err != nil {
		return s.process, err
	}
	s.process = StatusFromCode(code)
	return s.process, nil
}

// Caller must hold the mutex.
func (s *Session) writeStartup(program, step int) error {
	if err := s.writeRegister("write startup program", RegStartupProgramNumber, uint16(program-1)); err != nil {
		return err
	}
	if err := s.writeRegister("write startup step", RegStartupStepNumber, uint16(step-1)); err != nil {
		return err
	}
	s.program, s.step = program, step
	return nil
}

func (s *Session) readRegister(op string, reg Register) (uint16, error) {
	request := EncodeRead(s.slaveID, NoChannel, reg.Resolve(s.channel), reg.Length)
	response, err := s.send(op, request, FuncCodeReadHoldingRegisters)
	if err != nil {
		return 0, err
	}
	return response.Value, nil
}

func (s *Session) writeRegister(op string, reg Register, value uint16) error {
	address := reg.Resolve(s.channel)
	request := EncodeWrite(s.slaveID, NoChannel, address, value)
	response, err := s.send(op, request, FuncCodeWriteSingleRegister)
	if err != nil {
		return err
	}
	if response.Address != address || response.Value != value {
		return s.fail(op, protocolErrorf(nil, "response echo '%04X=%v' does not match request '%04X=%v'",
			response.Address, response.Value, address, value))
	}
	return nil
}

// send performs one exchange and checks the reply belongs to the request.
func (s *Session) send(op string, request Frame, functionCode byte) (*Response, error) {
	aduResponse, err := s.transporter.Send(request)
	if err != nil {
		if !errors.Is(err, ErrProtocol) {
			err = &ConnectivityError{Op: op, Err: err}
		}
		return nil, s.fail(op, err)
	}
	response, err := Decode(aduResponse)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if response.SlaveID != s.slaveID {
		return nil, s.fail(op, protocolErrorf(aduResponse, "response slave id '%v' does not match request '%v'", response.SlaveID, s.slaveID))
	}
	if response.FunctionCode != functionCode {
		return nil, s.fail(op, protocolErrorf(aduResponse, "response function '%v' does not match request '%v'", response.FunctionCode, functionCode))
	}
	return response, nil
}

func (s *Session) fail(op string, err error) error {
	s.sink.Record(op, err)
	s.logf("termodat: %s: %v", op, err)
	return err
}

func (s *Session) logf(format string, v ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, v...)
	}
}

func checkPosition(program, step int) error {
	if err := checkRange("program number", program, 1, math.MaxUint16+1); err != nil {
		return err
	}
	return checkRange("step number", step, 1, math.MaxUint16+1)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
