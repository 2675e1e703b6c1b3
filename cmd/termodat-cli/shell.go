package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/grid-x/termodat"
)

const title = `Termodat control panel

Please input command:
`

// prompter reads one line of operator input. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
}

type command struct {
	name  string
	usage string
	run   func(sh *shell, args []string) error
}

// commands are the device commands; help, clear and quit are handled by exec.
var commands = []command{
	{"set-program", "configure a step of a regulation program", (*shell).setProgram},
	{"temp", "show the current temperature", (*shell).temperature},
	{"setpoint", "show the current set-point", (*shell).setPoint},
	{"time-left", "show the time left in the exposure step", (*shell).timeLeft},
	{"channel", "show the number of channels", (*shell).channels},
	{"process", "show the process state", (*shell).process},
	{"program", "show the startup program and step", (*shell).program},
	{"start", "start the process, optionally at [program step]", (*shell).start},
	{"stop", "stop the process", (*shell).stop},
	{"pause", "pause the process", (*shell).pause},
	{"refresh", "read the process state from the device", (*shell).refresh},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// completions lists command names starting with prefix.
func completions(prefix string) (c []string) {
	prefix = strings.ToLower(prefix)
	for _, name := range commandNames() {
		if strings.HasPrefix(name, prefix) {
			c = append(c, name)
		}
	}
	return c
}

func commandNames() []string {
	names := make([]string, 0, len(commands)+4)
	for _, c := range commands {
		names = append(names, c.name)
	}
	return append(names, "clear", "help", "q", "quit")
}

type shell struct {
	ctl    termodat.Controller
	in     prompter
	out    io.Writer
	logger *slog.Logger
}

// run reads commands until quit, end of input or the device stops answering.
func (sh *shell) run() error {
	sh.showTitle()
	for sh.ctl.Connected() {
		line, err := sh.in.Prompt("$ ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(sh.out)
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if h, ok := sh.in.(interface{ AppendHistory(string) }); ok {
			h.AppendHistory(line)
		}
		quit, err := sh.exec(fields[0], fields[1:])
		if err != nil {
			sh.logger.Error(err.Error(), "command", fields[0])
		}
		if quit {
			return nil
		}
	}
	sh.logger.Error("device does not answer", "channel", sh.ctl.Channel())
	return nil
}

// exec runs one command. quit is true when the operator asked to leave.
func (sh *shell) exec(name string, args []string) (quit bool, err error) {
	switch name {
	case "q", "quit":
		sh.show("Bye...")
		return true, nil
	case "help":
		sh.help()
		return false, nil
	case "clear":
		fmt.Fprint(sh.out, "\033[H\033[2J")
		sh.showTitle()
		return false, nil
	}
	c, ok := lookup(name)
	if !ok {
		fmt.Fprintln(sh.out, "Incorrect input, try again")
		return false, nil
	}
	return false, c.run(sh, args)
}

func (sh *shell) show(v interface{}) {
	fmt.Fprintf(sh.out, ">> %v\n\n", v)
}

func (sh *shell) showTitle() {
	fmt.Fprint(sh.out, title)
	sh.help()
}

func (sh *shell) help() {
	for _, c := range commands {
		fmt.Fprintf(sh.out, "  %-12s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(sh.out, "  %-12s %s\n", "clear", "clear the screen")
	fmt.Fprintf(sh.out, "  %-12s %s\n", "q, quit", "exit")
	fmt.Fprintln(sh.out)
}

func (sh *shell) temperature([]string) error {
	t, err := sh.ctl.Temperature()
	if err != nil {
		return err
	}
	sh.show(t)
	return nil
}

func (sh *shell) setPoint([]string) error {
	t, err := sh.ctl.SetPoint()
	if err != nil {
		return err
	}
	sh.show(t)
	return nil
}

func (sh *shell) timeLeft([]string) error {
	d, err := sh.ctl.TimeLeftStanding()
	if err != nil {
		return err
	}
	sh.show(d)
	return nil
}

func (sh *shell) channels([]string) error {
	sh.show(sh.ctl.Channels())
	return nil
}

func (sh *shell) process([]string) error {
	sh.show(sh.ctl.Process())
	return nil
}

func (sh *shell) refresh([]string) error {
	st, err := sh.ctl.RefreshProcess()
	if err != nil {
		return err
	}
	sh.show(st)
	return nil
}

func (sh *shell) program([]string) error {
	program, step, err := sh.ctl.ReadProgramPosition()
	if err != nil {
		return err
	}
	sh.show(fmt.Sprintf("program %d step %d", program, step))
	if d, ok := sh.ctl.LastStep(); ok {
		sh.show("last configured " + d.String())
	}
	return nil
}

func (sh *shell) start(args []string) error {
	if sh.ctl.Process().Is(termodat.Run) {
		sh.show("Process already running")
		return nil
	}
	switch len(args) {
	case 0:
		if err := sh.ctl.Start(); err != nil {
			return err
		}
	case 2:
		program, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid program number %q", args[0])
		}
		step, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step number %q", args[1])
		}
		if err := sh.ctl.StartAt(program, step); err != nil {
			return err
		}
	default:
		return errors.New("usage: start [program step]")
	}
	sh.show("Start OK")
	return nil
}

func (sh *shell) stop([]string) error {
	if sh.ctl.Process().Is(termodat.Stop) {
		sh.show("Process already stopped")
		return nil
	}
	if err := sh.ctl.Stop(); err != nil {
		return err
	}
	sh.show("Stop OK")
	return nil
}

func (sh *shell) pause([]string) error {
	if sh.ctl.Process().Is(termodat.Pause) {
		sh.show("Process already paused")
		return nil
	}
	if err := sh.ctl.Pause(); err != nil {
		return err
	}
	sh.show("Pause OK")
	return nil
}

// setProgram asks for a step definition field by field. Invalid input
// repeats the question.
func (sh *shell) setProgram([]string) error {
	var (
		d   termodat.StepDefinition
		err error
	)
	if d.Program, err = sh.askInt("Editable program number: "); err != nil {
		return err
	}
	if d.Step, err = sh.askInt("Editable step number: "); err != nil {
		return err
	}
	if d.Kind, err = ask(sh, `What doing in this step, "HeatingOrCooling", "Exposure", "Goto", "Stop"?: `, termodat.ParseStepKind); err != nil {
		return err
	}
	if d.Param1, err = sh.askInt("Parameter 1 (hold time, rate in 0.1 °C/h or Goto program number): "); err != nil {
		return err
	}
	if d.Param2, err = sh.askInt("Parameter 2 (target set-point in 0.1 °C): "); err != nil {
		return err
	}
	if d.Condition, err = ask(sh, `Transition to the next step on "Tcalc", "ManualAccept", "Tmeasure": `, termodat.ParseTransitionCondition); err != nil {
		return err
	}

	err = sh.ctl.ConfigureStep(d)
	var partial *termodat.PartialConfigurationError
	for errors.As(err, &partial) {
		sh.show(partial.Error())
		answer, perr := sh.in.Prompt("Retry the remaining fields? [y/N]: ")
		if perr != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return err
		}
		err = sh.ctl.ResumeStep(partial)
	}
	if err != nil {
		return err
	}
	sh.show("Step configured: " + d.String())
	return nil
}

func (sh *shell) askInt(prompt string) (int, error) {
	return ask(sh, prompt, func(s string) (int, error) { return strconv.Atoi(s) })
}

func ask[T any](sh *shell, prompt string, parse func(string) (T, error)) (T, error) {
	for {
		line, err := sh.in.Prompt(prompt)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := parse(strings.TrimSpace(line))
		if err == nil {
			return v, nil
		}
		fmt.Fprintln(sh.out, "Incorrect input, try again")
	}
}
