package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

var errAborted = errors.New("aborted")

// prompter abstracts the terminal so the wizard loop can be tested with a script.
type prompter interface {
	Input(msg, def, help string) (string, error)
	Confirm(msg string, def bool) (bool, error)
	Select(msg string, options []string, def int) (int, error)
	MultiSelect(msg string, options []string, defs []int) ([]int, error)
	Info(msg string)
}

type surveyPrompter struct {
	out io.Writer
}

func (p surveyPrompter) Input(msg, def, help string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Input{Message: msg, Default: def, Help: help}, &out)
	return out, translateSurveyErr(err)
}

func (p surveyPrompter) Confirm(msg string, def bool) (bool, error) {
	var out bool
	err := survey.AskOne(&survey.Confirm{Message: msg, Default: def}, &out)
	return out, translateSurveyErr(err)
}

func (p surveyPrompter) Select(msg string, options []string, def int) (int, error) {
	prompt := &survey.Select{Message: msg, Options: options, PageSize: 12}
	if def >= 0 && def < len(options) {
		prompt.Default = options[def]
	}
	var idx int
	err := survey.AskOne(prompt, &idx)
	return idx, translateSurveyErr(err)
}

func (p surveyPrompter) MultiSelect(msg string, options []string, defs []int) ([]int, error) {
	prompt := &survey.MultiSelect{Message: msg, Options: options, PageSize: 12}
	if len(defs) > 0 {
		prompt.Default = defs
	}
	var idx []int
	err := survey.AskOne(prompt, &idx)
	return idx, translateSurveyErr(err)
}

func (p surveyPrompter) Info(msg string) { fmt.Fprintln(p.out, msg) }

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}
