package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates what the prompt input is used for.
type PromptMode int

const (
	// PromptCommand runs a ':' command.
	PromptCommand PromptMode = iota
	// PromptFilter narrows the room list.
	PromptFilter
	// PromptTranslate takes "<message-id> [lang]".
	PromptTranslate
)

type promptLayout struct {
	label, title, placeholder string
}

var promptModes = map[PromptMode]promptLayout{
	PromptCommand:   {":", " Command ", "room <name> | more | tr <id> [lang] | quit"},
	PromptFilter:    {"/", " Filter rooms ", "part of a room name"},
	PromptTranslate: {"tr ", " Translate ", "<message-id> [lang]"},
}

const historySize = 50

// Prompt is a single-line input bar shared by every prompt mode. Submitted
// commands are kept so Up and Down can recall them.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	onSubmit func(mode PromptMode, text string)
	onCancel func()

	history []string
	cursor  int
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetPlaceholderTextColor(theme.BorderColor)

	p := &Prompt{InputField: input, theme: theme}

	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if p.mode != PromptCommand {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			p.SetText(p.recall(-1))
			return nil
		case tcell.KeyDown:
			p.SetText(p.recall(1))
			return nil
		}
		return ev
	})

	input.SetDoneFunc(func(key tcell.Key) {
		text := p.GetText()
		p.SetText("")
		switch key {
		case tcell.KeyEnter:
			if p.mode == PromptCommand {
				p.remember(text)
			}
			// Empty submissions still fire so a filter can be cleared.
			if p.onSubmit != nil {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})

	return p
}

// SetOnSubmit sets the callback run on Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback run on Esc.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate prepares the prompt for mode, prefilled with initial.
func (p *Prompt) Activate(mode PromptMode, initial string) {
	layout := promptModes[mode]
	p.mode = mode
	p.cursor = len(p.history)
	p.SetLabel(layout.label)
	p.SetTitle(layout.title)
	p.SetPlaceholder(layout.placeholder)
	p.SetText(initial)
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

func (p *Prompt) remember(text string) {
	if text == "" || (len(p.history) > 0 && p.history[len(p.history)-1] == text) {
		p.cursor = len(p.history)
		return
	}
	p.history = append(p.history, text)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
	p.cursor = len(p.history)
}

// recall moves through the command history; moving past the newest entry
// yields an empty line.
func (p *Prompt) recall(step int) string {
	p.cursor = min(max(p.cursor+step, 0), len(p.history))
	if p.cursor == len(p.history) {
		return ""
	}
	return p.history[p.cursor]
}
