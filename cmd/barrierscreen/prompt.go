package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// interactivePrompt asks the TOFU trust questions on the controlling
// terminal via promptui, falling back to a hard "reject" when there isn't
// one (e.g. running under a supervisor with stdin closed) -- silently
// trusting an unattended prompt would defeat the point of TOFU.
type interactivePrompt struct{}

func (interactivePrompt) ConfirmNewHost(address, fingerprint string) (bool, error) {
	p := promptui.Prompt{
		Label:     fmt.Sprintf("New host %s, fingerprint %s. Trust it?", address, fingerprint),
		IsConfirm: true,
	}

	return runConfirm(p)
}

func (interactivePrompt) ConfirmMismatch(address, oldFingerprint, newFingerprint string) (bool, error) {
	p := promptui.Prompt{
		Label: fmt.Sprintf("WARNING: %s fingerprint changed from %s to %s. This could be a server "+
			"reinstall or a man-in-the-middle attack. Trust the new fingerprint?",
			address, oldFingerprint, newFingerprint),
		IsConfirm: true,
	}

	return runConfirm(p)
}

func runConfirm(p promptui.Prompt) (bool, error) {
	_, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, fmt.Errorf("prompt: %w", err)
	}

	return true, nil
}
