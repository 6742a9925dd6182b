package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/agentrelay/runner"
)

// promptDecisions asks on out for a y/n answer per interruption, reading
// answers line by line from in. Anything but y/yes rejects.
func promptDecisions(in *bufio.Reader, out io.Writer, interruptions []runner.Interruption) ([]runner.Decision, error) {
	decisions := make([]runner.Decision, 0, len(interruptions))

	for _, it := range interruptions {
		fmt.Fprintf(out, "%s is asking for calling tool %s with args %s (y/n): ", it.Agent, it.ToolName, it.Arguments)

		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("read approval: %w", err)
		}

		answer := strings.ToLower(strings.TrimSpace(line))
		approved := answer == "y" || answer == "yes"

		d := runner.Decision{InterruptionID: it.ID, Approved: approved}
		if !approved {
			d.Reason = "declined by operator"
		}
		decisions = append(decisions, d)
	}

	return decisions, nil
}
