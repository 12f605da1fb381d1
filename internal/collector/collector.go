// Package collector invokes the external usage-reporting tool and parses
// its output into normalized snapshots.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

// usageCommand is the CLI slash command that prints the quota report.
const usageCommand = "/usage"

// Collector runs one bounded invocation of the usage tool per Collect call.
// It is a pure producer: a failed collection has no side effects beyond the
// process invocation itself.
type Collector struct {
	bin     string
	timeout time.Duration
	now     func() time.Time
}

// New creates a collector for the given tool binary.
func New(bin string, timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Collector{
		bin:     bin,
		timeout: timeout,
		now:     time.Now,
	}
}

// Collect invokes the tool once and parses its output. CapturedAt is the
// wall clock at invocation, never a timestamp from tool output, so capture
// ordering stays monotonic regardless of tool clock skew. Every failure is
// returned as a *FetchError with an enumerated reason.
func (c *Collector) Collect(ctx context.Context) (*models.UsageSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	capturedAt := c.now().UTC().Truncate(time.Second)

	cmd := exec.CommandContext(ctx, c.bin, usageCommand)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fetchErr(ReasonTimeout, fmt.Errorf("%s timed out after %s", c.bin, c.timeout))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fetchErr(ReasonExec, fmt.Errorf("%s exited with code %d", c.bin, exitErr.ExitCode()))
		}
		return nil, fetchErr(ReasonExec, fmt.Errorf("failed to run %s: %w", c.bin, err))
	}

	cleaned := stripANSI(out.String())
	if strings.TrimSpace(cleaned) == "" {
		return nil, fetchErr(ReasonEmptyOutput, fmt.Errorf("%s produced no output", c.bin))
	}

	windows, err := parseUsage(cleaned, capturedAt)
	if err != nil {
		return nil, fetchErr(ReasonParse, err)
	}

	return &models.UsageSnapshot{
		CapturedAt:  capturedAt,
		AccountType: detectAccountType(cleaned),
		Email:       parseEmail(cleaned),
		Windows:     windows,
		Raw:         cleaned,
	}, nil
}
