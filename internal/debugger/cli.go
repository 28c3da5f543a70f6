package debugger

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"flowrun/internal/runstate"
)

// CLI is a line-oriented debugger client: it logs every hook at debug level
// (the way the original runtime's CliRuntimeClient logs each
// CoordinatorMessage via `log::debug!` before acting on it - original_source
// flowr/src/cli/cli_client.rs `process_coordinator_message`), and on
// GetCommand prints a state dump and blocks on a line of stdin, the same
// "print prompt, read_line, trim" shape as that file's GetLine handler.
type CLI struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	log    zerolog.Logger
	paused bool
}

// NewCLI builds a CLI debugger reading commands from in and writing prompts
// and state dumps to out.
func NewCLI(in io.Reader, out io.Writer, log zerolog.Logger) *CLI {
	return &CLI{in: bufio.NewReader(in), out: out, log: log.With().Str("component", "debugger").Logger()}
}

func (c *CLI) OnJobDispatch(functionID int, flowID string) {
	c.log.Debug().Int("function_id", functionID).Str("flow_id", flowID).Msg("job dispatched")
}

func (c *CLI) OnJobComplete(functionID int, flowID string, hasOutput bool) {
	c.log.Debug().Int("function_id", functionID).Str("flow_id", flowID).Bool("has_output", hasOutput).Msg("job complete")
}

func (c *CLI) OnJobError(functionID int, flowID string, err error) {
	c.log.Debug().Int("function_id", functionID).Str("flow_id", flowID).Err(err).Msg("job error")
}

func (c *CLI) OnBlockCreated(blockedFn, blockingFn int) {
	c.log.Debug().Int("blocked_fn", blockedFn).Int("blocking_fn", blockingFn).Msg("block created")
}

func (c *CLI) OnFlowUnblock(flowID string) {
	c.log.Debug().Str("flow_id", flowID).Msg("flow unblocked")
}

func (c *CLI) OnValueSent(fromFn, toFn, toInput int) {
	c.log.Debug().Int("from_fn", fromFn).Int("to_fn", toFn).Int("to_input", toInput).Msg("value sent")
}

// GetCommand prints a state dump, then prompts for and parses one line of
// input. An empty line or unrecognized command repeats Continue, matching
// the original client's "no input -> Ack and carry on" fallback.
func (c *CLI) GetCommand(snap runstate.Snapshot) Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.printSnapshot(snap)
	fmt.Fprint(c.out, "debug> ")

	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return Exit
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "continue":
		return Continue
	case "s", "step":
		return Step
	case "r", "reset":
		return Reset
	case "i", "inspect":
		return Inspect
	case "b", "break":
		return Break
	case "q", "quit", "exit":
		return Exit
	default:
		return Continue
	}
}

func (c *CLI) printSnapshot(snap runstate.Snapshot) {
	fmt.Fprintf(c.out, "--- dispatch #%d ---\n", snap.Dispatches)
	fmt.Fprintf(c.out, "ready: %v\n", snap.Ready)

	running := make([]int, 0, len(snap.Running))
	for id := range snap.Running {
		running = append(running, id)
	}
	sort.Ints(running)
	fmt.Fprintf(c.out, "running: %v\n", running)

	fmt.Fprintf(c.out, "blocks: %d\n", len(snap.Blocks))
	for _, b := range snap.Blocks {
		fmt.Fprintf(c.out, "  %d blocked by %d/%d\n", b.BlockedFunctionID, b.BlockingFunctionID, b.BlockingInputIndex)
	}

	flows := make([]string, 0, len(snap.BusyFlows))
	for f := range snap.BusyFlows {
		flows = append(flows, f)
	}
	sort.Strings(flows)
	for _, f := range flows {
		fmt.Fprintf(c.out, "busy flow %s: %v\n", f, snap.BusyFlows[f])
	}
}

var _ Protocol = (*CLI)(nil)
