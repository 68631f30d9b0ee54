// Package placement rebuilds a voxelised point cloud in a block world by
// sending one setblock command per occupied voxel over a remote console.
package placement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/rcon"
	"github.com/banshee-data/cloudblocks/internal/timeutil"
	"github.com/banshee-data/cloudblocks/internal/voxel"
)

// State is the driver's lifecycle position.
type State int

const (
	Idle State = iota
	Connecting
	Placing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Placing:
		return "placing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Console is an authenticated command channel. *rcon.Client satisfies it.
type Console interface {
	Authenticate(password string) error
	SendCommand(cmd string) (string, error)
	Close() error
}

// DialFunc opens a Console.
type DialFunc func(ctx context.Context) (Console, error)

// RCONDialer dials a remote console server at addr.
func RCONDialer(addr string, opts rcon.Options) DialFunc {
	return func(ctx context.Context) (Console, error) {
		c, err := rcon.Dial(ctx, addr, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Outcome classifies one issued command.
type Outcome string

const (
	OutcomePlaced   Outcome = "placed"
	OutcomeRejected Outcome = "rejected"
)

// Journal receives every issued command with its outcome.
type Journal interface {
	RecordCommand(cmd Command, outcome Outcome, reply string) error
}

// Summary reports the result of a run.
type Summary struct {
	RunID    string
	Planned  int
	Placed   int
	Failed   int
	Skipped  int // occupied voxels at or below the threshold
	Usage    map[string]int
	State    State
	Duration time.Duration
	// LabSpread is the standard deviation of L, a and b across placed voxels.
	LabSpread [3]float64
}

// rejectedReplies are reply prefixes a server uses for a command it did not
// execute.
var rejectedReplies = []string{
	"Could not set the block",
	"Unknown block type",
	"Unknown or incomplete command",
	"Incorrect argument for command",
	"That position is not loaded",
	"Cannot place blocks outside of the world",
}

// IsRejectedReply reports whether a reply body signals a failed command.
func IsRejectedReply(reply string) bool {
	for _, p := range rejectedReplies {
		if strings.HasPrefix(reply, p) {
			return true
		}
	}
	return false
}

// Driver runs the Connecting, Placing and Closed states over one console.
type Driver struct {
	Planner
	Dial     DialFunc
	Password string
	RunID    string
	// Interval paces consecutive commands. Zero sends back to back.
	Interval time.Duration
	Journal  Journal
	Clock    timeutil.Clock

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	prev := d.state
	d.state = s
	d.mu.Unlock()
	monitoring.Debugf("placement: %s -> %s", prev, s)
}

// Run places every planned command. Rejected commands are logged and
// counted; transport failures, authentication failures and context
// cancellation end the run. The console is closed on every path.
func (d *Driver) Run(ctx context.Context, grid *voxel.Grid) (sum Summary, err error) {
	clock := timeutil.OrReal(d.Clock)
	start := clock.Now()

	cmds, skipped := d.Plan(grid)
	sum = Summary{
		RunID:   d.RunID,
		Planned: len(cmds),
		Skipped: skipped,
		Usage:   make(map[string]int),
	}
	var spread [3][]float64
	defer func() {
		d.setState(Closed)
		sum.State = Closed
		sum.Duration = clock.Since(start)
		if len(spread[0]) > 1 {
			for k := range spread {
				sum.LabSpread[k] = stat.StdDev(spread[k], nil)
			}
		}
	}()

	d.setState(Connecting)
	console, err := d.Dial(ctx)
	if err != nil {
		return sum, fmt.Errorf("connect: %w", connectingError(err))
	}
	defer func() {
		if cerr := console.Close(); cerr != nil {
			monitoring.Logf("placement: close console: %v", cerr)
		}
	}()

	if err := console.Authenticate(d.Password); err != nil {
		return sum, fmt.Errorf("authenticate: %w", connectingError(err))
	}

	d.setState(Placing)
	monitoring.Logf("placement: run %s placing %d blocks (%d voxels under threshold %d)",
		d.RunID, len(cmds), skipped, d.Threshold)

	for i, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("placement interrupted after %d of %d commands: %w", i, len(cmds), err)
		}
		if i > 0 && d.Interval > 0 {
			if err := clock.Sleep(ctx, d.Interval); err != nil {
				return sum, fmt.Errorf("placement interrupted after %d of %d commands: %w", i, len(cmds), err)
			}
		}

		reply, err := console.SendCommand(cmd.String())
		outcome := OutcomePlaced
		switch {
		case err == nil && !IsRejectedReply(reply):
		case err == nil, errors.Is(err, rcon.ErrCommandRejected):
			outcome = OutcomeRejected
		default:
			return sum, fmt.Errorf("send %q: %w", cmd.String(), err)
		}

		if outcome == OutcomePlaced {
			sum.Placed++
			sum.Usage[cmd.Block]++
			spread[0] = append(spread[0], float64(cmd.Mean.L))
			spread[1] = append(spread[1], float64(cmd.Mean.A))
			spread[2] = append(spread[2], float64(cmd.Mean.B))
			monitoring.Debugf("placement: %s", cmd)
		} else {
			sum.Failed++
			monitoring.Logf("placement: command %q rejected: %s", cmd.String(), rejectReason(reply, err))
		}

		if d.Journal != nil {
			if jerr := d.Journal.RecordCommand(cmd, outcome, reply); jerr != nil {
				monitoring.Logf("placement: journal command %d: %v", cmd.Seq, jerr)
			}
		}
	}

	monitoring.Logf("placement: run %s done, %d placed, %d rejected", d.RunID, sum.Placed, sum.Failed)
	return sum, nil
}

// connectingError marks every failure before Placing as an authentication
// failure. The cause stays in the chain, so transport errors still match
// rcon.ErrTransport.
func connectingError(err error) error {
	if errors.Is(err, rcon.ErrAuthentication) {
		return err
	}
	return fmt.Errorf("%w: %w", rcon.ErrAuthentication, err)
}

func rejectReason(reply string, err error) string {
	if err != nil {
		return err.Error()
	}
	return reply
}
