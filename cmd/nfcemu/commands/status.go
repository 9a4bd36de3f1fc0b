package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfcemu/nfcemu/internal/cli/output"
	"github.com/nfcemu/nfcemu/pkg/config"
)

var (
	statusOutput string
	statusSocket string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show emulator status",
	Long: `Display the current controller/RF state of a running nfcemu instance.

This command dials the operator console's Unix socket, issues "nfc status",
and reports the parsed response.

Examples:
  # Check status (uses the config's console socket)
  nfcemu status

  # Check status of an instance on a custom socket
  nfcemu status --socket /tmp/nfcemu.sock

  # Output as JSON
  nfcemu status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusSocket, "socket", "", "Path to the console Unix socket (default: from config, or $XDG_STATE_HOME/nfcemu/console.sock)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// EmulatorStatus is the CLI-facing shape of the console's "nfc status"
// JSON reply, with an added Reachable field distinguishing "dialed fine,
// controller reports state X" from "could not reach the console at all".
type EmulatorStatus struct {
	Reachable       bool   `json:"reachable" yaml:"reachable"`
	Message         string `json:"message" yaml:"message"`
	ControllerState string `json:"controller_state,omitempty" yaml:"controller_state,omitempty"`
	RFState         string `json:"rf_state,omitempty" yaml:"rf_state,omitempty"`
	ActiveREIndex   int    `json:"active_re_index,omitempty" yaml:"active_re_index,omitempty"`
	ActiveREProto   string `json:"active_re_protocol,omitempty" yaml:"active_re_protocol,omitempty"`
	EndpointCount   int    `json:"endpoint_count,omitempty" yaml:"endpoint_count,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := resolveStatus()

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func resolveStatus() EmulatorStatus {
	socketPath := statusSocket
	if socketPath == "" {
		socketPath = consoleSocketFromConfig()
	}

	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return EmulatorStatus{
			Reachable: false,
			Message:   fmt.Sprintf("could not reach console socket %s: %v", socketPath, err),
		}
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := fmt.Fprintf(conn, "nfc status\n"); err != nil {
		return EmulatorStatus{Reachable: false, Message: fmt.Sprintf("write to console socket failed: %v", err)}
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return EmulatorStatus{Reachable: false, Message: fmt.Sprintf("read from console socket failed: %v", err)}
	}
	line = strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(line, "KO: ") {
		return EmulatorStatus{Reachable: true, Message: line}
	}

	var info struct {
		ControllerState string `json:"controller_state"`
		RFState         string `json:"rf_state"`
		ActiveREIndex   int    `json:"active_re_index"`
		ActiveREProto   string `json:"active_re_protocol,omitempty"`
		EndpointCount   int    `json:"endpoint_count"`
	}
	if err := json.Unmarshal([]byte(line), &info); err != nil {
		return EmulatorStatus{Reachable: true, Message: fmt.Sprintf("malformed status reply: %v", err)}
	}

	return EmulatorStatus{
		Reachable:       true,
		Message:         "controller reachable",
		ControllerState: info.ControllerState,
		RFState:         info.RFState,
		ActiveREIndex:   info.ActiveREIndex,
		ActiveREProto:   info.ActiveREProto,
		EndpointCount:   info.EndpointCount,
	}
}

// consoleSocketFromConfig resolves the console socket path from the
// loaded config's console.listen setting when it names a Unix socket,
// falling back to the default state-directory socket path otherwise.
func consoleSocketFromConfig() string {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return GetDefaultConsoleSocket()
	}
	if path, ok := strings.CutPrefix(cfg.Console.Listen, "unix:"); ok {
		return path
	}
	return GetDefaultConsoleSocket()
}

func printStatusTable(status EmulatorStatus) {
	fmt.Println()
	fmt.Println("nfcemu Status")
	fmt.Println("=============")
	fmt.Println()

	if status.Reachable && status.ControllerState != "" {
		fmt.Printf("  Status:        \033[32m● Reachable\033[0m\n")
		fmt.Printf("  Controller:    %s\n", status.ControllerState)
		fmt.Printf("  RF state:      %s\n", status.RFState)
		fmt.Printf("  Endpoints:     %d\n", status.EndpointCount)
		if status.ActiveREProto != "" {
			fmt.Printf("  Active RE:     #%d (%s)\n", status.ActiveREIndex, status.ActiveREProto)
		} else {
			fmt.Printf("  Active RE:     none\n")
		}
	} else {
		fmt.Printf("  Status:        \033[31m○ Unreachable\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
