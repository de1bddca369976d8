package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/keepmind9/miraibridge/internal/core"
	"github.com/spf13/cobra"
)

var (
	statusConfig string
	statusAddr   string
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status of a running bridge",
	Long:  "Query a running miraibridge for the connection state of every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := statusAddr
		if addr == "" {
			cfg, err := core.LoadConfig(statusConfig)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			addr = dialableAddr(cfg.Server.Host, cfg.Server.Port)
		}

		st, err := fetchStatus(&http.Client{Timeout: 5 * time.Second}, "http://"+addr+core.StatusPath)
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), st, statusJSON)
	},
}

// dialableAddr turns a listen address into one a local client can reach
func dialableAddr(host string, port int) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func fetchStatus(client *http.Client, url string) (core.Status, error) {
	var st core.Status
	resp, err := client.Get(url)
	if err != nil {
		return st, fmt.Errorf("failed to reach miraibridge: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

func printStatus(w io.Writer, st core.Status, asJSON bool) error {
	if asJSON {
		output, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}
	fmt.Fprintf(w, "miraibridge status (%s mode):\n", st.Mode)
	if len(st.Accounts) == 0 {
		fmt.Fprintln(w, "  no accounts connected")
		return nil
	}
	for _, a := range st.Accounts {
		fmt.Fprintf(w, "  - %d: %s\n", a.Account, a.State)
	}
	return nil
}

func init() {
	statusCmd.Flags().StringVarP(&statusConfig, "config", "c", "config.yaml", "Configuration file path")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Bridge address (host:port), overrides the config")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}
