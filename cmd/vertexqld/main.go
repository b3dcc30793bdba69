// Package main provides the vertexql CLI entry point: a thin cobra
// wrapper over pkg/coordinator for initializing a data directory and
// running one-shot queries against it. spec.md's scope explicitly
// excludes an interactive shell/server (those are collaborators this
// core is meant to sit behind), so unlike the teacher's own cmd/nornicdb
// there is no "serve"/"shell" subcommand here — just init and query.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vertexql/vertexql/pkg/coordinator"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vertexqld",
		Short: "vertexql - an embedded graph database core",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vertexqld v%s\n", version)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new data directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(initCmd)

	queryCmd := &cobra.Command{
		Use:   "query [statement]",
		Short: "Run a single statement against a data directory and print its rows",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().String("data-dir", "./data", "Data directory (empty string for in-memory)")
	queryCmd.Flags().String("user", "admin", "Username to authenticate as")
	queryCmd.Flags().String("password", "changeme", "Password for --user")
	rootCmd.AddCommand(queryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	c, err := coordinator.FromPath(dataDir, nil)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer c.Close()
	fmt.Printf("initialized %s\n", coordinator.DataDirLabel(dataDir))
	return nil
}

// runQuery reads the statement from the positional argument, or from
// stdin when none is given (so a caller can pipe a longer query in
// without quoting issues on the shell).
func runQuery(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")

	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		b, err := readAllStdin()
		if err != nil {
			return fmt.Errorf("reading statement from stdin: %w", err)
		}
		text = b
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no statement given")
	}

	c, err := coordinator.FromPath(dataDir, nil)
	if err != nil {
		return fmt.Errorf("opening %s: %w", coordinator.DataDirLabel(dataDir), err)
	}
	defer c.Close()

	session, err := c.AuthenticateAndCreateSession(user, password)
	if err != nil {
		return fmt.Errorf("authenticating %s: %w", user, err)
	}
	defer c.CloseSession(session.ID)

	result, err := c.ProcessQuery(context.Background(), text, session.ID)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func readAllStdin() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return sb.String(), nil
}

func printResult(r *coordinator.QueryResult) {
	if len(r.Variables) == 0 {
		fmt.Printf("affected: %d\n", r.Affected)
	} else {
		fmt.Println(strings.Join(r.Variables, "\t"))
		for _, row := range r.Rows {
			cells := make([]string, len(r.Variables))
			for i, name := range r.Variables {
				cells[i] = row.Values[name].String()
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}
