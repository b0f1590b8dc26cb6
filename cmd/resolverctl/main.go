package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flagresolve/engine/core"
)

func main() {
	rootCmd := &cobra.Command{Use: "resolverctl"}
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(flushCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadEngine(statePath, accountID string) (*core.Engine, error) {
	snapshot, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	engine, err := core.NewEngine(core.SystemClock{}, core.EngineConfig{}, logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		return nil, err
	}
	if err := engine.SetState(snapshot, accountID); err != nil {
		return nil, fmt.Errorf("install state: %w", err)
	}
	return engine, nil
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "resolve a set of flags against a local state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			statePath, _ := cmd.Flags().GetString("state")
			flagsCSV, _ := cmd.Flags().GetString("flags")
			contextJSON, _ := cmd.Flags().GetString("context")
			clientSecret, _ := cmd.Flags().GetString("client-secret")
			accountID, _ := cmd.Flags().GetString("account-id")
			apply, _ := cmd.Flags().GetBool("apply")
			failFast, _ := cmd.Flags().GetBool("fail-fast")

			engine, err := loadEngine(statePath, accountID)
			if err != nil {
				return err
			}

			ctx, err := core.ParseEvaluationContextJSON([]byte(contextJSON))
			if err != nil {
				return fmt.Errorf("parse context: %w", err)
			}

			var flags []string
			for _, f := range strings.Split(flagsCSV, ",") {
				f = strings.TrimSpace(f)
				if f != "" {
					flags = append(flags, f)
				}
			}

			result, err := engine.ResolveWithSticky(core.ResolveWithStickyRequest{
				Flags:             flags,
				EvaluationContext: ctx,
				ClientSecret:      clientSecret,
				Apply:             apply,
				FailFastOnSticky:  failFast,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("state", "", "path to a resolver state snapshot (JSON)")
	cmd.Flags().String("flags", "", "comma-separated flag names to resolve")
	cmd.Flags().String("context", "{}", "JSON evaluation context")
	cmd.Flags().String("client-secret", "", "client secret to authenticate as")
	cmd.Flags().String("account-id", "", "account id associated with the snapshot")
	cmd.Flags().Bool("apply", true, "record exposure for this resolve")
	cmd.Flags().Bool("fail-fast", false, "fail fast on the first missing materialization")
	cmd.MarkFlagRequired("state")
	cmd.MarkFlagRequired("flags")
	return cmd
}

func flushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "load a state snapshot and immediately flush its (empty) exposure log",
		RunE: func(cmd *cobra.Command, args []string) error {
			statePath, _ := cmd.Flags().GetString("state")
			accountID, _ := cmd.Flags().GetString("account-id")
			maxBytes, _ := cmd.Flags().GetInt("max-bytes")

			engine, err := loadEngine(statePath, accountID)
			if err != nil {
				return err
			}
			out, err := engine.FlushLogs(maxBytes)
			if err != nil {
				return err
			}
			if out == nil {
				fmt.Println("{}")
				return nil
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("state", "", "path to a resolver state snapshot (JSON)")
	cmd.Flags().String("account-id", "", "account id associated with the snapshot")
	cmd.Flags().Int("max-bytes", 1<<20, "max bytes budget for this flush")
	cmd.MarkFlagRequired("state")
	return cmd
}
