package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Fleet admin CLI",
	Long:  "A CLI for the scooter fleet administrative backend.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(restoreCodeCmd())
	rootCmd.AddCommand(travellerCmd())
	rootCmd.AddCommand(scooterCmd())
}

func promptLine(label string) string {
	fmt.Print(label)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// --- auth ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [handle]",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var handle string
			if len(args) > 0 {
				handle = args[0]
			} else {
				handle = promptLine("Handle: ")
			}
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = promptLine("Password: ")
			}
			client := newClient()
			result, err := client.post("/v1/auth/login", map[string]any{
				"handle":   handle,
				"password": password,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			if tok, ok := result["token"].(string); ok {
				cfg.Token = tok
				if err := saveConfig(); err == nil {
					fmt.Fprintln(os.Stderr, "Session token saved to config.")
				}
			}
			if n, ok := result["suspicious_count"].(float64); ok && n > 0 {
				fmt.Fprintf(os.Stderr, "Warning: %d suspicious audit entries need review.\n", int64(n))
			}
			delete(result, "token")
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password (prompted if omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if _, err := client.post("/v1/auth/logout", nil); err != nil {
				printError(err.Error())
				return nil
			}
			cfg.Token = ""
			saveConfig() //nolint:errcheck
			printSuccess("Logged out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/auth/whoami")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- accounts ---

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Manage staff accounts"}

	createCmd := &cobra.Command{
		Use:   "create <handle>",
		Short: "Create a staff account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			password, _ := cmd.Flags().GetString("password")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			if password == "" {
				password = promptLine("Password: ")
			}
			client := newClient()
			result, err := client.post("/v1/accounts", map[string]any{
				"handle":     args[0],
				"password":   password,
				"role":       role,
				"first_name": firstName,
				"last_name":  lastName,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	createCmd.Flags().String("role", "service_engineer", "Account role: system_admin or service_engineer")
	createCmd.Flags().String("password", "", "Password (prompted if omitted)")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/accounts")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if accounts, ok := result["accounts"].([]any); ok {
				printList(accounts)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <handle>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/v1/accounts/" + args[0]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Account deleted: " + args[0])
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset-password <handle>",
		Short: "Reset another account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = promptLine("New password: ")
			}
			client := newClient()
			if _, err := client.post("/v1/accounts/"+args[0]+"/reset-password", map[string]any{
				"new_password": password,
			}); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Password reset for " + args[0])
			return nil
		},
	}
	resetCmd.Flags().String("password", "", "New password (prompted if omitted)")

	profileCmd := &cobra.Command{
		Use:   "update-profile <handle>",
		Short: "Update an account's name fields (own, or a managed role)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			if firstName == "" {
				firstName = promptLine("First name: ")
			}
			if lastName == "" {
				lastName = promptLine("Last name: ")
			}
			client := newClient()
			if _, err := client.put("/v1/accounts/"+args[0]+"/profile", map[string]any{
				"first_name": firstName,
				"last_name":  lastName,
			}); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Profile updated for " + args[0])
			return nil
		},
	}
	profileCmd.Flags().String("first-name", "", "New first name (prompted if omitted)")
	profileCmd.Flags().String("last-name", "", "New last name (prompted if omitted)")

	changeCmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change your own password",
		RunE: func(cmd *cobra.Command, args []string) error {
			current := promptLine("Current password: ")
			next := promptLine("New password: ")
			client := newClient()
			if _, err := client.post("/v1/auth/change-password", map[string]any{
				"current_password": current,
				"new_password":     next,
			}); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Password changed.")
			return nil
		},
	}

	cmd.AddCommand(createCmd, listCmd, deleteCmd, profileCmd, resetCmd, changeCmd)
	return cmd
}

// --- audit ---

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the audit log"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			client := newClient()
			result, err := client.get(fmt.Sprintf("/v1/audit-log?limit=%d&offset=%d", limit, offset))
			if err != nil {
				printError(err.Error())
				return nil
			}
			if entries, ok := result["entries"].([]any); ok {
				printList(entries)
				return nil
			}
			printResult(result)
			return nil
		},
	}
	listCmd.Flags().Int("limit", 100, "Maximum entries to return")
	listCmd.Flags().Int("offset", 0, "Entries to skip")

	cmd.AddCommand(listCmd)
	return cmd
}

// --- backups ---

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Create and restore backups"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the whole system",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/backups", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/backups")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if backups, ok := result["backups"].([]any); ok {
				printList(backups)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Restore a backup directly (super admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/backups/"+args[0]+"/restore", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(createCmd, listCmd, restoreCmd)
	return cmd
}

// --- restore codes ---

func restoreCodeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "restore-code", Short: "One-time restore codes"}

	issueCmd := &cobra.Command{
		Use:   "issue <backup-id> <target-handle>",
		Short: "Issue a one-time restore code to a system admin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/restore-codes", map[string]any{
				"backup_id":     args[0],
				"target_handle": args[1],
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List restore codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/restore-codes")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if codes, ok := result["restore_codes"].([]any); ok {
				printList(codes)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	redeemCmd := &cobra.Command{
		Use:   "redeem [code]",
		Short: "Redeem a restore code and restore its backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) > 0 {
				code = args[0]
			} else {
				code = promptLine("Restore code: ")
			}
			client := newClient()
			result, err := client.post("/v1/restore-codes/redeem", map[string]any{"code": code})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke [code]",
		Short: "Revoke an unused restore code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) > 0 {
				code = args[0]
			} else {
				code = promptLine("Restore code: ")
			}
			client := newClient()
			if _, err := client.post("/v1/restore-codes/revoke", map[string]any{"code": code}); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Restore code revoked.")
			return nil
		},
	}

	cmd.AddCommand(issueCmd, listCmd, redeemCmd, revokeCmd)
	return cmd
}

// --- travellers ---

func travellerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "traveller", Short: "Manage traveller records"}

	addCmd := &cobra.Command{
		Use:   "add [key=value ...]",
		Short: "Register a traveller",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := kvPairs(args)
			if err != nil {
				return err
			}
			client := newClient()
			result, err := client.post("/v1/travellers", profile)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a traveller profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/travellers/" + args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List traveller IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/travellers")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if travellers, ok := result["travellers"].([]any); ok {
				printList(travellers)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search travellers by name, email, phone or license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/travellers?q=" + url.QueryEscape(args[0]))
			if err != nil {
				printError(err.Error())
				return nil
			}
			if travellers, ok := result["travellers"].([]any); ok {
				printList(travellers)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update <id> [key=value ...]",
		Short: "Replace a traveller profile",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := kvPairs(args[1:])
			if err != nil {
				return err
			}
			client := newClient()
			if _, err := client.put("/v1/travellers/"+args[0], profile); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Traveller updated.")
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a traveller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/v1/travellers/" + args[0]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Traveller deleted.")
			return nil
		},
	}

	cmd.AddCommand(addCmd, getCmd, listCmd, searchCmd, updateCmd, deleteCmd)
	return cmd
}

// --- scooters ---

func scooterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "scooter", Short: "Manage the scooter fleet"}

	addCmd := &cobra.Command{
		Use:   "add <serial>",
		Short: "Add a scooter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brand, _ := cmd.Flags().GetString("brand")
			model, _ := cmd.Flags().GetString("model")
			client := newClient()
			result, err := client.post("/v1/scooters", map[string]any{
				"serial_number": args[0],
				"brand":         brand,
				"model":         model,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	addCmd.Flags().String("brand", "", "Scooter brand")
	addCmd.Flags().String("model", "", "Scooter model")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a scooter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/scooters/" + args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scooters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/scooters")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if scooters, ok := result["scooters"].([]any); ok {
				printList(scooters)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search scooters by brand, model, serial or ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/scooters?q=" + url.QueryEscape(args[0]))
			if err != nil {
				printError(err.Error())
				return nil
			}
			if scooters, ok := result["scooters"].([]any); ok {
				printList(scooters)
				return nil
			}
			printResult(result)
			return nil
		},
	}

	telemetryCmd := &cobra.Command{
		Use:   "telemetry <id> [key=value ...]",
		Short: "Update telemetry fields (charge, latitude, longitude, mileage, out_of_service)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := kvPairs(args[1:])
			if err != nil {
				return err
			}
			// Numeric and boolean fields arrive as strings on the command
			// line; coerce them before sending.
			for k, v := range fields {
				s := v.(string)
				if n, err := strconv.Atoi(s); err == nil {
					fields[k] = n
				} else if f, err := strconv.ParseFloat(s, 64); err == nil {
					fields[k] = f
				} else if b, err := strconv.ParseBool(s); err == nil {
					fields[k] = b
				}
			}
			client := newClient()
			result, err := client.patch("/v1/scooters/"+args[0]+"/telemetry", fields)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scooter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if err := client.delete("/v1/scooters/" + args[0]); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Scooter deleted.")
			return nil
		},
	}

	cmd.AddCommand(addCmd, getCmd, listCmd, searchCmd, telemetryCmd, deleteCmd)
	return cmd
}

// helpers

func kvPairs(args []string) (map[string]any, error) {
	out := map[string]any{}
	for _, kv := range args {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid key=value pair: %s", kv)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}
