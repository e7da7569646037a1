// Command storekit is a small CLI over the multi-backend storage manager.
// Values set here are routed to the settings database, the OS credential
// store or the blob directory by the same policy the library applies.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/illarion/storekit/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set":
		runSet(os.Args[2:])
	case "get":
		runGet(os.Args[2:])
	case "rm":
		runRm(os.Args[2:])
	case "ls":
		runLs(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "backup":
		runBackup(os.Args[2:])
	case "restore":
		runRestore(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "compact":
		runCompact(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func parseFlags(name string, args []string, positional int, usage string) []string {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() < positional {
		fmt.Fprintf(os.Stderr, "Usage: storekit %s\n", usage)
		os.Exit(1)
	}
	return fs.Args()
}

func runSet(args []string) {
	rest := parseFlags("set", args, 2, "set <key> <value|->")
	cmd.Set(cmd.ConfigFile, rest[0], rest[1])
}

func runGet(args []string) {
	rest := parseFlags("get", args, 1, "get <key>")
	cmd.Get(cmd.ConfigFile, rest[0])
}

func runRm(args []string) {
	rest := parseFlags("rm", args, 1, "rm <key>")
	cmd.Rm(cmd.ConfigFile, rest[0])
}

func runLs(args []string) {
	parseFlags("ls", args, 0, "ls")
	cmd.Ls(cmd.ConfigFile)
}

func runStatus(args []string) {
	parseFlags("status", args, 0, "status")
	cmd.Status(cmd.ConfigFile)
}

func runBackup(args []string) {
	rest := parseFlags("backup", args, 1, "backup <file>")
	cmd.Backup(cmd.ConfigFile, rest[0])
}

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	force := fs.Bool("force", false, "Restore without confirmation")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: storekit restore [-force] <file>")
		os.Exit(1)
	}
	cmd.Restore(cmd.ConfigFile, fs.Arg(0), *force)
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	force := fs.Bool("force", false, "Clear without confirmation")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	cmd.Clear(cmd.ConfigFile, *force)
}

func runCompact(args []string) {
	parseFlags("compact", args, 0, "compact")
	cmd.Compact(cmd.ConfigFile)
}

func printUsage() {
	fmt.Println(`storekit - multi-backend persistent key/value store

Usage: storekit <command> [arguments]

Commands:
  set <key> <value|->   Store a value ("-" reads from stdin)
  get <key>             Print a stored value
  rm <key>              Delete a key
  ls                    List all keys
  status                Show key count, used space and settings
  backup <file>         Snapshot the entire store to a file
  restore [-force] <f>  Replace the store with a snapshot
  clear [-force]        Remove every stored value
  compact               Reclaim space in the settings database

Configuration is read from ` + cmd.ConfigFile + ` in the current directory.
Keys containing "password", "token", "secret", "key" or "auth" are kept in
the OS credential store; values over 1 MiB go to the blob directory.

Environment:
  STOREKIT_PASSPHRASE   Encryption passphrase (skips the prompt)`)
}
