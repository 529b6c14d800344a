package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "codedojod.pid"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve", "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "problems":
		err = cmdProblems(args)
	case "show":
		err = cmdShow(args)
	case "run":
		err = cmdRun(args)
	case "hint":
		err = cmdHint(args)
	case "login":
		err = cmdLogin(args)
	case "logout":
		err = cmdLogout()
	case "register":
		err = cmdRegister(args)
	case "profile":
		err = cmdProfile()
	case "seed":
		err = cmdSeed(args)
	case "config":
		err = cmdConfig(args)
	case "mcp":
		err = cmdMCP(args)
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("codedojo %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codedojo - coding practice with an AI mentor

Usage:
  codedojo <command> [arguments]

Server Commands:
  serve, start    Start the codedojo server in the background
  stop            Stop the server
  status          Show server status
  logs            View server logs
  seed <dir>      Load problem files from dir into the database

Practice Commands:
  problems        List problems (--topic t, --q text)
  show <slug>     Show a problem statement and its languages
  run <slug> <lang> <file>
                  Run a solution file
  hint <slug> <lang> <file> [question]
                  Ask the mentor about a solution file

Account Commands:
  register        Create an account
  login           Log in and save the session token
  logout          Log out
  profile         Show rank score and solved problems

Integration Commands:
  mcp             Start an MCP server over a workspace session (--http addr)

Other:
  config          Show current configuration (config init writes defaults)
  help            Show this help message
  version         Show version information

Examples:
  codedojo start
  codedojo problems --topic arrays
  codedojo run two-sum python3 solution.py
  codedojo hint two-sum python3 solution.py "why is this slow?"`)
}
