package main

// Command is a CLI subcommand.
type Command string

const (
	CommandLogin           Command = "login"
	CommandLogout          Command = "logout"
	CommandSignUp          Command = "signup"
	CommandConfirmSignUp   Command = "confirm-signup"
	CommandForgotPassword  Command = "forgot-password"
	CommandConfirmPassword Command = "confirm-password"
	CommandWhoAmI          Command = "whoami"
	CommandItems           Command = "items"
	CommandDashboard       Command = "dashboard"
	CommandServe           Command = "serve"
	CommandHelp            Command = "help"
)

// ParseCommand returns the subcommand named by args[0] and the remaining
// arguments. Empty or unknown input yields CommandHelp.
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandHelp, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandLogin, CommandLogout, CommandSignUp, CommandConfirmSignUp,
		CommandForgotPassword, CommandConfirmPassword, CommandWhoAmI,
		CommandItems, CommandDashboard, CommandServe:
		return cmd, args[1:]
	default:
		return CommandHelp, args[1:]
	}
}

const usage = `usage: stockroom <command> [flags]

commands:
  login            -email <email> [-password <password>]
  logout           [-global]
  signup           -email <email> [-password <password>]
  confirm-signup   -email <email> -code <code>
  forgot-password  -email <email>
  confirm-password -email <email> -code <code> [-new-password <password>]
  whoami
  items list
  items get <id>
  items create -name <name> [-category <c>] [-price <p>] [-quantity <q>]
  items update <id> [-name <name>] [-category <c>] [-price <p>] [-quantity <q>]
  items delete <id>
  dashboard        [-threshold <n>]
  serve            [-addr <host:port>]

Passwords are read from STOCKROOM_PASSWORD or prompted on stdin when the
flag is omitted. Configuration is read from STOCKROOM_* variables and .env.
`
