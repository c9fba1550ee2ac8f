package main

import (
	"context"
	"dancavallaro.com/devicectl/pkg/commands"
	"dancavallaro.com/devicectl/pkg/config"
	"dancavallaro.com/devicectl/pkg/dispatch"
	"dancavallaro.com/devicectl/pkg/serialport"
	flag "github.com/spf13/pflag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var escapes = strings.NewReplacer(`\r`, "\r", `\n`, "\n")

// rawCommand accepts the command as typed in a shell: escaped CR/LF are unescaped and
// a missing terminator is appended.
func rawCommand(raw string) (string, error) {
	cmd := escapes.Replace(raw)
	if !strings.HasSuffix(cmd, commands.Terminator) {
		cmd += commands.Terminator
	}
	return cmd, commands.Validate(cmd)
}

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	action := flag.StringP("action", "a", "start", "start or stop")
	raw := flag.String("raw", "", `send this command instead of a mode's, e.g. '!yde\r\n'`)
	list := flag.BoolP("list", "l", false, "list the configured modes and exit")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("[send_command] ")

	cfg, err := flags.Load()
	if err != nil {
		log.Fatal(err)
	}
	table, err := cfg.Table()
	if err != nil {
		log.Fatal(err)
	}

	if *list {
		for _, m := range table.Modes() {
			log.Printf("%-12s start %-6s stop %s\n", m.ID, commands.Printable(m.Start), commands.Printable(m.Stop))
		}
		return
	}

	var command string
	if *raw != "" {
		if command, err = rawCommand(*raw); err != nil {
			log.Fatal(err)
		}
	} else {
		mode, err := table.Lookup(cfg.DefaultMode)
		if err != nil {
			log.Fatal(err)
		}
		switch *action {
		case "start":
			command = mode.Start
		case "stop":
			command = mode.Stop
		default:
			log.Fatalf("unknown action %q, expected start or stop", *action)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := dispatch.New(cfg.ForDispatch(), serialport.AlbenikOpener{}, nil)
	log.Printf("Opening %s...\n", dispatcher.Port())
	n, err := dispatcher.Send(ctx, command)
	if err != nil {
		log.Printf("serial error: %v\n", err)
		os.Exit(1)
	}
	log.Printf("data sent: %s (%d bytes)\n", commands.Printable(command), n)
}
