// pmemlog is a tool for inspecting and moving pmemlog pools
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

type command struct {
	usage string
	run   func(args []string, w io.Writer) error
}

var commands = map[string]command{
	"create":      {"create [-size n] [-perm 0644] <pool>", cmdCreate},
	"info":        {"info [-dump] <pool>", cmdInfo},
	"check":       {"check <pool>...", cmdCheck},
	"cat":         {"cat [-framed] [-offset n] [-n bytes|records] <pool>", cmdCat},
	"append":      {"append [-framed] <pool> <text>...", cmdAppend},
	"export":      {"export <pool> <file[.zst|.br]>", cmdExport},
	"restore":     {"restore [-size n] <file[.zst|.br]> <pool>", cmdRestore},
	"upload-s3":   {"upload-s3 -bucket b -endpoint e <file> <remote path>", cmdUploadS3},
	"upload-sftp": {"upload-sftp -user u -host h -key path <file> <remote path>", cmdUploadSFTP},
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: pmemlog <command> [args]\n\ncommands:\n")
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func runCommand(args []string, w io.Writer) error {
	if len(args) == 0 {
		usage(w)
		return flag.ErrHelp
	}
	name := strings.ToLower(args[0])
	cmd, ok := commands[name]
	if !ok {
		usage(w)
		return fmt.Errorf("unknown command '%s'", args[0])
	}
	return cmd.run(args[1:], w)
}

func main() {
	err := runCommand(os.Args[1:], os.Stdout)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	fmt.Fprintf(os.Stderr, "pmemlog: %s\n", err)
	os.Exit(1)
}
