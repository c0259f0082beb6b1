// Command styxclient is a command-line 9P2000 client.
//
// Usage:
//
//	styxclient [flags] <command> [args...]
//
// Commands: ls, cat, stat, mkdir, create, write.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"go.9p.dev/styx9p/client"
	"go.9p.dev/styx9p/styxproto"
)

var (
	addr  = pflag.StringP("addr", "a", "127.0.0.1:564", "address of the 9P server")
	uname = pflag.StringP("user", "u", "glenda", "user name to attach as")
	aname = pflag.StringP("tree", "t", "", "name of the file tree to attach to")
)

func main() {
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	cl, err := client.Dial("tcp", *addr, *uname, *aname)
	if err != nil {
		fatal(err)
	}
	defer cl.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ls":
		runLs(cl, rest)
	case "cat":
		runCat(cl, rest)
	case "stat":
		runStat(cl, rest)
	case "mkdir":
		runMkdir(cl, rest)
	case "create":
		runCreate(cl, rest)
	case "write":
		runWrite(cl, rest)
	default:
		fmt.Fprintf(os.Stderr, "styxclient: unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: styxclient [flags] <ls|cat|stat|mkdir|create|write> [args...]")
	pflag.PrintDefaults()
}

func fatal(err error) {
	color.Red("styxclient: %v", err)
	os.Exit(1)
}

func runLs(cl *client.Client, args []string) {
	p := "/"
	if len(args) > 0 {
		p = args[0]
	}
	entries, err := cl.Ls(p)
	if err != nil {
		fatal(err)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Mode", "Uid", "Gid", "Size", "Name"})
	for _, st := range entries {
		mode := "-"
		if st.Mode()&styxproto.DMDIR != 0 {
			mode = "d"
		}
		table.Append([]string{
			mode,
			string(st.Uid()),
			string(st.Gid()),
			strconv.FormatInt(st.Length(), 10),
			string(st.Name()),
		})
	}
	table.Render()
}

func runCat(cl *client.Client, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: styxclient cat <path>"))
	}
	f, err := cl.Open(args[0], styxproto.OREAD)
	if err != nil {
		fatal(err)
	}
	defer f.Close()
	if _, err := io.Copy(os.Stdout, f); err != nil && err != io.EOF {
		fatal(err)
	}
}

func runStat(cl *client.Client, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: styxclient stat <path>"))
	}
	st, err := cl.Stat(args[0])
	if err != nil {
		fatal(err)
	}
	fmt.Println(st.String())
}

func runMkdir(cl *client.Client, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: styxclient mkdir <path>"))
	}
	if err := cl.Mkdir(args[0], 0755); err != nil {
		fatal(err)
	}
}

func runCreate(cl *client.Client, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: styxclient create <path>"))
	}
	f, err := cl.Create(args[0], 0644)
	if err != nil {
		fatal(err)
	}
	f.Close()
}

func runWrite(cl *client.Client, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: styxclient write <path> (reads data from stdin)"))
	}
	f, err := cl.Open(args[0], styxproto.ORDWR)
	if err != nil {
		fatal(err)
	}
	defer f.Close()
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		fatal(err)
	}
	color.Green("wrote %d bytes to %s", len(data), args[0])
}
