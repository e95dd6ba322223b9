// Command picokv is a minimal command-line client for picokvd: it
// dials the RESP port and either runs a single command given on the
// argument line or drops into an interactive prompt.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/onestore/picokv/resp"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("picokv", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "picokv — command-line client for picokvd\n\nUsage:\n  picokv [flags] [command [args...]]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	addr := fs.String("addr", "127.0.0.1:6379", "picokvd address")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("picokv %s\n", version)
		return
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if fs.NArg() > 0 {
		reply, err := runCommand(conn, fs.Args())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(formatReply(reply))
		return
	}

	repl(conn, *addr)
}

func repl(conn net.Conn, addr string) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", addr)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			return
		}

		reply, err := runCommand(conn, splitArgs(line))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(formatReply(reply))
	}
}

func splitArgs(line string) []string {
	return strings.Fields(line)
}

func runCommand(conn net.Conn, args []string) (resp.Value, error) {
	elems := make([]resp.Value, len(args))
	for i, a := range args {
		elems[i] = resp.BulkStr(a)
	}
	frame := resp.ArrayOf(elems...)

	if _, err := conn.Write(resp.Encode(frame)); err != nil {
		return resp.Value{}, fmt.Errorf("write: %w", err)
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		v, consumed, err := resp.Decode(buf)
		if err == nil {
			_ = consumed
			return v, nil
		}
		if err != resp.ErrNeedMore {
			return resp.Value{}, fmt.Errorf("decode: %w", err)
		}

		n, rerr := conn.Read(chunk)
		if n == 0 {
			if rerr == nil {
				rerr = io.EOF
			}
			return resp.Value{}, fmt.Errorf("read: %w", rerr)
		}
		buf = append(buf, chunk[:n]...)
	}
}

func formatReply(v resp.Value) string {
	switch v.Kind {
	case resp.SimpleString:
		return string(v.Str)
	case resp.SimpleError:
		return "(error) " + string(v.Str)
	case resp.BulkString:
		return fmt.Sprintf("%q", string(v.Str))
	case resp.Array:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = fmt.Sprintf("%d) %s", i+1, formatReply(e))
		}
		return strings.Join(parts, "\n")
	case resp.Null:
		return "(nil)"
	default:
		return fmt.Sprintf("%+v", v)
	}
}
