// Package command implements the dispatcher: it turns one decoded RESP
// frame into a reply value, routing to the keyspace engine and the
// read-only configuration. It also produces the event the broker
// publishes for observability; that side channel never affects the
// reply itself.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onestore/picokv/broker"
	"github.com/onestore/picokv/config"
	"github.com/onestore/picokv/hotkeys"
	"github.com/onestore/picokv/resp"
	"github.com/onestore/picokv/store"
)

// Dispatcher routes decoded frames to the keyspace engine and
// configuration. nowFunc is overridable in tests; nil means time.Now.
type Dispatcher struct {
	Store   *store.Store
	Config  config.Config
	Hot     *hotkeys.Tracker
	nowFunc func() time.Time
}

// New creates a Dispatcher. hot may be nil to disable hot-key tracking.
func New(st *store.Store, cfg config.Config, hot *hotkeys.Tracker) *Dispatcher {
	return &Dispatcher{Store: st, Config: cfg, Hot: hot}
}

func (d *Dispatcher) now() time.Time {
	if d.nowFunc != nil {
		return d.nowFunc()
	}
	return time.Now()
}

// Dispatch parses frame as a command array and executes it, returning
// the reply and the event to publish for observability. frame must
// already be a fully decoded resp.Value (the connection reader's job
// is done); Dispatch never itself returns a BadFrame-shaped error,
// since malformed commands are reported as reply values, not Go errors.
func (d *Dispatcher) Dispatch(frame resp.Value) (resp.Value, broker.Event) {
	start := d.now()

	name, args, err := extractCommand(frame)
	if err != nil {
		return resp.Err(err.Error()), broker.Event{Err: err.Error()}
	}

	reply := d.run(name, args)

	ev := broker.Event{
		Cmd:      strings.ToUpper(name),
		Args:     bulkStrings(args),
		Duration: d.now().Sub(start).Nanoseconds(),
	}
	if reply.Kind == resp.SimpleError {
		ev.Err = string(reply.Str)
	}
	if d.Hot != nil && (ev.Cmd == "GET" || ev.Cmd == "SET") && len(args) > 0 {
		if key, ok := args[0].AsBulk(); ok {
			if d.Hot.Record(string(key), start).Hot {
				ev.Hot = true
			}
		}
	}

	return reply, ev
}

// run dispatches on the uppercased command name but, for the unknown-
// command reply, reports the client's original casing unchanged.
func (d *Dispatcher) run(name string, args []resp.Value) resp.Value {
	switch strings.ToUpper(name) {
	case "PING":
		return resp.Str("PONG")
	case "ECHO":
		return d.echo(args)
	case "SET":
		return d.set(args)
	case "GET":
		return d.get(args)
	case "CONFIG":
		return d.configCmd(args)
	case "KEYS":
		return d.keys(args)
	default:
		return resp.Errf("Cannot Handle command %s", name)
	}
}

func (d *Dispatcher) echo(args []resp.Value) resp.Value {
	if len(args) != 1 {
		return resp.Err("ERR wrong number of arguments for 'echo' command")
	}
	return args[0]
}

func (d *Dispatcher) set(args []resp.Value) resp.Value {
	if len(args) != 2 && len(args) != 4 {
		return resp.Err("ERR wrong number of arguments for 'set' command")
	}

	key, ok := bulkArg(args, 0)
	if !ok {
		return resp.Err("ERR key must be a bulk string")
	}
	value, ok := bulkArg(args, 1)
	if !ok {
		return resp.Err("ERR value must be a bulk string")
	}

	var expiry time.Time
	hasExpiry := false
	if len(args) == 4 {
		unit, ok := bulkArg(args, 2)
		if !ok {
			return resp.Err("ERR expiry unit must be a bulk string")
		}
		amountStr, ok := bulkArg(args, 3)
		if !ok {
			return resp.Err("ERR expiry amount must be a bulk string")
		}
		amount, err := strconv.ParseInt(string(amountStr), 10, 64)
		if err != nil {
			return resp.Errf("ERR value is not an integer or out of range")
		}

		switch strings.ToUpper(string(unit)) {
		case "PX":
			expiry = d.now().Add(time.Duration(amount) * time.Millisecond)
			hasExpiry = true
		case "EX":
			expiry = d.now().Add(time.Duration(amount) * time.Second)
			hasExpiry = true
		default:
			hasExpiry = false // unrecognised unit clears expiry, per spec
		}
	}

	d.Store.Set(string(key), append([]byte(nil), value...), expiry, hasExpiry)
	return resp.Str("OK")
}

func (d *Dispatcher) get(args []resp.Value) resp.Value {
	if len(args) != 1 {
		return resp.Err("ERR wrong number of arguments for 'get' command")
	}
	key, ok := bulkArg(args, 0)
	if !ok {
		return resp.Err("ERR key must be a bulk string")
	}
	v, ok := d.Store.Get(string(key))
	if !ok {
		return resp.NullValue()
	}
	return resp.Bulk(v)
}

func (d *Dispatcher) keys(args []resp.Value) resp.Value {
	if len(args) != 1 {
		return resp.Err("ERR wrong number of arguments for 'keys' command")
	}
	pattern, ok := bulkArg(args, 0)
	if !ok {
		return resp.Err("ERR pattern must be a bulk string")
	}
	ks := d.Store.Keys(string(pattern))
	out := make([]resp.Value, len(ks))
	for i, k := range ks {
		out[i] = resp.BulkStr(k)
	}
	return resp.ArrayOf(out...)
}

func (d *Dispatcher) configCmd(args []resp.Value) resp.Value {
	if len(args) < 2 {
		return resp.Err("ERR wrong number of arguments for 'config' command")
	}
	sub, ok := bulkArg(args, 0)
	if !ok {
		return resp.Err("ERR subcommand must be a bulk string")
	}

	if !strings.EqualFold(string(sub), "GET") {
		// CONFIG SET and anything else is a no-op: the running
		// configuration is read-only after startup.
		return resp.Str("OK")
	}

	param, ok := bulkArg(args, 1)
	if !ok {
		return resp.Err("ERR parameter must be a bulk string")
	}
	value, known := d.Config.Get(string(param))
	if !known {
		return resp.ArrayOf(resp.BulkStr(string(param)), resp.Err(fmt.Sprintf("ERR unknown parameter %q", param)))
	}
	return resp.ArrayOf(resp.BulkStr(string(param)), resp.BulkStr(value))
}

// extractCommand validates that frame is an array whose first element
// is a bulk string command name, returning the name and remaining args.
func extractCommand(frame resp.Value) (string, []resp.Value, error) {
	if frame.Kind != resp.Array || len(frame.Elems) == 0 {
		return "", nil, fmt.Errorf("ERR expected a command array")
	}
	name, ok := frame.Elems[0].AsBulk()
	if !ok {
		return "", nil, fmt.Errorf("ERR command name must be a bulk string")
	}
	return string(name), frame.Elems[1:], nil
}

func bulkArg(args []resp.Value, i int) ([]byte, bool) {
	if i >= len(args) {
		return nil, false
	}
	return args[i].AsBulk()
}

func bulkStrings(args []resp.Value) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if b, ok := a.AsBulk(); ok {
			out = append(out, string(b))
		}
	}
	return out
}
