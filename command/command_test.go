package command_test

import (
	"testing"
	"time"

	"github.com/onestore/picokv/command"
	"github.com/onestore/picokv/config"
	"github.com/onestore/picokv/hotkeys"
	"github.com/onestore/picokv/resp"
	"github.com/onestore/picokv/store"
)

func newDispatcher() *command.Dispatcher {
	return command.New(store.New(), config.Config{Dir: "/tmp", DBFilename: "dump.rdb"}, hotkeys.New(100, time.Minute, time.Minute))
}

func arrayCmd(parts ...string) resp.Value {
	vals := make([]resp.Value, len(parts))
	for i, p := range parts {
		vals[i] = resp.BulkStr(p)
	}
	return resp.ArrayOf(vals...)
}

func TestPing(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("PING"))
	if reply.Kind != resp.SimpleString || string(reply.Str) != "PONG" {
		t.Fatalf("got %+v, want +PONG", reply)
	}
}

func TestEcho(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("ECHO", "hello"))
	if reply.Kind != resp.BulkString || string(reply.Str) != "hello" {
		t.Fatalf("got %+v, want $hello", reply)
	}
}

func TestSetGet(t *testing.T) {
	t.Parallel()
	d := newDispatcher()

	reply, _ := d.Dispatch(arrayCmd("SET", "foo", "bar"))
	if reply.Kind != resp.SimpleString || string(reply.Str) != "OK" {
		t.Fatalf("SET reply = %+v, want +OK", reply)
	}

	reply, _ = d.Dispatch(arrayCmd("GET", "foo"))
	if reply.Kind != resp.BulkString || string(reply.Str) != "bar" {
		t.Fatalf("GET reply = %+v, want $bar", reply)
	}
}

func TestGetMissingIsNull(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("GET", "nope"))
	if !reply.IsNull() {
		t.Fatalf("got %+v, want null", reply)
	}
}

func TestSetWithPXExpires(t *testing.T) {
	t.Parallel()
	d := newDispatcher()

	d.Dispatch(arrayCmd("SET", "foo", "bar", "PX", "20"))
	time.Sleep(60 * time.Millisecond)

	reply, _ := d.Dispatch(arrayCmd("GET", "foo"))
	if !reply.IsNull() {
		t.Fatalf("got %+v, want null after expiry", reply)
	}
}

func TestSetWithUnrecognisedUnitClearsExpiry(t *testing.T) {
	t.Parallel()
	d := newDispatcher()

	d.Dispatch(arrayCmd("SET", "foo", "bar", "XX", "20"))
	reply, _ := d.Dispatch(arrayCmd("GET", "foo"))
	if reply.IsNull() || string(reply.Str) != "bar" {
		t.Fatalf("got %+v, want present with no expiry", reply)
	}
}

func TestSetMalformedIntegerIsError(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("SET", "foo", "bar", "EX", "nope"))
	if reply.Kind != resp.SimpleError {
		t.Fatalf("got %+v, want simple error", reply)
	}
}

func TestConfigGetDir(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("CONFIG", "GET", "dir"))
	if reply.Kind != resp.Array || len(reply.Elems) != 2 {
		t.Fatalf("got %+v, want 2-element array", reply)
	}
	if string(reply.Elems[0].Str) != "dir" || string(reply.Elems[1].Str) != "/tmp" {
		t.Fatalf("got %+v, want [dir /tmp]", reply)
	}
}

func TestConfigSetIsNoop(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("CONFIG", "SET", "dir", "/other"))
	if reply.Kind != resp.SimpleString || string(reply.Str) != "OK" {
		t.Fatalf("got %+v, want +OK", reply)
	}
	// The configured dir must not have actually changed.
	reply, _ = d.Dispatch(arrayCmd("CONFIG", "GET", "dir"))
	if string(reply.Elems[1].Str) != "/tmp" {
		t.Fatalf("CONFIG SET mutated read-only config: got %+v", reply)
	}
}

func TestKeysSubstringMatch(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	d.Dispatch(arrayCmd("SET", "user:1", "a"))
	d.Dispatch(arrayCmd("SET", "order:1", "b"))

	reply, _ := d.Dispatch(arrayCmd("KEYS", "user:*"))
	if reply.Kind != resp.Array || len(reply.Elems) != 1 || string(reply.Elems[0].Str) != "user:1" {
		t.Fatalf("got %+v, want [user:1]", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("FLUSHALL"))
	if reply.Kind != resp.SimpleError || string(reply.Str) != "Cannot Handle command FLUSHALL" {
		t.Fatalf("got %+v", reply)
	}
}

func TestUnknownCommandPreservesOriginalCasing(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("flushall"))
	if reply.Kind != resp.SimpleError || string(reply.Str) != "Cannot Handle command flushall" {
		t.Fatalf("got %+v, want original casing preserved", reply)
	}
}

func TestWrongArityIsErrorNotPanic(t *testing.T) {
	t.Parallel()
	d := newDispatcher()
	reply, _ := d.Dispatch(arrayCmd("GET"))
	if reply.Kind != resp.SimpleError {
		t.Fatalf("got %+v, want simple error", reply)
	}
}
