package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParse_Shapes(t *testing.T) {
	r := NewRouter()

	cmd, err := r.Parse([]string{"execute", "proc-1", "transfer", "100", "--yes", "--param", "target=alice"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Name != "execute" || cmd.Subcommand != "proc-1" {
		t.Errorf("name/subcommand = %q/%q", cmd.Name, cmd.Subcommand)
	}
	if len(cmd.Args) != 2 || cmd.Args[0] != "transfer" || cmd.Args[1] != "100" {
		t.Errorf("args = %v", cmd.Args)
	}
	if !cmd.HasFlag("yes") || cmd.GetFlag("yes", "") != "true" {
		t.Error("bare flag must record as true")
	}
	if cmd.GetFlag("param", "") != "target=alice" {
		t.Errorf("param flag = %q", cmd.GetFlag("param", ""))
	}
}

func TestParse_RepeatedFlagsAccumulate(t *testing.T) {
	r := NewRouter()

	cmd, err := r.Parse([]string{"batch", "run", "--request", "check balance", "--request", "get info"})
	if err != nil {
		t.Fatal(err)
	}
	vals := cmd.FlagValues("request")
	if len(vals) != 2 || vals[0] != "check balance" || vals[1] != "get info" {
		t.Errorf("repeated flags = %v", vals)
	}
	// The last value wins for single-value access.
	if cmd.GetFlag("request", "") != "get info" {
		t.Errorf("GetFlag = %q", cmd.GetFlag("request", ""))
	}
}

func TestParse_Empty(t *testing.T) {
	r := NewRouter()
	if _, err := r.Parse(nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestRoute_SubcommandKeyWinsOverBareName(t *testing.T) {
	r := NewRouter()
	r.Register("memory", "catch-all", func(ctx context.Context, cmd *Command) (string, error) {
		return "catch-all", nil
	})
	r.Register("memory.add", "add a memory", func(ctx context.Context, cmd *Command) (string, error) {
		return "added", nil
	})

	out, err := r.Route(context.Background(), []string{"memory", "add"})
	if err != nil || out != "added" {
		t.Errorf("expected the specific handler, got %q, %v", out, err)
	}

	out, err = r.Route(context.Background(), []string{"memory", "list"})
	if err != nil || out != "catch-all" {
		t.Errorf("expected the catch-all, got %q, %v", out, err)
	}
}

func TestRoute_UnknownCommand(t *testing.T) {
	r := NewRouter()
	if _, err := r.Route(context.Background(), []string{"nope"}); err == nil {
		t.Error("unknown commands must error")
	}
}

func TestUsage_SortedAndReadable(t *testing.T) {
	r := NewRouter()
	r.Register("version", "print the version", nil)
	r.Register("batch.run", "run a batch", nil)

	usage := r.Usage()
	batchAt := strings.Index(usage, "batch run")
	versionAt := strings.Index(usage, "version")
	if batchAt < 0 || versionAt < 0 {
		t.Fatalf("usage missing entries:\n%s", usage)
	}
	if batchAt > versionAt {
		t.Error("usage must be sorted by key")
	}
}

func TestGetArg(t *testing.T) {
	cmd := &Command{Args: []string{"a", "b"}}
	if v, ok := cmd.GetArg(1); !ok || v != "b" {
		t.Errorf("GetArg(1) = %q, %t", v, ok)
	}
	if _, ok := cmd.GetArg(2); ok {
		t.Error("out-of-range index must report absence")
	}
}
